package metrics

import (
	"math"
	"sort"
	"time"
)

const (
	DefaultHomeOfficeTag = "HomeOffice"
	DefaultCommutingTag  = "Commuting"
	DefaultLateWorkHour  = 20
)

// DayMetrics is the balance record of one local calendar date.
type DayMetrics struct {
	Date              string     `json:"date"`
	BillableHours     float64    `json:"billableHours"`
	AwayFromHomeHours float64    `json:"awayFromHomeHours"`
	BackHomeTime      *ClockTime `json:"backHomeTime" jsonschema:"nullable"`
	HomeOfficeEndTime *ClockTime `json:"homeOfficeEndTime" jsonschema:"nullable"`
	LateWork          bool       `json:"lateWork"`
	TotalEntries      int        `json:"totalEntries"`
}

// Rules holds the classification parameters of the daily aggregation.
type Rules struct {
	HomeOfficeTag string
	CommutingTag  string
	LateWorkHour  int
}

func DefaultRules() Rules {
	return Rules{
		HomeOfficeTag: DefaultHomeOfficeTag,
		CommutingTag:  DefaultCommutingTag,
		LateWorkHour:  DefaultLateWorkHour,
	}
}

// WithDefaults fills every unset field from DefaultRules. A late-work hour
// of zero counts as unset.
func (r Rules) WithDefaults() Rules {
	def := DefaultRules()
	if r.HomeOfficeTag == "" {
		r.HomeOfficeTag = def.HomeOfficeTag
	}
	if r.CommutingTag == "" {
		r.CommutingTag = def.CommutingTag
	}
	if r.LateWorkHour <= 0 {
		r.LateWorkHour = def.LateWorkHour
	}
	return r
}

// Aggregator turns normalized entries into one DayMetrics per local date.
type Aggregator struct {
	rules Rules
}

func NewAggregator(rules Rules) *Aggregator {
	if rules.HomeOfficeTag == "" {
		rules.HomeOfficeTag = DefaultHomeOfficeTag
	}
	if rules.CommutingTag == "" {
		rules.CommutingTag = DefaultCommutingTag
	}
	return &Aggregator{rules: rules}
}

// Aggregate groups entries by local date. An empty input yields an empty map.
func (a *Aggregator) Aggregate(entries []NormalizedEntry) map[string]DayMetrics {
	byDate := make(map[string][]NormalizedEntry)
	for _, e := range entries {
		byDate[e.Date()] = append(byDate[e.Date()], e)
	}

	days := make(map[string]DayMetrics, len(byDate))
	for date, dayEntries := range byDate {
		days[date] = a.day(date, dayEntries)
	}
	return days
}

func (a *Aggregator) day(date string, entries []NormalizedEntry) DayMetrics {
	// Every "latest" lookup below scans a start-ordered copy, so ties go to
	// the first entry in that order regardless of input order.
	sorted := sortedByStart(entries)

	var billable, away float64
	for _, e := range sorted {
		if e.Billable {
			billable += e.hours()
		}
		if !e.Tags.Has(a.rules.HomeOfficeTag) {
			away += e.hours()
		}
	}

	return DayMetrics{
		Date:              date,
		BillableHours:     round2(billable),
		AwayFromHomeHours: round2(away),
		BackHomeTime:      a.backHomeTime(sorted),
		HomeOfficeEndTime: a.homeOfficeEndTime(sorted),
		LateWork:          a.lateWork(sorted),
		TotalEntries:      len(sorted),
	}
}

// backHomeTime is the stop of the commuting entry that stops last.
func (a *Aggregator) backHomeTime(sorted []NormalizedEntry) *ClockTime {
	var last *NormalizedEntry
	for i := range sorted {
		e := &sorted[i]
		if !e.Tags.Has(a.rules.CommutingTag) || e.Stop == nil {
			continue
		}
		if last == nil || e.Stop.After(*last.Stop) {
			last = e
		}
	}
	if last == nil {
		return nil
	}
	return clockPtr(ClockOf(*last.Stop))
}

// homeOfficeEndTime applies the three-rule protocol. Only days whose work
// ends in a home-office block produce a value. Days with several
// commute/home-office transitions are evaluated literally by the same rules.
func (a *Aggregator) homeOfficeEndTime(sorted []NormalizedEntry) *ClockTime {
	lastHome := a.lastStarting(sorted, a.rules.HomeOfficeTag)
	if lastHome == nil {
		return nil
	}
	lastCommute := a.lastStarting(sorted, a.rules.CommutingTag)
	homeEnd := lastHome.end()

	// Rule 1: home office resumed after the last commute ended.
	if lastCommute != nil && lastHome.Start.After(lastCommute.end()) {
		return nil
	}

	// Rule 2: something other than home office happened afterwards.
	for _, e := range sorted {
		if !e.Tags.Has(a.rules.HomeOfficeTag) && e.Start.After(homeEnd) {
			return nil
		}
	}

	// Rule 3: the day's last entry must itself be home office.
	lastOfDay := latestStart(sorted)
	if !lastOfDay.Tags.Has(a.rules.HomeOfficeTag) || lastHome.Stop == nil {
		return nil
	}
	return clockPtr(ClockOf(*lastHome.Stop))
}

func (a *Aggregator) lateWork(sorted []NormalizedEntry) bool {
	for _, e := range sorted {
		if e.Start.Hour() >= a.rules.LateWorkHour || e.end().Hour() >= a.rules.LateWorkHour {
			return true
		}
	}
	return false
}

// lastStarting returns the tagged entry with the latest start, or nil.
func (a *Aggregator) lastStarting(sorted []NormalizedEntry, tag string) *NormalizedEntry {
	var last *NormalizedEntry
	for i := range sorted {
		e := &sorted[i]
		if !e.Tags.Has(tag) {
			continue
		}
		if last == nil || e.Start.After(last.Start) {
			last = e
		}
	}
	return last
}

func latestStart(sorted []NormalizedEntry) NormalizedEntry {
	last := sorted[0]
	for _, e := range sorted[1:] {
		if e.Start.After(last.Start) {
			last = e
		}
	}
	return last
}

func sortedByStart(entries []NormalizedEntry) []NormalizedEntry {
	sorted := make([]NormalizedEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Start.Equal(sorted[j].Start) {
			return sorted[i].Start.Before(sorted[j].Start)
		}
		return sorted[i].DurationSeconds < sorted[j].DurationSeconds
	})
	return sorted
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ParseDate parses a DayMetrics key.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}
