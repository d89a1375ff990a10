package metrics

import (
	"fmt"
	"sort"
)

// DefaultRollingWindows are the working-day window sizes rolled up by default.
var DefaultRollingWindows = []int{5, 10, 30}

type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// PeriodMetrics summarizes the DayMetrics of one week, month or rolling window.
type PeriodMetrics struct {
	Period            string     `json:"period"`
	DateRange         DateRange  `json:"dateRange"`
	WorkingDays       int        `json:"workingDays"`
	BillableHours     HoursStats `json:"billableHours"`
	AwayFromHomeHours HoursStats `json:"awayFromHomeHours"`
	BackHomeTime      ClockStats `json:"backHomeTime"`
	HomeOfficeEndTime ClockStats `json:"homeOfficeEndTime"`
	LateWorkCount     int        `json:"lateWorkCount"`
}

// WeekKey returns the ISO week key of a date, e.g. "2025-W27".
func WeekKey(date string) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", fmt.Errorf("parsing date %q: %w", date, err)
	}
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week), nil
}

// MonthKey returns the calendar month key of a date, e.g. "2025-07".
func MonthKey(date string) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", fmt.Errorf("parsing date %q: %w", date, err)
	}
	return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month())), nil
}

// Weekly buckets days by ISO week.
func Weekly(days map[string]DayMetrics) (map[string]PeriodMetrics, error) {
	return bucket(days, WeekKey)
}

// Monthly buckets days by calendar month.
func Monthly(days map[string]DayMetrics) (map[string]PeriodMetrics, error) {
	return bucket(days, MonthKey)
}

// Rolling summarizes, for each window size N, the N most recent dates that
// have data. A window larger than the available history is left out.
func Rolling(days map[string]DayMetrics, windows []int) map[string]PeriodMetrics {
	dates := SortedDates(days)
	out := make(map[string]PeriodMetrics, len(windows))
	for _, n := range windows {
		if n <= 0 || len(dates) < n {
			continue
		}
		recent := dates[len(dates)-n:]
		key := RollingKey(n)
		out[key] = summarize(key, pick(days, recent))
	}
	return out
}

func RollingKey(n int) string {
	return fmt.Sprintf("%dWD", n)
}

// SortedDates returns the keys of days in ascending date order.
func SortedDates(days map[string]DayMetrics) []string {
	dates := make([]string, 0, len(days))
	for d := range days {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// SortedDays returns days ordered by date. Dates without data are absent.
func SortedDays(days map[string]DayMetrics) []DayMetrics {
	return pick(days, SortedDates(days))
}

func bucket(days map[string]DayMetrics, keyOf func(string) (string, error)) (map[string]PeriodMetrics, error) {
	groups := make(map[string][]DayMetrics)
	for _, d := range SortedDays(days) {
		key, err := keyOf(d.Date)
		if err != nil {
			return nil, err
		}
		groups[key] = append(groups[key], d)
	}

	out := make(map[string]PeriodMetrics, len(groups))
	for key, group := range groups {
		out[key] = summarize(key, group)
	}
	return out, nil
}

func pick(days map[string]DayMetrics, dates []string) []DayMetrics {
	out := make([]DayMetrics, len(dates))
	for i, d := range dates {
		out[i] = days[d]
	}
	return out
}

// summarize reduces a date-ordered, non-empty group of days.
func summarize(key string, group []DayMetrics) PeriodMetrics {
	var billable, away []float64
	var backHome, homeEnd []ClockTime
	lateDays := 0

	for _, d := range group {
		// Hour metrics only count days that actually carry hours.
		if d.BillableHours > 0 {
			billable = append(billable, d.BillableHours)
		}
		if d.AwayFromHomeHours > 0 {
			away = append(away, d.AwayFromHomeHours)
		}
		if d.BackHomeTime != nil {
			backHome = append(backHome, *d.BackHomeTime)
		}
		if d.HomeOfficeEndTime != nil {
			homeEnd = append(homeEnd, *d.HomeOfficeEndTime)
		}
		if d.LateWork {
			lateDays++
		}
	}

	return PeriodMetrics{
		Period:            key,
		DateRange:         DateRange{Start: group[0].Date, End: group[len(group)-1].Date},
		WorkingDays:       len(group),
		BillableHours:     ReduceHours(billable),
		AwayFromHomeHours: ReduceHours(away),
		BackHomeTime:      ReduceClock(backHome),
		HomeOfficeEndTime: ReduceClock(homeEnd),
		LateWorkCount:     lateDays,
	}
}
