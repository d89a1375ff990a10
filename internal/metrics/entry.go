package metrics

import (
	"time"

	"github.com/rs/zerolog"
)

// RawEntry is a time entry as handed over by the upstream fetcher.
type RawEntry struct {
	Start           string
	Stop            *string
	DurationSeconds int64
	Billable        bool
	Tags            []string
}

// TagSet is the set of tags attached to an entry.
type TagSet map[string]struct{}

func NewTagSet(tags ...string) TagSet {
	set := make(TagSet, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	return set
}

func (s TagSet) Has(tag string) bool {
	_, ok := s[tag]
	return ok
}

// NormalizedEntry is a working entry with its timestamps in local civil time.
type NormalizedEntry struct {
	Start           time.Time
	Stop            *time.Time
	DurationSeconds int64
	Billable        bool
	Tags            TagSet
}

// Date is the local calendar date the entry belongs to.
func (e NormalizedEntry) Date() string {
	return e.Start.Format(DateLayout)
}

// end returns the stop time, falling back to the start when the entry has none.
func (e NormalizedEntry) end() time.Time {
	if e.Stop != nil {
		return *e.Stop
	}
	return e.Start
}

func (e NormalizedEntry) hours() float64 {
	return float64(e.DurationSeconds) / 3600
}

// DateLayout is the key format of daily records.
const DateLayout = "2006-01-02"

// Normalizer converts raw entries into local civil time. All hour and date
// inspection downstream works on its output only.
type Normalizer struct {
	loc    *time.Location
	logger *zerolog.Logger
}

func NewNormalizer(loc *time.Location, logger *zerolog.Logger) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Normalizer{loc: loc, logger: logger}
}

func (n *Normalizer) Location() *time.Location { return n.loc }

// Normalize returns the normalized entry, or false when raw is not a working
// entry (non-positive duration or unparsable start).
func (n *Normalizer) Normalize(raw RawEntry) (NormalizedEntry, bool) {
	if raw.DurationSeconds <= 0 {
		n.logger.Debug().Str("start", raw.Start).Int64("duration", raw.DurationSeconds).Msg("dropping entry without positive duration")
		return NormalizedEntry{}, false
	}

	start, err := parseTimestamp(raw.Start)
	if err != nil {
		n.logger.Debug().Str("start", raw.Start).Err(err).Msg("dropping entry with unparsable start")
		return NormalizedEntry{}, false
	}

	entry := NormalizedEntry{
		Start:           start.In(n.loc),
		DurationSeconds: raw.DurationSeconds,
		Billable:        raw.Billable,
		Tags:            NewTagSet(raw.Tags...),
	}

	if raw.Stop != nil && *raw.Stop != "" {
		stop, err := parseTimestamp(*raw.Stop)
		if err != nil {
			n.logger.Debug().Str("stop", *raw.Stop).Err(err).Msg("ignoring unparsable stop")
		} else {
			local := stop.In(n.loc)
			entry.Stop = &local
		}
	}

	return entry, true
}

// NormalizeAll normalizes every entry and reports how many were dropped.
func (n *Normalizer) NormalizeAll(raws []RawEntry) ([]NormalizedEntry, int) {
	out := make([]NormalizedEntry, 0, len(raws))
	dropped := 0
	for _, r := range raws {
		e, ok := n.Normalize(r)
		if !ok {
			dropped++
			continue
		}
		out = append(out, e)
	}
	return out, dropped
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05",
}

// parseTimestamp accepts RFC 3339 plus the offset and naive variants the
// upstream API has been seen to emit. Naive timestamps are read as UTC.
func parseTimestamp(s string) (time.Time, error) {
	var err error
	for _, layout := range timestampLayouts {
		var t time.Time
		t, err = time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}
