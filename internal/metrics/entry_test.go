package metrics

import (
	"testing"
)

func strPtr(s string) *string { return &s }

func TestNormalize_DropsNonWorkingEntries(t *testing.T) {
	n := NewNormalizer(zurich(t), nil)

	tests := []struct {
		name string
		raw  RawEntry
	}{
		{"zero duration", RawEntry{Start: "2025-07-17T08:00:00Z", DurationSeconds: 0}},
		{"running entry", RawEntry{Start: "2025-07-17T08:00:00Z", DurationSeconds: -1752739200}},
		{"empty start", RawEntry{Start: "", DurationSeconds: 60}},
		{"garbage start", RawEntry{Start: "yesterday-ish", DurationSeconds: 60}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := n.Normalize(tt.raw); ok {
				t.Errorf("expected %+v to be dropped", tt.raw)
			}
		})
	}
}

func TestNormalize_ConvertsToLocalCivilTime(t *testing.T) {
	n := NewNormalizer(zurich(t), nil)

	// CEST (UTC+2) in summer.
	e, ok := n.Normalize(RawEntry{
		Start:           "2025-07-17T18:10:00+00:00",
		Stop:            strPtr("2025-07-17T18:38:00Z"),
		DurationSeconds: 1680,
		Tags:            []string{"Commuting"},
	})
	if !ok {
		t.Fatal("expected entry to be kept")
	}
	if got := e.Start.Format("15:04"); got != "20:10" {
		t.Errorf("local start = %s, want 20:10", got)
	}
	if e.Stop == nil || e.Stop.Format("15:04") != "20:38" {
		t.Errorf("local stop = %v, want 20:38", e.Stop)
	}
	if !e.Tags.Has("Commuting") {
		t.Error("expected Commuting tag")
	}

	// CET (UTC+1) in winter.
	w, ok := n.Normalize(RawEntry{Start: "2025-01-15T19:30:00Z", DurationSeconds: 600})
	if !ok {
		t.Fatal("expected winter entry to be kept")
	}
	if got := w.Start.Format("15:04"); got != "20:30" {
		t.Errorf("winter local start = %s, want 20:30", got)
	}
}

func TestNormalize_DaylightSavingBoundary(t *testing.T) {
	n := NewNormalizer(zurich(t), nil)
	agg := NewAggregator(DefaultRules())

	// 2025-03-30 is the spring-forward day: 18:30Z is 20:30 CEST, while a
	// naive UTC-hour check would see 18 and miss the late work.
	e, ok := n.Normalize(RawEntry{
		Start:           "2025-03-30T18:30:00Z",
		Stop:            strPtr("2025-03-30T18:45:00Z"),
		DurationSeconds: 900,
	})
	if !ok {
		t.Fatal("expected entry to be kept")
	}
	day := agg.Aggregate([]NormalizedEntry{e})["2025-03-30"]
	if !day.LateWork {
		t.Error("expected late work in local time across DST change")
	}

	// 23:30Z on 2025-07-17 belongs to the local date 2025-07-18.
	late, _ := n.Normalize(RawEntry{Start: "2025-07-17T23:30:00Z", DurationSeconds: 600})
	if got := late.Date(); got != "2025-07-18" {
		t.Errorf("Date() = %s, want 2025-07-18", got)
	}
}

func TestNormalize_MissingOrBadStopKeepsEntry(t *testing.T) {
	n := NewNormalizer(zurich(t), nil)

	e, ok := n.Normalize(RawEntry{Start: "2025-07-17T08:00:00Z", Stop: strPtr("not a time"), DurationSeconds: 60})
	if !ok {
		t.Fatal("expected entry to be kept")
	}
	if e.Stop != nil {
		t.Errorf("expected nil stop, got %v", e.Stop)
	}
	if e.Tags == nil || len(e.Tags) != 0 {
		t.Errorf("expected empty tag set, got %v", e.Tags)
	}
}

func TestNormalizeAll_CountsDropped(t *testing.T) {
	n := NewNormalizer(nil, nil)
	out, dropped := n.NormalizeAll([]RawEntry{
		{Start: "2025-07-17T08:00:00Z", DurationSeconds: 60},
		{Start: "2025-07-17T09:00:00.000Z", DurationSeconds: 120, Billable: true},
		{Start: "2025-07-17T10:00:00Z", DurationSeconds: -5},
		{Start: "bogus", DurationSeconds: 5},
	})
	if len(out) != 2 || dropped != 2 {
		t.Fatalf("got %d kept / %d dropped, want 2 / 2", len(out), dropped)
	}
	if n.Location().String() != "UTC" {
		t.Errorf("default location = %s, want UTC", n.Location())
	}
}
