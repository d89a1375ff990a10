package report

import (
	"strings"
	"testing"
	"time"

	"github.com/christopherklint97/balancr/internal/metrics"
	"github.com/christopherklint97/balancr/internal/pipeline"
)

func TestRenderStatus_Empty(t *testing.T) {
	out := RenderStatus(Status{})
	if !strings.Contains(out, "No days recorded yet") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestRenderStatus_DaysAndWindows(t *testing.T) {
	back, _ := metrics.ParseClock("20:38")
	mean := 7.5
	homeEnd, _ := metrics.ParseClock("17:30")

	out := RenderStatus(Status{
		Days: []metrics.DayMetrics{
			{Date: "2025-07-16", BillableHours: 7.5, HomeOfficeEndTime: &homeEnd},
			{Date: "2025-07-17", BillableHours: 8.25, AwayFromHomeHours: 10.5, BackHomeTime: &back, LateWork: true},
		},
		Rolling: map[string]metrics.PeriodMetrics{
			"10WD": {DateRange: metrics.DateRange{Start: "2025-07-04", End: "2025-07-17"}, WorkingDays: 10},
			"5WD": {
				DateRange:     metrics.DateRange{Start: "2025-07-11", End: "2025-07-17"},
				WorkingDays:   5,
				BillableHours: metrics.HoursStats{Mean: &mean, Count: 5},
				LateWorkCount: 1,
			},
		},
		LastSyncAt: "2025-07-18T06:00:00Z",
		LastRunID:  "abc",
	})

	for _, want := range []string{
		"2025-07-17", "8.25h", "10.50h", "20:38", "17:30", "yes",
		"5WD", "7.50h", "1/5", "2025-07-11 .. 2025-07-17",
		"Last sync 2025-07-18T06:00:00Z (run abc)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "5WD") > strings.Index(out, "10WD") {
		t.Errorf("windows not ordered by size:\n%s", out)
	}
}

func TestRenderResult(t *testing.T) {
	res := &pipeline.Result{
		RunID:       "run-1",
		Start:       time.Date(2025, 6, 18, 0, 0, 0, 0, time.UTC),
		End:         time.Date(2025, 7, 19, 0, 0, 0, 0, time.UTC),
		Fetched:     40,
		Dropped:     2,
		Days:        map[string]metrics.DayMetrics{"2025-07-17": {}},
		HistoryDays: 31,
		DryRun:      true,
	}
	out := RenderResult(res)
	for _, want := range []string{"Dry run", "40 fetched, 2 dropped", "1 updated, 31 in history", "run-1", "2025-06-18 .. 2025-07-19"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
