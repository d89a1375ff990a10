package history

import (
	"time"

	"github.com/christopherklint97/balancr/internal/metrics"
)

// Provenance is stamped on every document.
type Provenance struct {
	GeneratedAt time.Time         `json:"generatedAt"`
	DateRange   metrics.DateRange `json:"dateRange"`
	SourceLabel string            `json:"sourceLabel"`
	RunID       string            `json:"runId"`
}

// DailyDocument is history_daily.json. Days without entries are absent.
type DailyDocument struct {
	Provenance
	DailyMetrics []metrics.DayMetrics `json:"dailyMetrics"`
}

type PeriodDocument struct {
	Provenance
	Periods map[string]metrics.PeriodMetrics `json:"periods"`
}

type PeriodKind string

const (
	Weekly      PeriodKind = "weekly"
	Monthly     PeriodKind = "monthly"
	WorkingDays PeriodKind = "working_days"
)

var PeriodKinds = []PeriodKind{Weekly, Monthly, WorkingDays}

func (k PeriodKind) FileName() string {
	return string(k) + "_aggregations.json"
}

const DailyFileName = "history_daily.json"

func dailyRange(days []metrics.DayMetrics) metrics.DateRange {
	if len(days) == 0 {
		return metrics.DateRange{}
	}
	return metrics.DateRange{Start: days[0].Date, End: days[len(days)-1].Date}
}

func periodsRange(periods map[string]metrics.PeriodMetrics) metrics.DateRange {
	var r metrics.DateRange
	for _, p := range periods {
		if r.Start == "" || p.DateRange.Start < r.Start {
			r.Start = p.DateRange.Start
		}
		if p.DateRange.End > r.End {
			r.End = p.DateRange.End
		}
	}
	return r
}
