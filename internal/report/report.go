// Package report renders metrics for the terminal.
package report

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/christopherklint97/balancr/internal/metrics"
	"github.com/christopherklint97/balancr/internal/pipeline"
)

// Status is what 'balancr status' shows.
type Status struct {
	Days       []metrics.DayMetrics
	Rolling    map[string]metrics.PeriodMetrics
	LastSyncAt string
	LastRunID  string
}

func RenderStatus(s Status) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Work/life balance"))
	b.WriteString("\n")
	if s.LastSyncAt != "" {
		b.WriteString(subtitleStyle.Render(fmt.Sprintf("Last sync %s (run %s)", s.LastSyncAt, s.LastRunID)))
		b.WriteString("\n\n")
	}

	if len(s.Days) == 0 {
		b.WriteString(dimStyle.Render("No days recorded yet. Run 'balancr sync' first."))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(boxStyle.Render(dayTable(s.Days)))
	b.WriteString("\n")

	if len(s.Rolling) > 0 {
		b.WriteString("\n")
		b.WriteString(boxStyle.Render(windowTable(s.Rolling)))
		b.WriteString("\n")
	}
	return b.String()
}

func dayTable(days []metrics.DayMetrics) string {
	rows := []string{headerStyle.Render(fmt.Sprintf("%-10s  %8s  %6s  %9s  %7s  %s", "date", "billable", "away", "back home", "HO end", "late"))}
	for _, d := range days {
		late := dimStyle.Render("no")
		if d.LateWork {
			late = warningStyle.Render("yes")
		}
		rows = append(rows, fmt.Sprintf("%-10s  %8s  %6s  %9s  %7s  %s",
			d.Date,
			formatHours(d.BillableHours),
			formatHours(d.AwayFromHomeHours),
			formatClock(d.BackHomeTime),
			formatClock(d.HomeOfficeEndTime),
			late,
		))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func windowTable(windows map[string]metrics.PeriodMetrics) string {
	keys := make([]string, 0, len(windows))
	for k := range windows {
		keys = append(keys, k)
	}
	// "5WD" before "10WD"
	slices.SortFunc(keys, func(a, b string) int {
		return windowSize(a) - windowSize(b)
	})

	rows := []string{headerStyle.Render(fmt.Sprintf("%-6s  %-23s  %9s  %9s  %9s  %s", "window", "range", "billable", "back home", "HO end", "late days"))}
	for _, k := range keys {
		w := windows[k]
		late := goodStyle.Render(strconv.Itoa(w.LateWorkCount))
		if w.LateWorkCount > 0 {
			late = warningStyle.Render(strconv.Itoa(w.LateWorkCount))
		}
		rows = append(rows, fmt.Sprintf("%-6s  %-23s  %9s  %9s  %9s  %s/%d",
			k,
			w.DateRange.Start+" .. "+w.DateRange.End,
			formatHoursPtr(w.BillableHours.Mean),
			formatClock(w.BackHomeTime.Mean),
			formatClock(w.HomeOfficeEndTime.Mean),
			late, w.WorkingDays,
		))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// RenderResult summarizes a finished sync.
func RenderResult(res *pipeline.Result) string {
	var b strings.Builder

	title := "Sync complete"
	if res.DryRun {
		title = "Dry run (nothing written)"
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Range:    %s .. %s\n", res.Start.Format(metrics.DateLayout), res.End.Format(metrics.DateLayout)))
	b.WriteString(fmt.Sprintf("Entries:  %d fetched, %d dropped\n", res.Fetched, res.Dropped))
	b.WriteString(fmt.Sprintf("Days:     %d updated, %d in history\n", len(res.Days), res.HistoryDays))
	b.WriteString(fmt.Sprintf("Periods:  %d weeks, %d months, %d windows\n", len(res.Weekly), len(res.Monthly), len(res.Rolling)))
	b.WriteString(dimStyle.Render("Run " + res.RunID))
	b.WriteString("\n")
	return b.String()
}

func windowSize(key string) int {
	n, _ := strconv.Atoi(strings.TrimSuffix(key, "WD"))
	return n
}

func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', 2, 64) + "h"
}

func formatHoursPtr(h *float64) string {
	if h == nil {
		return "-"
	}
	return formatHours(*h)
}

func formatClock(c *metrics.ClockTime) string {
	if c == nil {
		return "-"
	}
	return c.String()
}
