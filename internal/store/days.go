package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/christopherklint97/balancr/internal/metrics"
)

const dayColumns = `date, billable_hours, away_from_home_hours, back_home_min, home_office_end_min, late_work, total_entries`

// UpsertDays writes the batch in one transaction; a date already stored is
// replaced.
func (db *DB) UpsertDays(ctx context.Context, days []metrics.DayMetrics) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO day_metrics (`+dayColumns+`, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(date) DO UPDATE SET
			billable_hours = excluded.billable_hours,
			away_from_home_hours = excluded.away_from_home_hours,
			back_home_min = excluded.back_home_min,
			home_office_end_min = excluded.home_office_end_min,
			late_work = excluded.late_work,
			total_entries = excluded.total_entries,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, d := range days {
		if _, err := stmt.ExecContext(ctx,
			d.Date, d.BillableHours, d.AwayFromHomeHours,
			clockToNull(d.BackHomeTime), clockToNull(d.HomeOfficeEndTime),
			d.LateWork, d.TotalEntries,
		); err != nil {
			return fmt.Errorf("upserting day %s: %w", d.Date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing days: %w", err)
	}
	return nil
}

func (db *DB) Days(ctx context.Context) (map[string]metrics.DayMetrics, error) {
	list, err := db.queryDays(ctx, `SELECT `+dayColumns+` FROM day_metrics ORDER BY date ASC`)
	if err != nil {
		return nil, err
	}
	out := make(map[string]metrics.DayMetrics, len(list))
	for _, d := range list {
		out[d.Date] = d
	}
	return out, nil
}

// Recent returns the n latest days in ascending order.
func (db *DB) Recent(ctx context.Context, n int) ([]metrics.DayMetrics, error) {
	list, err := db.queryDays(ctx,
		`SELECT `+dayColumns+` FROM day_metrics ORDER BY date DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}
	return list, nil
}

// RecordRun stores the provenance of the last successful sync.
func (db *DB) RecordRun(ctx context.Context, runID string, at time.Time) error {
	if err := db.SetState(ctx, StateLastRunID, runID); err != nil {
		return fmt.Errorf("recording run id: %w", err)
	}
	if err := db.SetState(ctx, StateLastSyncAt, at.UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("recording sync time: %w", err)
	}
	return nil
}

func (db *DB) queryDays(ctx context.Context, query string, args ...any) ([]metrics.DayMetrics, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying days: %w", err)
	}
	defer rows.Close()

	var days []metrics.DayMetrics
	for rows.Next() {
		var d metrics.DayMetrics
		var backHome, homeEnd sql.NullInt64
		if err := rows.Scan(&d.Date, &d.BillableHours, &d.AwayFromHomeHours, &backHome, &homeEnd, &d.LateWork, &d.TotalEntries); err != nil {
			return nil, fmt.Errorf("scanning day: %w", err)
		}
		d.BackHomeTime = nullToClock(backHome)
		d.HomeOfficeEndTime = nullToClock(homeEnd)
		days = append(days, d)
	}
	return days, rows.Err()
}

func clockToNull(c *metrics.ClockTime) sql.NullInt64 {
	if c == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(c.Minutes()), Valid: true}
}

func nullToClock(n sql.NullInt64) *metrics.ClockTime {
	if !n.Valid {
		return nil
	}
	c := metrics.ClockTime(n.Int64)
	return &c
}
