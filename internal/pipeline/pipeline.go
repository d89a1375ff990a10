// Package pipeline runs one sync: fetch entries for a range, derive daily
// metrics, merge them into the history and publish the roll-ups.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/christopherklint97/balancr/internal/history"
	"github.com/christopherklint97/balancr/internal/metrics"
)

// Fetcher returns the raw entries starting in [start, end).
type Fetcher interface {
	Fetch(ctx context.Context, start, end time.Time) ([]metrics.RawEntry, error)
}

// Publisher writes the documents the dashboard reads.
type Publisher interface {
	WriteDaily(ctx context.Context, days map[string]metrics.DayMetrics) error
	WritePeriods(ctx context.Context, kind history.PeriodKind, periods map[string]metrics.PeriodMetrics) error
}

// RunRecorder is implemented by stores that keep sync provenance.
type RunRecorder interface {
	RecordRun(ctx context.Context, runID string, at time.Time) error
}

type Options struct {
	Location *time.Location
	Rules    metrics.Rules
	Windows  []int
	DryRun   bool
}

type Pipeline struct {
	fetcher    Fetcher
	store      history.Store
	publisher  Publisher
	normalizer *metrics.Normalizer
	aggregator *metrics.Aggregator
	windows    []int
	dryRun     bool
	logger     *zerolog.Logger
	now        func() time.Time
	newRunID   func() string
}

// New wires a pipeline. publisher may be nil when only the store is kept.
func New(fetcher Fetcher, store history.Store, publisher Publisher, opts Options, logger *zerolog.Logger) *Pipeline {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	windows := opts.Windows
	if len(windows) == 0 {
		windows = metrics.DefaultRollingWindows
	}
	return &Pipeline{
		fetcher:    fetcher,
		store:      store,
		publisher:  publisher,
		normalizer: metrics.NewNormalizer(opts.Location, logger),
		aggregator: metrics.NewAggregator(opts.Rules.WithDefaults()),
		windows:    windows,
		dryRun:     opts.DryRun,
		logger:     logger,
		now:        time.Now,
		newRunID:   uuid.NewString,
	}
}

type Result struct {
	RunID   string
	Start   time.Time
	End     time.Time
	Fetched int
	Dropped int
	// Days holds the metrics derived in this run only.
	Days map[string]metrics.DayMetrics
	// HistoryDays is the size of the merged history.
	HistoryDays int
	Weekly      map[string]metrics.PeriodMetrics
	Monthly     map[string]metrics.PeriodMetrics
	Rolling     map[string]metrics.PeriodMetrics
	DryRun      bool
}

// Run syncs [start, end). Nothing is written when the fetch fails or the
// pipeline is a dry run.
func (p *Pipeline) Run(ctx context.Context, start, end time.Time) (*Result, error) {
	runID := p.newRunID()
	ctx = history.WithRunID(ctx, runID)
	log := p.logger.With().Str("run_id", runID).Logger()

	raw, err := p.fetcher.Fetch(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetching entries: %w", err)
	}

	entries, dropped := p.normalizer.NormalizeAll(raw)
	days := p.aggregator.Aggregate(entries)
	log.Debug().Int("raw", len(raw)).Int("dropped", dropped).Int("days", len(days)).Msg("aggregated entries")

	existing, err := p.store.Days(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	all := history.Merge(existing, days)

	weekly, err := metrics.Weekly(all)
	if err != nil {
		return nil, fmt.Errorf("rolling up weeks: %w", err)
	}
	monthly, err := metrics.Monthly(all)
	if err != nil {
		return nil, fmt.Errorf("rolling up months: %w", err)
	}
	rolling := metrics.Rolling(all, p.windows)

	res := &Result{
		RunID:       runID,
		Start:       start,
		End:         end,
		Fetched:     len(raw),
		Dropped:     dropped,
		Days:        days,
		HistoryDays: len(all),
		Weekly:      weekly,
		Monthly:     monthly,
		Rolling:     rolling,
		DryRun:      p.dryRun,
	}

	if p.dryRun {
		log.Info().Int("days", len(days)).Msg("dry run, nothing written")
		return res, nil
	}

	if err := p.store.UpsertDays(ctx, metrics.SortedDays(days)); err != nil {
		return nil, fmt.Errorf("storing days: %w", err)
	}
	if err := p.publish(ctx, all, res); err != nil {
		return nil, err
	}
	if rec, ok := p.store.(RunRecorder); ok {
		if err := rec.RecordRun(ctx, runID, p.now()); err != nil {
			return nil, err
		}
	}

	log.Info().
		Int("fetched", res.Fetched).
		Int("dropped", res.Dropped).
		Int("days", len(days)).
		Int("history_days", res.HistoryDays).
		Int("windows", len(rolling)).
		Msg("sync complete")
	return res, nil
}

func (p *Pipeline) publish(ctx context.Context, all map[string]metrics.DayMetrics, res *Result) error {
	if p.publisher == nil {
		return nil
	}
	// the file store already wrote the daily document during the upsert
	if any(p.publisher) != any(p.store) {
		if err := p.publisher.WriteDaily(ctx, all); err != nil {
			return fmt.Errorf("publishing daily history: %w", err)
		}
	}
	periods := map[history.PeriodKind]map[string]metrics.PeriodMetrics{
		history.Weekly:      res.Weekly,
		history.Monthly:     res.Monthly,
		history.WorkingDays: res.Rolling,
	}
	for _, kind := range history.PeriodKinds {
		if err := p.publisher.WritePeriods(ctx, kind, periods[kind]); err != nil {
			return fmt.Errorf("publishing %s aggregations: %w", kind, err)
		}
	}
	return nil
}
