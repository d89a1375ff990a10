package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/christopherklint97/balancr/internal/pipeline"
)

// Runner performs one sync over [start, end).
type Runner interface {
	Run(ctx context.Context, start, end time.Time) (*pipeline.Result, error)
}

type Scheduler struct {
	runner       Runner
	interval     time.Duration
	lookbackDays int
	loc          *time.Location
	logger       *zerolog.Logger
	now          func() time.Time
}

func New(runner Runner, interval time.Duration, lookbackDays int, loc *time.Location, logger *zerolog.Logger) *Scheduler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if loc == nil {
		loc = time.UTC
	}
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Scheduler{
		runner:       runner,
		interval:     interval,
		lookbackDays: lookbackDays,
		loc:          loc,
		logger:       logger,
		now:          time.Now,
	}
}

// Run syncs once immediately and then on every aligned tick until ctx is
// cancelled. A failed sync is logged and retried on the next tick.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info().Dur("interval", s.interval).Int("lookback_days", s.lookbackDays).Msg("scheduler started")

	for {
		s.tick(ctx)

		next := s.nextAlignedTick(s.now(), s.interval)
		s.logger.Info().Str("next", next.Format(time.RFC3339)).Msg("next sync scheduled")

		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scheduler stopped")
			return nil
		case <-time.After(time.Until(next)):
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	start, end := SyncWindow(s.now(), s.lookbackDays, s.loc)
	res, err := s.runner.Run(ctx, start, end)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error().Err(err).Msg("scheduled sync failed")
		return
	}
	s.logger.Info().Str("run_id", res.RunID).Int("days", len(res.Days)).Msg("scheduled sync finished")
}

// nextAlignedTick returns the first multiple of interval after local
// midnight that is later than now. Offsets are wall-clock, so a daily tick
// stays at midnight across DST changes.
func (s *Scheduler) nextAlignedTick(now time.Time, interval time.Duration) time.Time {
	local := now.In(s.loc)
	y, m, d := local.Date()

	if interval%(24*time.Hour) == 0 {
		return time.Date(y, m, d, 0, 0, 0, 0, s.loc).AddDate(0, 0, int(interval/(24*time.Hour)))
	}

	wall := time.Duration(local.Hour())*time.Hour +
		time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second +
		time.Duration(local.Nanosecond())
	offset := (wall/interval + 1) * interval
	for {
		var next time.Time
		if offset >= 24*time.Hour {
			next = time.Date(y, m, d+1, 0, 0, 0, 0, s.loc)
		} else {
			next = time.Date(y, m, d, 0, 0, 0, int(offset), s.loc)
		}
		// a repeated wall hour can resolve before now
		if next.After(now) {
			return next
		}
		offset += interval
	}
}

// SyncWindow covers the last lookbackDays local days up to and including
// today.
func SyncWindow(now time.Time, lookbackDays int, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return today.AddDate(0, 0, -lookbackDays), today.AddDate(0, 0, 1)
}
