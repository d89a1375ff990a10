package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/christopherklint97/balancr/internal/metrics"
	"github.com/rs/zerolog"
)

// FileStore keeps history as JSON documents in one directory, the layout the
// dashboard reads.
type FileStore struct {
	dir    string
	label  string
	logger *zerolog.Logger
	now    func() time.Time
}

func NewFileStore(dir, sourceLabel string, logger *zerolog.Logger) *FileStore {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FileStore{dir: dir, label: sourceLabel, logger: logger, now: time.Now}
}

func (s *FileStore) Dir() string { return s.dir }

// Days returns the stored daily history, empty when no document exists yet.
func (s *FileStore) Days(_ context.Context) (map[string]metrics.DayMetrics, error) {
	var doc DailyDocument
	found, err := readJSON(filepath.Join(s.dir, DailyFileName), &doc)
	if err != nil {
		return nil, fmt.Errorf("reading daily history: %w", err)
	}
	if !found {
		return map[string]metrics.DayMetrics{}, nil
	}
	return ByDate(doc.DailyMetrics), nil
}

func (s *FileStore) UpsertDays(ctx context.Context, days []metrics.DayMetrics) error {
	existing, err := s.Days(ctx)
	if err != nil {
		return err
	}
	return s.WriteDaily(ctx, Merge(existing, ByDate(days)))
}

// WriteDaily replaces the daily document with days.
func (s *FileStore) WriteDaily(ctx context.Context, days map[string]metrics.DayMetrics) error {
	sorted := metrics.SortedDays(days)
	doc := DailyDocument{
		Provenance:   s.provenance(ctx, dailyRange(sorted)),
		DailyMetrics: sorted,
	}
	if err := writeJSONAtomic(filepath.Join(s.dir, DailyFileName), doc); err != nil {
		return fmt.Errorf("writing daily history: %w", err)
	}
	s.logger.Debug().Int("days", len(sorted)).Str("file", DailyFileName).Msg("wrote daily history")
	return nil
}

// LastRun returns the provenance of the daily document, false when none has
// been written.
func (s *FileStore) LastRun(_ context.Context) (Provenance, bool, error) {
	var doc DailyDocument
	found, err := readJSON(filepath.Join(s.dir, DailyFileName), &doc)
	if err != nil {
		return Provenance{}, false, fmt.Errorf("reading daily history: %w", err)
	}
	return doc.Provenance, found, nil
}

// ReadPeriods returns the stored periods of kind, empty when missing.
func (s *FileStore) ReadPeriods(_ context.Context, kind PeriodKind) (map[string]metrics.PeriodMetrics, error) {
	var doc PeriodDocument
	found, err := readJSON(filepath.Join(s.dir, kind.FileName()), &doc)
	if err != nil {
		return nil, fmt.Errorf("reading %s aggregations: %w", kind, err)
	}
	if !found || doc.Periods == nil {
		return map[string]metrics.PeriodMetrics{}, nil
	}
	return doc.Periods, nil
}

// WritePeriods merges periods into the document of kind by key. The rolling
// working-day document is replaced instead, so a window dropped from the
// configuration disappears.
func (s *FileStore) WritePeriods(ctx context.Context, kind PeriodKind, periods map[string]metrics.PeriodMetrics) error {
	merged := Merge(nil, periods)
	if kind != WorkingDays {
		existing, err := s.ReadPeriods(ctx, kind)
		if err != nil {
			return err
		}
		merged = Merge(existing, periods)
	}
	doc := PeriodDocument{
		Provenance: s.provenance(ctx, periodsRange(merged)),
		Periods:    merged,
	}
	if err := writeJSONAtomic(filepath.Join(s.dir, kind.FileName()), doc); err != nil {
		return fmt.Errorf("writing %s aggregations: %w", kind, err)
	}
	s.logger.Debug().Int("periods", len(merged)).Str("file", kind.FileName()).Msg("wrote aggregations")
	return nil
}

func (s *FileStore) provenance(ctx context.Context, r metrics.DateRange) Provenance {
	return Provenance{
		GeneratedAt: s.now().UTC().Truncate(time.Second),
		DateRange:   r,
		SourceLabel: s.label,
		RunID:       RunID(ctx),
	}
}

func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return true, nil
}

// writeJSONAtomic writes via a temp file and rename so readers never see a
// partial document.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
