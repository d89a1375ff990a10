// Package history persists daily metrics keyed by date and the period
// documents derived from them. Every write merges into what is already stored
// so that a run over a short window never erases older days.
package history

import (
	"context"
	"maps"
	"sync"

	"github.com/christopherklint97/balancr/internal/metrics"
)

// Store is the day-level history backend.
type Store interface {
	Days(ctx context.Context) (map[string]metrics.DayMetrics, error)
	UpsertDays(ctx context.Context, days []metrics.DayMetrics) error
}

// Merge returns a new map with every key of existing, where keys present in
// incoming take the incoming value. Neither input is modified.
func Merge[V any](existing, incoming map[string]V) map[string]V {
	out := make(map[string]V, len(existing)+len(incoming))
	maps.Copy(out, existing)
	maps.Copy(out, incoming)
	return out
}

// ByDate indexes days by their date. Later duplicates win.
func ByDate(days []metrics.DayMetrics) map[string]metrics.DayMetrics {
	out := make(map[string]metrics.DayMetrics, len(days))
	for _, d := range days {
		out[d.Date] = d
	}
	return out
}

type runIDKey struct{}

// WithRunID attaches the id stamped into documents written during a run.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// MemoryStore keeps history in process. Used for dry runs and tests.
type MemoryStore struct {
	mu   sync.Mutex
	days map[string]metrics.DayMetrics
}

func NewMemoryStore(seed ...metrics.DayMetrics) *MemoryStore {
	return &MemoryStore{days: ByDate(seed)}
}

func (s *MemoryStore) Days(_ context.Context) (map[string]metrics.DayMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.days), nil
}

func (s *MemoryStore) UpsertDays(_ context.Context, days []metrics.DayMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.days = Merge(s.days, ByDate(days))
	return nil
}
