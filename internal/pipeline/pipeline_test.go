package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/christopherklint97/balancr/internal/history"
	"github.com/christopherklint97/balancr/internal/metrics"
)

type fakeFetcher struct {
	entries    []metrics.RawEntry
	err        error
	start, end time.Time
}

func (f *fakeFetcher) Fetch(_ context.Context, start, end time.Time) ([]metrics.RawEntry, error) {
	f.start, f.end = start, end
	return f.entries, f.err
}

type fakePublisher struct {
	daily   map[string]metrics.DayMetrics
	periods map[history.PeriodKind]map[string]metrics.PeriodMetrics
	runIDs  []string
}

func (p *fakePublisher) WriteDaily(ctx context.Context, days map[string]metrics.DayMetrics) error {
	p.daily = days
	p.runIDs = append(p.runIDs, history.RunID(ctx))
	return nil
}

func (p *fakePublisher) WritePeriods(ctx context.Context, kind history.PeriodKind, periods map[string]metrics.PeriodMetrics) error {
	if p.periods == nil {
		p.periods = make(map[history.PeriodKind]map[string]metrics.PeriodMetrics)
	}
	p.periods[kind] = periods
	p.runIDs = append(p.runIDs, history.RunID(ctx))
	return nil
}

func strPtr(s string) *string { return &s }

// commuteDay is the 2025-07-17 scenario in UTC: commute, office, commute home
// arriving at 20:38 local.
func commuteDay() []metrics.RawEntry {
	return []metrics.RawEntry{
		{Start: "2025-07-17T05:30:00Z", Stop: strPtr("2025-07-17T06:15:00Z"), DurationSeconds: 2700, Tags: []string{"Commuting"}},
		{Start: "2025-07-17T06:15:00Z", Stop: strPtr("2025-07-17T17:45:00Z"), DurationSeconds: 41400, Billable: true},
		{Start: "2025-07-17T17:45:00Z", Stop: strPtr("2025-07-17T18:38:00Z"), DurationSeconds: 3180, Tags: []string{"Commuting"}},
		{Start: "2025-07-17T19:00:00Z", DurationSeconds: -1752780000}, // running
	}
}

func newTestPipeline(t *testing.T, f Fetcher, s history.Store, pub Publisher, dryRun bool) *Pipeline {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Zurich")
	if err != nil {
		t.Fatal(err)
	}
	p := New(f, s, pub, Options{Location: loc, Windows: []int{1, 5}, DryRun: dryRun}, nil)
	p.newRunID = func() string { return "run-test" }
	p.now = func() time.Time { return time.Date(2025, 7, 18, 6, 0, 0, 0, time.UTC) }
	return p
}

func TestRun_WritesStoreAndDocuments(t *testing.T) {
	ctx := context.Background()
	f := &fakeFetcher{entries: commuteDay()}
	s := history.NewMemoryStore(metrics.DayMetrics{Date: "2025-07-16", BillableHours: 6, TotalEntries: 2})
	pub := &fakePublisher{}

	start := time.Date(2025, 7, 17, 0, 0, 0, 0, time.UTC)
	res, err := newTestPipeline(t, f, s, pub, false).Run(ctx, start, start.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.RunID != "run-test" || res.Fetched != 4 || res.Dropped != 1 {
		t.Errorf("result = %+v", res)
	}
	d, ok := res.Days["2025-07-17"]
	if !ok {
		t.Fatalf("missing 2025-07-17 in %v", res.Days)
	}
	if d.BackHomeTime == nil || d.BackHomeTime.String() != "20:38" || !d.LateWork {
		t.Errorf("day = %+v", d)
	}
	if res.HistoryDays != 2 {
		t.Errorf("HistoryDays = %d, want 2", res.HistoryDays)
	}

	stored, _ := s.Days(ctx)
	if len(stored) != 2 || stored["2025-07-17"].TotalEntries != 3 {
		t.Errorf("stored = %v", stored)
	}

	if len(pub.daily) != 2 {
		t.Errorf("published %d days, want full history of 2", len(pub.daily))
	}
	if w := pub.periods[history.Weekly]["2025-W29"]; w.WorkingDays != 2 {
		t.Errorf("weekly = %+v", pub.periods[history.Weekly])
	}
	if _, ok := pub.periods[history.Monthly]["2025-07"]; !ok {
		t.Errorf("monthly = %+v", pub.periods[history.Monthly])
	}
	rolling := pub.periods[history.WorkingDays]
	if _, ok := rolling["1WD"]; !ok || len(rolling) != 1 {
		t.Errorf("rolling = %v, want only 1WD", rolling)
	}
	for _, id := range pub.runIDs {
		if id != "run-test" {
			t.Errorf("document written with run id %q", id)
		}
	}
}

func TestRun_FetchErrorWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := &fakeFetcher{err: errors.New("API error (status 403)")}
	s := history.NewMemoryStore()
	pub := &fakePublisher{}

	_, err := newTestPipeline(t, f, s, pub, false).Run(ctx, time.Now().AddDate(0, 0, -1), time.Now())
	if err == nil {
		t.Fatal("expected error")
	}
	if days, _ := s.Days(ctx); len(days) != 0 {
		t.Errorf("store written: %v", days)
	}
	if pub.daily != nil || pub.periods != nil {
		t.Error("documents written after failed fetch")
	}
}

func TestRun_DryRun(t *testing.T) {
	ctx := context.Background()
	s := history.NewMemoryStore()
	pub := &fakePublisher{}

	res, err := newTestPipeline(t, &fakeFetcher{entries: commuteDay()}, s, pub, true).Run(ctx, time.Now(), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if !res.DryRun || len(res.Days) != 1 || len(res.Weekly) != 1 {
		t.Errorf("result = %+v", res)
	}
	if days, _ := s.Days(ctx); len(days) != 0 {
		t.Errorf("dry run wrote to store: %v", days)
	}
	if pub.daily != nil || pub.periods != nil {
		t.Error("dry run published documents")
	}
}

func TestRun_FileStoreAsStoreAndPublisher(t *testing.T) {
	ctx := context.Background()
	fs := history.NewFileStore(t.TempDir(), "DRE-P", nil)

	_, err := newTestPipeline(t, &fakeFetcher{entries: commuteDay()}, fs, fs, false).Run(ctx, time.Now(), time.Now())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, name := range []string{
		history.DailyFileName,
		history.Weekly.FileName(),
		history.Monthly.FileName(),
		history.WorkingDays.FileName(),
	} {
		data, err := os.ReadFile(filepath.Join(fs.Dir(), name))
		if err != nil {
			t.Fatalf("reading %s: %v", name, err)
		}
		var doc history.Provenance
		if err := json.Unmarshal(data, &doc); err != nil {
			t.Fatalf("parsing %s: %v", name, err)
		}
		if doc.RunID != "run-test" || doc.SourceLabel != "DRE-P" {
			t.Errorf("%s provenance = %+v", name, doc)
		}
	}
}

func TestNew_PartialRulesKeepDefaults(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Zurich")
	if err != nil {
		t.Fatal(err)
	}
	f := &fakeFetcher{entries: []metrics.RawEntry{
		{Start: "2025-07-17T06:00:00Z", Stop: strPtr("2025-07-17T06:30:00Z"), DurationSeconds: 1800, Tags: []string{"Commuting"}},
	}}
	p := New(f, history.NewMemoryStore(), nil, Options{Location: loc, Rules: metrics.Rules{HomeOfficeTag: "Remote"}, DryRun: true}, nil)

	start := time.Date(2025, 7, 17, 0, 0, 0, 0, time.UTC)
	res, err := p.Run(context.Background(), start, start.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	d := res.Days["2025-07-17"]
	if d.LateWork {
		t.Error("a morning commute must not count as late work")
	}
	if d.BackHomeTime == nil || d.BackHomeTime.String() != "08:30" {
		t.Errorf("backHomeTime = %v, want 08:30 from the default commuting tag", d.BackHomeTime)
	}
}

func TestRun_EmptyFetch(t *testing.T) {
	ctx := context.Background()
	s := history.NewMemoryStore()

	res, err := newTestPipeline(t, &fakeFetcher{}, s, nil, false).Run(ctx, time.Now(), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Days) != 0 || len(res.Rolling) != 0 || len(res.Weekly) != 0 {
		t.Errorf("result = %+v", res)
	}
}
