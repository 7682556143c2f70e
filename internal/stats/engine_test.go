package stats

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"starcatalog/searchservice/internal/domain"
	"starcatalog/searchservice/internal/repository/memory"
)

type failingLog struct {
	err error
}

func (f failingLog) Append(ctx context.Context, entry domain.QueryLogEntry) error {
	return f.err
}

func (f failingLog) All(ctx context.Context) ([]domain.QueryLogEntry, error) {
	return nil, f.err
}

// summarizingLog aggregates on its own; All fails so tests notice a fallback to the raw log.
type summarizingLog struct {
	summary Summary
	err     error
	topN    int
}

func (s *summarizingLog) Append(ctx context.Context, entry domain.QueryLogEntry) error {
	return nil
}

func (s *summarizingLog) All(ctx context.Context) ([]domain.QueryLogEntry, error) {
	return nil, errors.New("raw log must not be read")
}

func (s *summarizingLog) Summarize(ctx context.Context, topN int) (Summary, error) {
	s.topN = topN
	return s.summary, s.err
}

func steppingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

func TestCurrentStatsComputesOnFirstAccess(t *testing.T) {
	queries := memory.NewQueryLogRepository()
	snapshots := memory.NewSnapshotRepository()
	engine := NewEngine(queries, snapshots, WithClock(steppingClock(time.Date(2025, 11, 30, 9, 0, 0, 0, time.UTC))))

	if err := engine.LogSearch(context.Background(), entryAt(domain.ResourcePeople, "luke", 120, time.Date(2025, 11, 30, 9, 0, 0, 0, time.UTC))); err != nil {
		t.Fatalf("log search: %v", err)
	}

	first, err := engine.CurrentStats(context.Background())
	if err != nil {
		t.Fatalf("current stats: %v", err)
	}
	if first.TotalSearches != 1 || snapshots.Count() != 1 {
		t.Fatalf("expected a stored snapshot with 1 search, got %#v (stored %d)", first, snapshots.Count())
	}

	// Later searches are not visible until the next recompute.
	_ = engine.LogSearch(context.Background(), entryAt(domain.ResourceFilms, "hope", 80, time.Date(2025, 11, 30, 9, 5, 0, 0, time.UTC)))
	again, err := engine.CurrentStats(context.Background())
	if err != nil {
		t.Fatalf("current stats: %v", err)
	}
	if again.TotalSearches != 1 || snapshots.Count() != 1 {
		t.Fatalf("expected cached latest snapshot, got %#v (stored %d)", again, snapshots.Count())
	}

	fresh, err := engine.Recompute(context.Background())
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if fresh.TotalSearches != 2 || snapshots.Count() != 2 {
		t.Fatalf("expected new snapshot with 2 searches, got %#v (stored %d)", fresh, snapshots.Count())
	}
	latest, _ := engine.CurrentStats(context.Background())
	if latest.TotalSearches != 2 {
		t.Fatalf("expected latest snapshot to be the recomputed one, got %#v", latest)
	}
}

func TestCurrentStatsOnEmptyLog(t *testing.T) {
	engine := NewEngine(memory.NewQueryLogRepository(), memory.NewSnapshotRepository())
	snapshot, err := engine.CurrentStats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snapshot.TotalSearches != 0 || snapshot.AvgResponseMs != nil || snapshot.BusiestHour != nil {
		t.Fatalf("unexpected empty snapshot: %#v", snapshot)
	}
}

func TestLogSearchFillsTimestamp(t *testing.T) {
	queries := memory.NewQueryLogRepository()
	fixed := time.Date(2025, 11, 30, 14, 0, 0, 0, time.UTC)
	engine := NewEngine(queries, memory.NewSnapshotRepository(), WithClock(func() time.Time { return fixed }))

	_ = engine.LogSearch(context.Background(), domain.QueryLogEntry{Resource: domain.ResourceFilms})
	entries, _ := queries.All(context.Background())
	if len(entries) != 1 || !entries[0].SearchedAt.Equal(fixed) {
		t.Fatalf("unexpected entries: %#v", entries)
	}
}

func TestEngineSurfacesStoreErrors(t *testing.T) {
	storeErr := errors.New("store unavailable")
	engine := NewEngine(failingLog{err: storeErr}, memory.NewSnapshotRepository())

	if err := engine.LogSearch(context.Background(), domain.QueryLogEntry{}); !errors.Is(err, storeErr) {
		t.Fatalf("expected store error, got %v", err)
	}
	if _, err := engine.Recompute(context.Background()); !errors.Is(err, storeErr) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestConcurrentRecomputesProduceValidSnapshots(t *testing.T) {
	queries := memory.NewQueryLogRepository()
	snapshots := memory.NewSnapshotRepository()
	engine := NewEngine(queries, snapshots)
	at := time.Date(2025, 11, 30, 16, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		_ = engine.LogSearch(context.Background(), entryAt(domain.ResourcePeople, "luke", 50, at))
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snapshot, err := engine.Recompute(context.Background())
			if err != nil {
				t.Errorf("recompute: %v", err)
				return
			}
			if snapshot.TotalSearches != 10 {
				t.Errorf("expected 10 searches, got %d", snapshot.TotalSearches)
			}
		}()
	}
	wg.Wait()

	if snapshots.Count() != 8 {
		t.Fatalf("expected 8 stored snapshots, got %d", snapshots.Count())
	}
	entries, _ := queries.All(context.Background())
	if len(entries) != 10 {
		t.Fatalf("recompute must not touch the log, got %d entries", len(entries))
	}
}

func TestRecomputeUsesStoreAggregation(t *testing.T) {
	var hours [24]int
	hours[7] = 2
	hours[21] = 2
	log := &summarizingLog{summary: Summary{
		Total:           4,
		TotalResponseMs: 401,
		Terms: []domain.TermHits{
			{Term: "yoda", Hits: 1},
			{Term: "luke", Hits: 3},
		},
		Resources: []domain.ResourceHits{
			{Resource: domain.ResourceFilms, Hits: 2},
			{Resource: domain.ResourcePeople, Hits: 2},
		},
		Hours: hours,
	}}
	snapshots := memory.NewSnapshotRepository()
	engine := NewEngine(log, snapshots)

	snapshot, err := engine.Recompute(context.Background())
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if log.topN != topQueriesLimit {
		t.Fatalf("expected top %d terms requested, got %d", topQueriesLimit, log.topN)
	}
	if snapshot.TotalSearches != 4 || snapshot.TopQueries[0].Term != "luke" || snapshot.TopQueries[1].Term != "yoda" {
		t.Fatalf("unexpected snapshot: %#v", snapshot)
	}
	if snapshot.ByResource[0].Resource != domain.ResourceFilms {
		t.Fatalf("expected films first on a tie, got %#v", snapshot.ByResource)
	}
	if snapshot.AvgResponseMs == nil || *snapshot.AvgResponseMs != 100.25 {
		t.Fatalf("unexpected average: %v", snapshot.AvgResponseMs)
	}
	if snapshot.BusiestHour == nil || snapshot.BusiestHour.Hour != 7 {
		t.Fatalf("expected busiest hour 7, got %#v", snapshot.BusiestHour)
	}
	if _, ok, _ := snapshots.Latest(context.Background()); !ok {
		t.Fatal("expected snapshot to be stored")
	}
}

func TestRecomputeSurfacesAggregationErrors(t *testing.T) {
	aggErr := errors.New("pipeline failed")
	engine := NewEngine(&summarizingLog{err: aggErr}, memory.NewSnapshotRepository())
	if _, err := engine.Recompute(context.Background()); !errors.Is(err, aggErr) {
		t.Fatalf("expected aggregation error, got %v", err)
	}
}
