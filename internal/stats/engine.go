package stats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"starcatalog/searchservice/internal/domain"
	"starcatalog/searchservice/internal/metrics"
)

const (
	triggerOnDemand  = "on_demand"
	triggerManual    = "manual"
	triggerScheduled = "scheduled"
)

// QueryLogStore is an append-only log of search invocations.
type QueryLogStore interface {
	Append(ctx context.Context, entry domain.QueryLogEntry) error
	All(ctx context.Context) ([]domain.QueryLogEntry, error)
}

// SnapshotStore keeps every computed snapshot; Latest is the newest by GeneratedAt.
type SnapshotStore interface {
	Insert(ctx context.Context, snapshot domain.StatsSnapshot) error
	Latest(ctx context.Context) (domain.StatsSnapshot, bool, error)
}

type Engine struct {
	queries   QueryLogStore
	snapshots SnapshotStore
	logger    *slog.Logger
	now       func() time.Time
}

type EngineOption func(*Engine)

func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func NewEngine(queries QueryLogStore, snapshots SnapshotStore, opts ...EngineOption) *Engine {
	engine := &Engine{
		queries:   queries,
		snapshots: snapshots,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(engine)
		}
	}
	if engine.logger == nil {
		engine.logger = slog.Default()
	}
	return engine
}

func (e *Engine) LogSearch(ctx context.Context, entry domain.QueryLogEntry) error {
	if entry.SearchedAt.IsZero() {
		entry.SearchedAt = e.now().UTC()
	}
	if err := e.queries.Append(ctx, entry); err != nil {
		metrics.QueryLogWritesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("append query log: %w", err)
	}
	metrics.QueryLogWritesTotal.WithLabelValues("ok").Inc()
	return nil
}

// CurrentStats returns the newest stored snapshot, computing and storing one first
// when none exists yet.
func (e *Engine) CurrentStats(ctx context.Context) (domain.StatsSnapshot, error) {
	latest, ok, err := e.snapshots.Latest(ctx)
	if err != nil {
		return domain.StatsSnapshot{}, fmt.Errorf("load latest snapshot: %w", err)
	}
	if ok {
		return latest, nil
	}
	return e.recompute(ctx, triggerOnDemand)
}

func (e *Engine) Recompute(ctx context.Context) (domain.StatsSnapshot, error) {
	return e.recompute(ctx, triggerManual)
}

func (e *Engine) recompute(ctx context.Context, trigger string) (domain.StatsSnapshot, error) {
	startedAt := time.Now()
	snapshot, err := e.computeAndStore(ctx)
	metrics.StatsRecomputeDuration.Observe(time.Since(startedAt).Seconds())
	if err != nil {
		metrics.StatsRecomputeTotal.WithLabelValues(trigger, "error").Inc()
		return domain.StatsSnapshot{}, err
	}
	metrics.StatsRecomputeTotal.WithLabelValues(trigger, "ok").Inc()
	e.logger.Debug("stats snapshot recomputed",
		slog.String("trigger", trigger),
		slog.Int("totalSearches", snapshot.TotalSearches),
		slog.Int64("durationMs", time.Since(startedAt).Milliseconds()),
	)
	return snapshot, nil
}

func (e *Engine) computeAndStore(ctx context.Context) (domain.StatsSnapshot, error) {
	summary, err := e.summarize(ctx)
	if err != nil {
		return domain.StatsSnapshot{}, err
	}
	snapshot := FromSummary(summary, e.now())
	if err := e.snapshots.Insert(ctx, snapshot); err != nil {
		return domain.StatsSnapshot{}, fmt.Errorf("store snapshot: %w", err)
	}
	return snapshot, nil
}

func (e *Engine) summarize(ctx context.Context) (Summary, error) {
	if summarizer, ok := e.queries.(Summarizer); ok {
		summary, err := summarizer.Summarize(ctx, topQueriesLimit)
		if err != nil {
			return Summary{}, fmt.Errorf("aggregate query log: %w", err)
		}
		return summary, nil
	}
	entries, err := e.queries.All(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("read query log: %w", err)
	}
	return Summarize(entries), nil
}
