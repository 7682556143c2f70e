package memory

import (
	"context"
	"sync"

	"starcatalog/searchservice/internal/domain"
)

// QueryLogRepository keeps the query log in process memory. Used when no
// MongoDB URI is configured.
type QueryLogRepository struct {
	mu      sync.RWMutex
	entries []domain.QueryLogEntry
}

func NewQueryLogRepository() *QueryLogRepository {
	return &QueryLogRepository{}
}

func (r *QueryLogRepository) Append(ctx context.Context, entry domain.QueryLogEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entry.Term != nil {
		term := *entry.Term
		entry.Term = &term
	}
	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
	return nil
}

func (r *QueryLogRepository) All(ctx context.Context) ([]domain.QueryLogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.QueryLogEntry(nil), r.entries...), nil
}

// SnapshotRepository retains every snapshot in insertion order.
type SnapshotRepository struct {
	mu        sync.RWMutex
	snapshots []domain.StatsSnapshot
}

func NewSnapshotRepository() *SnapshotRepository {
	return &SnapshotRepository{}
}

func (r *SnapshotRepository) Insert(ctx context.Context, snapshot domain.StatsSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	r.snapshots = append(r.snapshots, snapshot)
	r.mu.Unlock()
	return nil
}

// Latest returns the snapshot with the newest GeneratedAt; among equal
// timestamps the most recently inserted wins.
func (r *SnapshotRepository) Latest(ctx context.Context) (domain.StatsSnapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.StatsSnapshot{}, false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.snapshots) == 0 {
		return domain.StatsSnapshot{}, false, nil
	}
	latest := r.snapshots[0]
	for _, snapshot := range r.snapshots[1:] {
		if !snapshot.GeneratedAt.Before(latest.GeneratedAt) {
			latest = snapshot
		}
	}
	return latest, true, nil
}

func (r *SnapshotRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.snapshots)
}
