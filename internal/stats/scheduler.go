package stats

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Lease grants the right to run one scheduled recompute. Implementations shared
// between replicas keep them from recomputing the same tick twice.
type Lease interface {
	Acquire(ctx context.Context, ttl time.Duration) (bool, error)
}

// Scheduler recomputes the stats snapshot on a fixed interval.
type Scheduler struct {
	engine   *Engine
	interval time.Duration
	lease    Lease
	logger   *slog.Logger
	running  atomic.Bool
}

type SchedulerOption func(*Scheduler)

func WithLease(lease Lease) SchedulerOption {
	return func(s *Scheduler) {
		s.lease = lease
	}
}

func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewScheduler(engine *Engine, interval time.Duration, opts ...SchedulerOption) *Scheduler {
	scheduler := &Scheduler{
		engine:   engine,
		interval: interval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(scheduler)
		}
	}
	return scheduler
}

// Start launches the recompute loop once; later calls are no-ops.
func (s *Scheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	if s.running.CompareAndSwap(false, true) {
		go s.run(ctx)
	}
}

func (s *Scheduler) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil {
				s.logger.Warn("scheduled stats recompute failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Tick runs one scheduled recompute. It reports false when another holder owns the lease.
func (s *Scheduler) Tick(ctx context.Context) (bool, error) {
	if s.lease != nil {
		acquired, err := s.lease.Acquire(ctx, s.leaseTTL())
		if err != nil {
			return false, err
		}
		if !acquired {
			s.logger.Debug("stats recompute skipped: lease held elsewhere")
			return false, nil
		}
	}
	if _, err := s.engine.recompute(ctx, triggerScheduled); err != nil {
		return false, err
	}
	return true, nil
}

// leaseTTL expires slightly before the next tick so the following run can take it.
func (s *Scheduler) leaseTTL() time.Duration {
	ttl := s.interval - s.interval/10
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}
