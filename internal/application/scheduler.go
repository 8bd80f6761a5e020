package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bnema/accountpool/internal/domain"
	"github.com/bnema/accountpool/internal/ports"
)

const DefaultSchedulerInterval = time.Minute

// Scheduler polls rotation pools and rotates the ones whose switch deadline
// has passed. Every worker may run one; the pool version check lets only
// one of them win each switch.
type Scheduler struct {
	queue    *AccountQueue
	repo     ports.PoolRepository
	clock    ports.Clock
	interval time.Duration
	logger   *slog.Logger
}

func NewScheduler(queue *AccountQueue, repo ports.PoolRepository, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultSchedulerInterval
	}
	return &Scheduler{queue: queue, repo: repo, clock: queue.clock, interval: interval, logger: loggerOrDefault(logger)}
}

func (s *Scheduler) Run(ctx context.Context) error {
	s.Reschedule(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Reschedule gives a deadline to pools that have an active account but
// none scheduled, without rotating them.
func (s *Scheduler) Reschedule(ctx context.Context) {
	pools, err := s.repo.ListPools(ctx)
	if err != nil {
		s.logger.Error("list pools for rescheduling", "error", err)
		return
	}

	for _, pool := range pools {
		if pool.Mode != domain.PoolModeRotation || pool.NextSwitchTime != nil {
			continue
		}
		if _, ok, err := s.queue.Active(ctx, pool.ID); err != nil || !ok {
			continue
		}
		if _, err := s.queue.Rotate(ctx, pool.ID, RotateOptions{RecalculateTimeOnly: true}); err != nil {
			s.logRotateError(pool.ID, err)
		}
	}
}

// Tick rotates every due pool once and returns how many rotated.
func (s *Scheduler) Tick(ctx context.Context) int {
	pools, err := s.repo.ListPools(ctx)
	if err != nil {
		s.logger.Error("list pools for rotation", "error", err)
		return 0
	}

	now := s.clock.Now()
	rotated := 0
	for _, pool := range pools {
		if pool.Mode != domain.PoolModeRotation || !pool.SwitchDue(now) {
			continue
		}

		opts := RotateOptions{}
		if active, ok, err := s.queue.Active(ctx, pool.ID); err == nil && ok {
			opts.Status = active.Status
		}

		if _, err := s.queue.Rotate(ctx, pool.ID, opts); err != nil {
			s.logRotateError(pool.ID, err)
			continue
		}
		rotated++
	}

	return rotated
}

func (s *Scheduler) logRotateError(poolID domain.PoolID, err error) {
	if errors.Is(err, domain.ErrPoolConflict) {
		s.logger.Debug("pool rotated by another worker", "pool", poolID)
		return
	}
	s.logger.Error("scheduled rotation failed", "pool", poolID, "error", err)
}
