package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bnema/accountpool/internal/domain"
	"github.com/bnema/accountpool/internal/ports"
	"golang.org/x/sync/singleflight"
)

// DefaultRefreshInterval bounds how stale a weighted pool's selector can be
// relative to membership changes made by other processes.
const DefaultRefreshInterval = time.Minute

type acquireEntry struct {
	resolver    *AvailabilityResolver
	dispatcher  *WeightedDispatcher
	refreshedAt time.Time
}

// Acquirer finds an available account in any pool, building the source that
// matches the pool mode on first use and reusing it afterwards.
type Acquirer struct {
	repo    ports.PoolRepository
	queue   *AccountQueue
	health  ports.HealthTracker
	alerter ports.Alerter
	clock   ports.Clock
	refresh time.Duration
	logger  *slog.Logger

	// mu guards entries and each entry's refreshedAt. It is never held
	// across repository or health store calls.
	mu      sync.Mutex
	entries map[domain.PoolID]*acquireEntry
	builds  singleflight.Group
}

func NewAcquirer(repo ports.PoolRepository, queue *AccountQueue, health ports.HealthTracker, alerter ports.Alerter, clock ports.Clock, logger *slog.Logger) *Acquirer {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &Acquirer{
		repo:    repo,
		queue:   queue,
		health:  health,
		alerter: alerter,
		clock:   clock,
		refresh: DefaultRefreshInterval,
		logger:  loggerOrDefault(logger),
		entries: make(map[domain.PoolID]*acquireEntry),
	}
}

func (a *Acquirer) Acquire(ctx context.Context, poolID domain.PoolID) (domain.Account, error) {
	resolver, err := a.resolver(ctx, poolID)
	if err != nil {
		return domain.Account{}, err
	}

	account, err := resolver.FindAvailableAccount(ctx)
	if errors.Is(err, domain.ErrPoolNotFound) {
		a.Invalidate(poolID)
	}
	return account, err
}

// Invalidate drops the cached source so the next Acquire reloads the pool.
func (a *Acquirer) Invalidate(poolID domain.PoolID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.entries, poolID)
}

func (a *Acquirer) resolver(ctx context.Context, poolID domain.PoolID) (*AvailabilityResolver, error) {
	now := a.clock.Now()

	a.mu.Lock()
	entry, ok := a.entries[poolID]
	var stale bool
	var lastRefresh time.Time
	if ok && entry.dispatcher != nil && now.Sub(entry.refreshedAt) >= a.refresh {
		// Claim the refresh so concurrent callers keep the current snapshot.
		stale, lastRefresh = true, entry.refreshedAt
		entry.refreshedAt = now
	}
	a.mu.Unlock()

	if ok {
		if stale {
			if err := entry.dispatcher.Refresh(ctx); err != nil {
				// Keep serving the previous snapshot; the pool may be mid-edit.
				a.logger.Warn("refresh weighted pool", "pool", poolID, "error", err)
				a.mu.Lock()
				entry.refreshedAt = lastRefresh
				a.mu.Unlock()
			}
		}
		return entry.resolver, nil
	}

	built, err, _ := a.builds.Do(string(poolID), func() (any, error) {
		entry, err := a.build(ctx, poolID, now)
		if err != nil {
			return nil, err
		}

		a.mu.Lock()
		defer a.mu.Unlock()
		if existing, ok := a.entries[poolID]; ok {
			return existing, nil
		}
		a.entries[poolID] = entry
		return entry, nil
	})
	if err != nil {
		return nil, err
	}

	return built.(*acquireEntry).resolver, nil
}

func (a *Acquirer) build(ctx context.Context, poolID domain.PoolID, now time.Time) (*acquireEntry, error) {
	pool, err := a.repo.GetPool(ctx, poolID)
	if err != nil {
		return nil, fmt.Errorf("load pool %s: %w", poolID, err)
	}

	entry := &acquireEntry{refreshedAt: now}
	switch pool.Mode {
	case domain.PoolModeRotation:
		entry.resolver = NewAvailabilityResolver(NewRotationSource(a.queue, poolID), a.alerter, a.logger)
	case domain.PoolModeWeighted:
		dispatcher, err := NewWeightedDispatcher(ctx, poolID, a.repo, a.health, a.clock, a.logger)
		if err != nil {
			return nil, err
		}
		entry.dispatcher = dispatcher
		entry.resolver = NewAvailabilityResolver(dispatcher, a.alerter, a.logger)
	default:
		return nil, fmt.Errorf("pool %s has unsupported mode %q", poolID, pool.Mode)
	}

	return entry, nil
}
