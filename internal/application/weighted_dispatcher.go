package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bnema/accountpool/internal/domain"
	"github.com/bnema/accountpool/internal/metrics"
	"github.com/bnema/accountpool/internal/ports"
)

// WeightedDispatcher spreads concurrent work over every account of a
// weighted pool. Each process runs its own selector, so fleet-wide fairness
// is statistical.
type WeightedDispatcher struct {
	poolID domain.PoolID
	repo   ports.PoolRepository
	health ports.HealthTracker
	clock  ports.Clock
	logger *slog.Logger

	mu            sync.Mutex
	selector      *domain.WeightedSelector[domain.AccountID]
	accounts      map[domain.AccountID]domain.Account
	maxConcurrent int
}

var _ AccountSource = (*WeightedDispatcher)(nil)

func NewWeightedDispatcher(ctx context.Context, poolID domain.PoolID, repo ports.PoolRepository, health ports.HealthTracker, clock ports.Clock, logger *slog.Logger) (*WeightedDispatcher, error) {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	d := &WeightedDispatcher{
		poolID: poolID,
		repo:   repo,
		health: health,
		clock:  clock,
		logger: loggerOrDefault(logger),
	}
	if err := d.Refresh(ctx); err != nil {
		return nil, err
	}

	return d, nil
}

func (d *WeightedDispatcher) PoolID() domain.PoolID {
	return d.poolID
}

// Refresh rebuilds the selector from the stored weights.
func (d *WeightedDispatcher) Refresh(ctx context.Context) error {
	pool, err := d.repo.GetPool(ctx, d.poolID)
	if err != nil {
		return fmt.Errorf("load pool %s: %w", d.poolID, err)
	}
	accounts, err := d.repo.ListAccounts(ctx, d.poolID)
	if err != nil {
		return fmt.Errorf("list accounts of pool %s: %w", d.poolID, err)
	}

	weights := make(map[domain.AccountID]int, len(accounts))
	byID := make(map[domain.AccountID]domain.Account, len(accounts))
	for _, account := range accounts {
		if account.Status == domain.AccountStatusDisabled {
			continue
		}
		weights[account.ID] = account.Weight
		byID[account.ID] = account
	}
	if len(weights) == 0 {
		return fmt.Errorf("refresh pool %s: %w", d.poolID, domain.ErrEmptyPool)
	}

	selector, err := domain.NewWeightedSelector(weights)
	if err != nil {
		return fmt.Errorf("build selector for pool %s: %w", d.poolID, err)
	}

	d.mu.Lock()
	d.selector = selector
	d.accounts = byID
	d.maxConcurrent = pool.MaxConcurrent
	d.mu.Unlock()

	return nil
}

// Acquire walks the weighted order until it finds an account that is not
// cooling down and has spare concurrency. Each account is checked at most
// once per call, so a heavy account that is busy cannot hide a free light
// one. A health store failure counts as available.
func (d *WeightedDispatcher) Acquire(ctx context.Context) (domain.Account, error) {
	d.mu.Lock()
	distinct := d.selector.Len()
	picks := d.selector.Cycle()
	limit := d.maxConcurrent
	d.mu.Unlock()

	now := d.clock.Now()
	checked := make(map[domain.AccountID]struct{}, distinct)
	for range picks {
		if len(checked) == distinct {
			break
		}
		account := d.next()
		if _, seen := checked[account.ID]; seen {
			continue
		}
		checked[account.ID] = struct{}{}

		if d.health == nil {
			metrics.AccountSelections.WithLabelValues(string(d.poolID), "selected").Inc()
			return account, nil
		}

		stats, err := d.health.Stats(ctx, account.ID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return domain.Account{}, ctxErr
			}
			metrics.HealthStoreErrors.WithLabelValues("stats").Inc()
			d.logger.Warn("health stats unavailable, assuming account is free", "pool", d.poolID, "account", account.ID, "error", err)
			metrics.AccountSelections.WithLabelValues(string(d.poolID), "selected").Inc()
			return account, nil
		}
		if stats.CoolingDown(now) {
			metrics.AccountSelections.WithLabelValues(string(d.poolID), "cooldown").Inc()
			continue
		}
		if limit > 0 && stats.ActiveCount >= limit {
			metrics.AccountSelections.WithLabelValues(string(d.poolID), "saturated").Inc()
			continue
		}

		metrics.AccountSelections.WithLabelValues(string(d.poolID), "selected").Inc()
		return account, nil
	}

	return domain.Account{}, fmt.Errorf("%w: every account of pool %s is cooling down or saturated", domain.ErrAccountUnavailable, d.poolID)
}

func (d *WeightedDispatcher) next() domain.Account {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.accounts[d.selector.Next()]
}
