package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bnema/accountpool/internal/domain"
	"github.com/bnema/accountpool/internal/metrics"
	"github.com/bnema/accountpool/internal/ports"
)

const (
	rotationDay    = 24 * time.Hour
	rotationJitter = 0.10

	// MinDwell is the shortest time an account stays active, whatever the
	// pool size.
	MinDwell = 30 * time.Minute
)

type RotateOptions struct {
	// Status is the tier the outgoing account was actually operating under.
	// Empty keeps its persisted status.
	Status domain.AccountStatus
	// RecalculateTimeOnly reschedules the next switch without touching any
	// account.
	RecalculateTimeOnly bool
}

type RotationResult struct {
	Pool     domain.Pool
	Previous *domain.Account
	Active   *domain.Account
}

// AccountQueue owns the single-active-account rotation of rotation pools.
// It is the only writer of account status for those pools.
type AccountQueue struct {
	repo   ports.PoolRepository
	clock  ports.Clock
	random ports.RandomSource
	logger *slog.Logger
}

func NewAccountQueue(repo ports.PoolRepository, clock ports.Clock, random ports.RandomSource, logger *slog.Logger) *AccountQueue {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if random == nil {
		random = ports.SystemRandom{}
	}

	return &AccountQueue{repo: repo, clock: clock, random: random, logger: loggerOrDefault(logger)}
}

// NextSwitchInterval spreads a day over the pool's accounts, jittered by
// ±10% and never shorter than MinDwell.
func (q *AccountQueue) NextSwitchInterval(accountCount int) time.Duration {
	if accountCount < 1 {
		accountCount = 1
	}

	base := rotationDay / time.Duration(accountCount)
	jitter := time.Duration((q.random.Float64()*2 - 1) * rotationJitter * float64(base))
	interval := base + jitter
	if interval < MinDwell {
		return MinDwell
	}

	return interval
}

func (q *AccountQueue) Rotate(ctx context.Context, poolID domain.PoolID, opts RotateOptions) (RotationResult, error) {
	pool, accounts, err := q.snapshot(ctx, poolID)
	if err != nil {
		return RotationResult{}, err
	}
	if pool.Mode != domain.PoolModeRotation {
		return RotationResult{}, fmt.Errorf("pool %s uses %s mode, not rotation", poolID, pool.Mode)
	}
	if len(accounts) == 0 {
		return RotationResult{}, fmt.Errorf("rotate pool %s: %w", poolID, domain.ErrEmptyPool)
	}

	now := q.clock.Now()
	next := now.Add(q.NextSwitchInterval(len(accounts)))
	pool.NextSwitchTime = &next
	pool.UpdatedAt = now

	transition := domain.PoolTransition{Pool: pool}
	result := RotationResult{}

	switch {
	case opts.RecalculateTimeOnly:
		if idx := domain.ActiveAccount(accounts); idx >= 0 {
			active := accounts[idx]
			result.Active = &active
		}
	case len(accounts) == 1:
		changed, err := toggleSingle(&accounts[0], now, opts.Status)
		if err != nil {
			metrics.Rotations.WithLabelValues(string(poolID), "failed").Inc()
			return RotationResult{}, fmt.Errorf("rotate pool %s: %w", poolID, err)
		}
		if changed {
			transition.Accounts = []domain.Account{accounts[0]}
		}
		if accounts[0].Serving() {
			result.Active = &accounts[0]
		}
	default:
		current, candidate, err := nextCandidate(accounts)
		if err != nil {
			metrics.Rotations.WithLabelValues(string(poolID), "no_candidate").Inc()
			return RotationResult{}, fmt.Errorf("rotate pool %s: %w", poolID, err)
		}

		if current >= 0 {
			status := opts.Status
			if status == "" {
				status = accounts[current].Status
			}
			if err := accounts[current].Disable(now, status); err != nil {
				return RotationResult{}, fmt.Errorf("rotate pool %s: %w", poolID, err)
			}
			transition.Accounts = append(transition.Accounts, accounts[current])
			result.Previous = &accounts[current]
		}
		if err := accounts[candidate].Activate(); err != nil {
			return RotationResult{}, fmt.Errorf("rotate pool %s: %w", poolID, err)
		}
		transition.Accounts = append(transition.Accounts, accounts[candidate])
		result.Active = &accounts[candidate]
	}

	if err := q.repo.Commit(ctx, transition); err != nil {
		metrics.Rotations.WithLabelValues(string(poolID), "commit_failed").Inc()
		return RotationResult{}, fmt.Errorf("commit rotation of pool %s: %w", poolID, err)
	}

	pool.Version++
	result.Pool = pool
	metrics.Rotations.WithLabelValues(string(poolID), "ok").Inc()

	attrs := []any{"pool", poolID, "next_switch", next, "time_only", opts.RecalculateTimeOnly}
	if result.Previous != nil {
		attrs = append(attrs, "from", result.Previous.ID)
	}
	if result.Active != nil {
		attrs = append(attrs, "to", result.Active.ID)
	}
	q.logger.Info("account pool rotated", attrs...)

	return result, nil
}

// Active returns the serving account of a rotation pool.
func (q *AccountQueue) Active(ctx context.Context, poolID domain.PoolID) (domain.Account, bool, error) {
	_, accounts, err := q.snapshot(ctx, poolID)
	if err != nil {
		return domain.Account{}, false, err
	}

	idx := domain.ActiveAccount(accounts)
	if idx < 0 {
		return domain.Account{}, false, nil
	}
	return accounts[idx], true, nil
}

func (q *AccountQueue) snapshot(ctx context.Context, poolID domain.PoolID) (domain.Pool, []domain.Account, error) {
	pool, err := q.repo.GetPool(ctx, poolID)
	if err != nil {
		return domain.Pool{}, nil, fmt.Errorf("load pool %s: %w", poolID, err)
	}

	accounts, err := q.repo.ListAccounts(ctx, poolID)
	if err != nil {
		return domain.Pool{}, nil, fmt.Errorf("list accounts of pool %s: %w", poolID, err)
	}

	return pool, accounts, nil
}

// toggleSingle flips a lone account between serving fast and disabled. A
// serving account stays up while the observed tier is fast; a resting one
// comes back on its next scheduled switch.
func toggleSingle(account *domain.Account, now time.Time, observed domain.AccountStatus) (bool, error) {
	if account.Status == domain.AccountStatusDisabled {
		return false, domain.ErrNoValidNextAccount
	}

	if !account.Serving() {
		return true, account.Activate()
	}

	if observed == "" || observed == domain.AccountStatusFast {
		return false, nil
	}

	return true, account.Disable(now, observed)
}

// nextCandidate scans forward from the serving account for the first
// activatable one, covering one full circle.
func nextCandidate(accounts []domain.Account) (int, int, error) {
	n := len(accounts)
	current := domain.ActiveAccount(accounts)

	for offset := 1; offset <= n; offset++ {
		i := (current + offset) % n
		if i == current {
			continue
		}
		if accounts[i].Status.Activatable() {
			return current, i, nil
		}
	}

	return current, -1, domain.ErrNoValidNextAccount
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
