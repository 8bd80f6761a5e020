package application

import (
	"context"
	"fmt"

	"github.com/bnema/accountpool/internal/domain"
	"github.com/bnema/accountpool/internal/ports"
)

// AccountSource hands out one account of a pool per call.
type AccountSource interface {
	PoolID() domain.PoolID
	Acquire(ctx context.Context) (domain.Account, error)
}

// RotationSource serves the active account of a rotation pool, rotating
// first when the pool has no active account or its switch deadline passed.
type RotationSource struct {
	queue  *AccountQueue
	poolID domain.PoolID
	clock  ports.Clock
}

var _ AccountSource = (*RotationSource)(nil)

func NewRotationSource(queue *AccountQueue, poolID domain.PoolID) *RotationSource {
	return &RotationSource{queue: queue, poolID: poolID, clock: queue.clock}
}

func (s *RotationSource) PoolID() domain.PoolID {
	return s.poolID
}

func (s *RotationSource) Acquire(ctx context.Context) (domain.Account, error) {
	pool, accounts, err := s.queue.snapshot(ctx, s.poolID)
	if err != nil {
		return domain.Account{}, err
	}

	idx := domain.ActiveAccount(accounts)
	due := pool.SwitchDue(s.clock.Now())
	if idx >= 0 && !due {
		return accounts[idx], nil
	}
	if idx < 0 && !due && len(accounts) == 1 {
		return domain.Account{}, fmt.Errorf("%w: lone account of pool %s is resting", domain.ErrAccountUnavailable, s.poolID)
	}

	opts := RotateOptions{}
	if idx >= 0 {
		opts.Status = accounts[idx].Status
	}

	result, err := s.queue.Rotate(ctx, s.poolID, opts)
	if err != nil {
		return domain.Account{}, err
	}
	if result.Active == nil {
		return domain.Account{}, fmt.Errorf("%w: pool %s has no active account", domain.ErrAccountUnavailable, s.poolID)
	}

	return *result.Active, nil
}

// ReportDegraded rotates away from the active account right away, recording
// the tier it was observed operating under (for example relaxed once its
// fast quota ran out).
func (s *RotationSource) ReportDegraded(ctx context.Context, observed domain.AccountStatus) (RotationResult, error) {
	return s.queue.Rotate(ctx, s.poolID, RotateOptions{Status: observed})
}
