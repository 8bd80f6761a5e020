package ports

import (
	"context"

	"github.com/bnema/accountpool/internal/domain"
)

// PoolRepository is the durable store for pools and their accounts. All
// writes go through Commit so a transition lands atomically or not at all.
type PoolRepository interface {
	GetPool(ctx context.Context, id domain.PoolID) (domain.Pool, error)
	ListPools(ctx context.Context) ([]domain.Pool, error)
	GetAccount(ctx context.Context, id domain.AccountID) (domain.Account, error)
	// ListAccounts returns the pool's accounts ordered by creation time.
	ListAccounts(ctx context.Context, poolID domain.PoolID) ([]domain.Account, error)
	// Commit applies the transition if the stored pool version still equals
	// t.Pool.Version (zero for a pool that does not exist yet), otherwise it
	// fails with domain.ErrPoolConflict. The stored version is incremented.
	Commit(ctx context.Context, t domain.PoolTransition) error
}
