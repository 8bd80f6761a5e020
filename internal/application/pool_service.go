package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/accountpool/internal/domain"
	"github.com/bnema/accountpool/internal/ports"
)

type AddAccountCommand struct {
	PoolID        domain.PoolID
	AccountID     domain.AccountID
	Name          string
	Provider      domain.Provider
	Mode          domain.PoolMode
	MaxConcurrent int
	Weight        int
	SecretKey     string
	SecretValue   string
}

type AccountView struct {
	Account domain.Account
	Health  *domain.HealthStats
}

type PoolStatus struct {
	Pool     domain.Pool
	Accounts []AccountView
}

// PoolService manages pool membership and operator switches. Scheduled and
// failure-driven rotation lives in AccountQueue.
type PoolService struct {
	repo   ports.PoolRepository
	store  ports.SecretStore
	health ports.HealthTracker
	clock  ports.Clock
}

func NewPoolService(repo ports.PoolRepository, store ports.SecretStore, health ports.HealthTracker, clock ports.Clock) *PoolService {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &PoolService{repo: repo, store: store, health: health, clock: clock}
}

// AddAccount registers a new account as a rotation candidate, creating the
// pool when this is its first account.
func (s *PoolService) AddAccount(ctx context.Context, cmd AddAccountCommand) (domain.Account, error) {
	now := s.clock.Now()

	pool, err := s.repo.GetPool(ctx, cmd.PoolID)
	if err != nil {
		if !errors.Is(err, domain.ErrPoolNotFound) {
			return domain.Account{}, fmt.Errorf("load pool: %w", err)
		}
		pool = domain.Pool{
			ID:            cmd.PoolID,
			Name:          string(cmd.PoolID),
			Provider:      cmd.Provider,
			Mode:          cmd.Mode,
			MaxConcurrent: cmd.MaxConcurrent,
		}
		if pool.Mode == "" {
			pool.Mode = domain.PoolModeRotation
		}
	}
	pool.UpdatedAt = now
	if err := pool.Validate(); err != nil {
		return domain.Account{}, err
	}

	if _, err := s.repo.GetAccount(ctx, cmd.AccountID); err == nil {
		return domain.Account{}, fmt.Errorf("account %s already exists", cmd.AccountID)
	} else if !errors.Is(err, domain.ErrAccountNotFound) {
		return domain.Account{}, fmt.Errorf("get account by id: %w", err)
	}

	account := domain.Account{
		ID:        cmd.AccountID,
		PoolID:    pool.ID,
		Name:      strings.TrimSpace(cmd.Name),
		Weight:    cmd.Weight,
		Status:    domain.AccountStatusCreated,
		CreatedAt: now,
	}
	if account.Weight == 0 {
		account.Weight = 1
	}
	if account.Name == "" {
		account.Name = string(cmd.AccountID)
	}
	if err := account.Validate(); err != nil {
		return domain.Account{}, err
	}

	if cmd.SecretValue != "" {
		key := cmd.SecretKey
		if key == "" {
			key = fmt.Sprintf("%s/%s", pool.ID, account.ID)
		}
		if err := s.store.Put(ctx, key, cmd.SecretValue); err != nil {
			return domain.Account{}, fmt.Errorf("store account secret: %w", err)
		}
		account.SecretRef = key
	}

	if err := s.repo.Commit(ctx, domain.PoolTransition{Pool: pool, Accounts: []domain.Account{account}}); err != nil {
		if account.SecretRef != "" {
			if rollbackErr := s.store.Delete(ctx, account.SecretRef); rollbackErr != nil {
				return domain.Account{}, fmt.Errorf("save account and rollback stored secret: %w", errors.Join(err, rollbackErr))
			}
		}
		return domain.Account{}, fmt.Errorf("save account: %w", err)
	}

	return account, nil
}

// RemoveAccount deletes an account. Removing the last account releases the
// pool record as well.
func (s *PoolService) RemoveAccount(ctx context.Context, id domain.AccountID) error {
	account, err := s.repo.GetAccount(ctx, id)
	if err != nil {
		return fmt.Errorf("get account by id: %w", err)
	}

	pool, err := s.repo.GetPool(ctx, account.PoolID)
	if err != nil {
		return fmt.Errorf("load pool: %w", err)
	}
	accounts, err := s.repo.ListAccounts(ctx, pool.ID)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}

	if account.Serving() {
		pool.NextSwitchTime = nil
	}
	pool.UpdatedAt = s.clock.Now()

	transition := domain.PoolTransition{
		Pool:    pool,
		Removed: []domain.AccountID{id},
		Release: len(accounts) <= 1,
	}
	if err := s.repo.Commit(ctx, transition); err != nil {
		return fmt.Errorf("remove account: %w", err)
	}

	if account.SecretRef != "" {
		if err := s.store.Delete(ctx, account.SecretRef); err != nil {
			return fmt.Errorf("delete account secret: %w", err)
		}
	}

	return nil
}

// ExcludeAccount takes an account out of every rotation until it is
// re-enabled. Excluding the serving account makes the next acquire rotate.
func (s *PoolService) ExcludeAccount(ctx context.Context, id domain.AccountID) error {
	return s.mutateAccount(ctx, id, func(pool *domain.Pool, account *domain.Account) error {
		if account.Serving() {
			pool.NextSwitchTime = nil
		}
		return account.Exclude(s.clock.Now())
	})
}

func (s *PoolService) ReenableAccount(ctx context.Context, id domain.AccountID) error {
	return s.mutateAccount(ctx, id, func(_ *domain.Pool, account *domain.Account) error {
		return account.Reenable()
	})
}

// RecordGeneration bumps the in-flight generation counter; rotation resets it.
func (s *PoolService) RecordGeneration(ctx context.Context, id domain.AccountID) error {
	return s.mutateAccount(ctx, id, func(_ *domain.Pool, account *domain.Account) error {
		account.Generations++
		return nil
	})
}

func (s *PoolService) ListPools(ctx context.Context) ([]domain.Pool, error) {
	pools, err := s.repo.ListPools(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pools: %w", err)
	}
	return pools, nil
}

// Describe returns the pool with its accounts. Health stats are attached
// when a tracker is wired and reachable.
func (s *PoolService) Describe(ctx context.Context, poolID domain.PoolID) (PoolStatus, error) {
	pool, err := s.repo.GetPool(ctx, poolID)
	if err != nil {
		return PoolStatus{}, err
	}

	accounts, err := s.repo.ListAccounts(ctx, poolID)
	if err != nil {
		return PoolStatus{}, fmt.Errorf("list accounts: %w", err)
	}

	views := make([]AccountView, 0, len(accounts))
	for _, account := range accounts {
		view := AccountView{Account: account}
		if s.health != nil {
			if stats, err := s.health.Stats(ctx, account.ID); err == nil {
				view.Health = &stats
			}
		}
		views = append(views, view)
	}

	return PoolStatus{Pool: pool, Accounts: views}, nil
}

func (s *PoolService) mutateAccount(ctx context.Context, id domain.AccountID, mutate func(*domain.Pool, *domain.Account) error) error {
	account, err := s.repo.GetAccount(ctx, id)
	if err != nil {
		return fmt.Errorf("get account by id: %w", err)
	}

	pool, err := s.repo.GetPool(ctx, account.PoolID)
	if err != nil {
		return fmt.Errorf("load pool: %w", err)
	}

	if err := mutate(&pool, &account); err != nil {
		return err
	}
	pool.UpdatedAt = s.clock.Now()

	if err := s.repo.Commit(ctx, domain.PoolTransition{Pool: pool, Accounts: []domain.Account{account}}); err != nil {
		return fmt.Errorf("save account: %w", err)
	}

	return nil
}
