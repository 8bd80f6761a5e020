package toml

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bnema/accountpool/internal/domain"
	"github.com/bnema/accountpool/internal/ports"
	"github.com/spf13/viper"
)

type PoolRepository struct {
	path string
	mu   *sync.RWMutex
}

var _ ports.PoolRepository = (*PoolRepository)(nil)

func NewPoolRepository(cfg *viper.Viper) (*PoolRepository, error) {
	path, err := resolveStorePath(cfg)
	if err != nil {
		return nil, err
	}

	return &PoolRepository{path: path, mu: lockForPath(path)}, nil
}

func (r *PoolRepository) Path() string {
	return r.path
}

func (r *PoolRepository) GetPool(ctx context.Context, id domain.PoolID) (domain.Pool, error) {
	file, err := r.load(ctx)
	if err != nil {
		return domain.Pool{}, err
	}

	idx := file.indexOf(string(id))
	if idx < 0 {
		return domain.Pool{}, domain.ErrPoolNotFound
	}
	return fromPoolSchema(file.Pools[idx]), nil
}

func (r *PoolRepository) ListPools(ctx context.Context) ([]domain.Pool, error) {
	file, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	pools := make([]domain.Pool, 0, len(file.Pools))
	for _, entry := range file.Pools {
		pools = append(pools, fromPoolSchema(entry))
	}
	sort.Slice(pools, func(i, j int) bool { return pools[i].ID < pools[j].ID })

	return pools, nil
}

func (r *PoolRepository) GetAccount(ctx context.Context, id domain.AccountID) (domain.Account, error) {
	file, err := r.load(ctx)
	if err != nil {
		return domain.Account{}, err
	}

	for _, pool := range file.Pools {
		for _, entry := range pool.Accounts {
			if entry.ID == string(id) {
				return fromAccountSchema(pool.ID, entry)
			}
		}
	}

	return domain.Account{}, domain.ErrAccountNotFound
}

func (r *PoolRepository) ListAccounts(ctx context.Context, poolID domain.PoolID) ([]domain.Account, error) {
	file, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	idx := file.indexOf(string(poolID))
	if idx < 0 {
		return []domain.Account{}, nil
	}

	accounts := make([]domain.Account, 0, len(file.Pools[idx].Accounts))
	for _, entry := range file.Pools[idx].Accounts {
		account, err := fromAccountSchema(string(poolID), entry)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	sort.SliceStable(accounts, func(i, j int) bool {
		if accounts[i].CreatedAt.Equal(accounts[j].CreatedAt) {
			return accounts[i].ID < accounts[j].ID
		}
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})

	return accounts, nil
}

// Commit rewrites the file with the transition applied, provided the stored
// revision still equals t.Pool.Version.
func (r *PoolRepository) Commit(ctx context.Context, t domain.PoolTransition) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := readSchema(r.path)
	if err != nil {
		return err
	}

	idx := file.indexOf(string(t.Pool.ID))
	var stored int64
	if idx >= 0 {
		stored = file.Pools[idx].Revision
	}
	if t.Pool.Version != stored {
		return fmt.Errorf("write pool %s at version %d, stored %d: %w", t.Pool.ID, t.Pool.Version, stored, domain.ErrPoolConflict)
	}

	if t.Release {
		if idx >= 0 {
			file.Pools = append(file.Pools[:idx], file.Pools[idx+1:]...)
		}
	} else {
		entry := poolSchema{}
		if idx >= 0 {
			entry = file.Pools[idx]
		}
		applyTransition(&entry, t, stored+1)
		if idx >= 0 {
			file.Pools[idx] = entry
		} else {
			file.Pools = append(file.Pools, entry)
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return writeSchema(r.path, file)
}

func (r *PoolRepository) load(ctx context.Context) (fileSchema, error) {
	if err := ctx.Err(); err != nil {
		return fileSchema{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return readSchema(r.path)
}

func applyTransition(entry *poolSchema, t domain.PoolTransition, revision int64) {
	accounts := entry.Accounts
	*entry = toPoolSchema(t.Pool)
	entry.Revision = revision

	removed := make(map[string]struct{}, len(t.Removed))
	for _, id := range t.Removed {
		removed[string(id)] = struct{}{}
	}

	kept := make([]accountSchema, 0, len(accounts)+len(t.Accounts))
	for _, account := range accounts {
		if _, ok := removed[account.ID]; !ok {
			kept = append(kept, account)
		}
	}

	for _, account := range t.Accounts {
		encoded := toAccountSchema(account)
		replaced := false
		for i := range kept {
			if kept[i].ID == encoded.ID {
				kept[i] = encoded
				replaced = true
				break
			}
		}
		if !replaced {
			kept = append(kept, encoded)
		}
	}

	entry.Accounts = kept
}

func toPoolSchema(pool domain.Pool) poolSchema {
	return poolSchema{
		ID:             string(pool.ID),
		Name:           pool.Name,
		Provider:       string(pool.Provider),
		Mode:           string(pool.Mode),
		MaxConcurrent:  pool.MaxConcurrent,
		NextSwitchTime: formatOptionalTime(pool.NextSwitchTime),
		UpdatedAt:      formatTime(pool.UpdatedAt),
	}
}

func fromPoolSchema(schema poolSchema) domain.Pool {
	return domain.Pool{
		ID:             domain.PoolID(schema.ID),
		Name:           schema.Name,
		Provider:       domain.Provider(schema.Provider),
		Mode:           domain.PoolMode(schema.Mode),
		MaxConcurrent:  schema.MaxConcurrent,
		NextSwitchTime: parseOptionalTime(schema.NextSwitchTime),
		Version:        schema.Revision,
		UpdatedAt:      parseTime(schema.UpdatedAt),
	}
}

func toAccountSchema(account domain.Account) accountSchema {
	return accountSchema{
		ID:          string(account.ID),
		Name:        account.Name,
		Weight:      account.Weight,
		Status:      string(account.Status),
		DisabledAt:  formatOptionalTime(account.DisabledAt),
		Generations: account.Generations,
		SecretRef:   account.SecretRef,
		CreatedAt:   formatTime(account.CreatedAt),
	}
}

func fromAccountSchema(poolID string, schema accountSchema) (domain.Account, error) {
	status, err := domain.ParseAccountStatus(schema.Status)
	if err != nil {
		return domain.Account{}, fmt.Errorf("account %s: %w", schema.ID, err)
	}

	weight := schema.Weight
	if weight == 0 {
		weight = 1
	}

	return domain.Account{
		ID:          domain.AccountID(schema.ID),
		PoolID:      domain.PoolID(poolID),
		Name:        schema.Name,
		Weight:      weight,
		Status:      status,
		DisabledAt:  parseOptionalTime(schema.DisabledAt),
		Generations: schema.Generations,
		SecretRef:   schema.SecretRef,
		CreatedAt:   parseTime(schema.CreatedAt),
	}, nil
}
