package application

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/bnema/accountpool/internal/domain"
)

type inMemoryPoolRepo struct {
	mu       sync.Mutex
	pools    map[domain.PoolID]domain.Pool
	accounts map[domain.AccountID]domain.Account
	commits  int

	// beforeCommit runs inside Commit before the version check.
	beforeCommit func(r *inMemoryPoolRepo)
}

func newInMemoryPoolRepo() *inMemoryPoolRepo {
	return &inMemoryPoolRepo{
		pools:    map[domain.PoolID]domain.Pool{},
		accounts: map[domain.AccountID]domain.Account{},
	}
}

// seed stores a pool at version 1 with its accounts, bypassing Commit.
func (r *inMemoryPoolRepo) seed(pool domain.Pool, accounts ...domain.Account) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pool.Version = 1
	r.pools[pool.ID] = pool
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, account := range accounts {
		account.PoolID = pool.ID
		if account.Weight == 0 {
			account.Weight = 1
		}
		if account.CreatedAt.IsZero() {
			account.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		}
		r.accounts[account.ID] = account
	}
}

func (r *inMemoryPoolRepo) GetPool(_ context.Context, id domain.PoolID) (domain.Pool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pool, ok := r.pools[id]
	if !ok {
		return domain.Pool{}, domain.ErrPoolNotFound
	}
	return pool, nil
}

func (r *inMemoryPoolRepo) ListPools(_ context.Context) ([]domain.Pool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]domain.Pool, 0, len(r.pools))
	for _, pool := range r.pools {
		result = append(result, pool)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *inMemoryPoolRepo) GetAccount(_ context.Context, id domain.AccountID) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return account, nil
}

func (r *inMemoryPoolRepo) ListAccounts(_ context.Context, poolID domain.PoolID) ([]domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]domain.Account, 0)
	for _, account := range r.accounts {
		if account.PoolID == poolID {
			result = append(result, account)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *inMemoryPoolRepo) Commit(_ context.Context, t domain.PoolTransition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.beforeCommit != nil {
		r.beforeCommit(r)
	}

	stored, ok := r.pools[t.Pool.ID]
	var version int64
	if ok {
		version = stored.Version
	}
	if t.Pool.Version != version {
		return domain.ErrPoolConflict
	}

	r.commits++
	for _, id := range t.Removed {
		delete(r.accounts, id)
	}
	if t.Release {
		delete(r.pools, t.Pool.ID)
		for id, account := range r.accounts {
			if account.PoolID == t.Pool.ID {
				delete(r.accounts, id)
			}
		}
		return nil
	}

	pool := t.Pool
	pool.Version = version + 1
	r.pools[pool.ID] = pool
	for _, account := range t.Accounts {
		r.accounts[account.ID] = account
	}
	return nil
}

func (r *inMemoryPoolRepo) account(id domain.AccountID) domain.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accounts[id]
}

func (r *inMemoryPoolRepo) pool(id domain.PoolID) domain.Pool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pools[id]
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock(now time.Time) *fixedClock {
	return &fixedClock{now: now}
}

func (f *fixedClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixedClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

type fixedRandom float64

func (f fixedRandom) Float64() float64 {
	return float64(f)
}

type fakeHealth struct {
	mu    sync.Mutex
	stats map[domain.AccountID]domain.HealthStats
	err   error

	starts []string
	ends   []string
}

func (f *fakeHealth) RegisterRequestStart(_ context.Context, _ domain.AccountID, requestID string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, requestID)
	return f.err
}

func (f *fakeHealth) RegisterRequestEnd(_ context.Context, _ domain.AccountID, requestID string, _ *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ends = append(f.ends, requestID)
	return f.err
}

func (f *fakeHealth) Stats(_ context.Context, id domain.AccountID) (domain.HealthStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.HealthStats{}, f.err
	}
	return f.stats[id], nil
}

type inMemoryJobStore struct {
	mu   sync.Mutex
	sets map[domain.UserID]map[domain.QueueID]struct{}
	ttl  map[domain.UserID]time.Duration
	adds int
}

func newInMemoryJobStore() *inMemoryJobStore {
	return &inMemoryJobStore{
		sets: map[domain.UserID]map[domain.QueueID]struct{}{},
		ttl:  map[domain.UserID]time.Duration{},
	}
}

func (s *inMemoryJobStore) Add(_ context.Context, userID domain.UserID, queueID domain.QueueID, limit int, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.sets[userID]
	if len(set) >= limit {
		return false, nil
	}
	if set == nil {
		set = map[domain.QueueID]struct{}{}
		s.sets[userID] = set
	}
	set[queueID] = struct{}{}
	s.ttl[userID] = ttl
	s.adds++
	return true, nil
}

func (s *inMemoryJobStore) Lookup(_ context.Context, userID domain.UserID, queueID domain.QueueID) (bool, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sets[userID][queueID]
	if !ok {
		return false, 0, nil
	}
	return true, s.ttl[userID], nil
}

func (s *inMemoryJobStore) Remove(_ context.Context, userID domain.UserID, queueID domain.QueueID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sets[userID], queueID)
	return nil
}

func (s *inMemoryJobStore) size(userID domain.UserID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sets[userID])
}

type scriptedSource struct {
	poolID   domain.PoolID
	results  []error
	account  domain.Account
	attempts int
}

func (s *scriptedSource) PoolID() domain.PoolID {
	return s.poolID
}

func (s *scriptedSource) Acquire(context.Context) (domain.Account, error) {
	s.attempts++
	if len(s.results) == 0 {
		return domain.Account{}, errors.New("no script")
	}
	err := s.results[0]
	if len(s.results) > 1 {
		s.results = s.results[1:]
	}
	if err != nil {
		return domain.Account{}, err
	}
	return s.account, nil
}

type inMemorySecretStore struct {
	values map[string]string
}

func (s *inMemorySecretStore) Get(_ context.Context, key string) (string, error) {
	value, ok := s.values[key]
	if !ok {
		return "", domain.ErrSecretNotFound
	}
	return value, nil
}

func (s *inMemorySecretStore) Put(_ context.Context, key string, value string) error {
	if s.values == nil {
		s.values = map[string]string{}
	}
	s.values[key] = value
	return nil
}

func (s *inMemorySecretStore) Delete(_ context.Context, key string) error {
	delete(s.values, key)
	return nil
}
