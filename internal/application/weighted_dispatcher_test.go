package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bnema/accountpool/internal/domain"
	portmocks "github.com/bnema/accountpool/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func weightedPool(maxConcurrent int) domain.Pool {
	return domain.Pool{ID: "w", Name: "w", Provider: "anthropic", Mode: domain.PoolModeWeighted, MaxConcurrent: maxConcurrent}
}

func TestWeightedDispatcherFollowsWeights(t *testing.T) {
	t.Parallel()

	repo := newInMemoryPoolRepo()
	repo.seed(weightedPool(0),
		domain.Account{ID: "a", Weight: 1, Status: domain.AccountStatusCreated},
		domain.Account{ID: "b", Weight: 3, Status: domain.AccountStatusCreated},
	)
	dispatcher, err := NewWeightedDispatcher(context.Background(), "w", repo, nil, nil, nil)
	require.NoError(t, err)

	counts := map[domain.AccountID]int{}
	for range 400 {
		account, err := dispatcher.Acquire(context.Background())
		require.NoError(t, err)
		counts[account.ID]++
	}

	assert.Equal(t, 100, counts["a"])
	assert.Equal(t, 300, counts["b"])
}

func TestWeightedDispatcherSkipsCoolingAndSaturatedAccounts(t *testing.T) {
	t.Parallel()

	now := queueNow
	cooldown := now.Add(time.Minute)
	repo := newInMemoryPoolRepo()
	repo.seed(weightedPool(2),
		domain.Account{ID: "a", Weight: 1, Status: domain.AccountStatusCreated},
		domain.Account{ID: "b", Weight: 1, Status: domain.AccountStatusCreated},
		domain.Account{ID: "c", Weight: 1, Status: domain.AccountStatusCreated},
	)
	health := &fakeHealth{stats: map[domain.AccountID]domain.HealthStats{
		"a": {CooldownUntil: &cooldown},
		"b": {ActiveCount: 2},
		"c": {ActiveCount: 1},
	}}
	dispatcher, err := NewWeightedDispatcher(context.Background(), "w", repo, health, newFixedClock(now), nil)
	require.NoError(t, err)

	for range 5 {
		account, err := dispatcher.Acquire(context.Background())
		require.NoError(t, err)
		assert.Equal(t, domain.AccountID("c"), account.ID)
	}
}

func TestWeightedDispatcherAllBusyIsUnavailable(t *testing.T) {
	t.Parallel()

	cooldown := queueNow.Add(time.Hour)
	repo := newInMemoryPoolRepo()
	repo.seed(weightedPool(1),
		domain.Account{ID: "a", Weight: 2, Status: domain.AccountStatusCreated},
		domain.Account{ID: "b", Weight: 1, Status: domain.AccountStatusCreated},
	)
	health := &fakeHealth{stats: map[domain.AccountID]domain.HealthStats{
		"a": {CooldownUntil: &cooldown},
		"b": {ActiveCount: 1},
	}}
	dispatcher, err := NewWeightedDispatcher(context.Background(), "w", repo, health, newFixedClock(queueNow), nil)
	require.NoError(t, err)

	_, err = dispatcher.Acquire(context.Background())
	require.ErrorIs(t, err, domain.ErrAccountUnavailable)
}

func TestWeightedDispatcherFindsLightAccountBehindCoolingHeavyOne(t *testing.T) {
	t.Parallel()

	cooldown := queueNow.Add(time.Hour)
	repo := newInMemoryPoolRepo()
	repo.seed(weightedPool(0),
		domain.Account{ID: "a", Weight: 1, Status: domain.AccountStatusCreated},
		domain.Account{ID: "b", Weight: 10, Status: domain.AccountStatusCreated},
	)
	health := &fakeHealth{stats: map[domain.AccountID]domain.HealthStats{
		"b": {CooldownUntil: &cooldown},
	}}
	dispatcher, err := NewWeightedDispatcher(context.Background(), "w", repo, health, newFixedClock(queueNow), nil)
	require.NoError(t, err)

	for range 12 {
		account, err := dispatcher.Acquire(context.Background())
		require.NoError(t, err)
		assert.Equal(t, domain.AccountID("a"), account.ID)
	}
}

func TestAcquirerDoesNotAlertWhileLightAccountIsFree(t *testing.T) {
	t.Parallel()

	cooldown := queueNow.Add(time.Hour)
	repo := newInMemoryPoolRepo()
	repo.seed(weightedPool(0),
		domain.Account{ID: "a", Weight: 1, Status: domain.AccountStatusCreated},
		domain.Account{ID: "b", Weight: 10, Status: domain.AccountStatusCreated},
	)
	health := &fakeHealth{stats: map[domain.AccountID]domain.HealthStats{
		"b": {CooldownUntil: &cooldown},
	}}
	clock := newFixedClock(queueNow)
	alerter := portmocks.NewMockAlerter(t)
	acquirer := NewAcquirer(repo, NewAccountQueue(repo, clock, fixedRandom(0.5), nil), health, alerter, clock, nil)

	for range 5 {
		account, err := acquirer.Acquire(context.Background(), "w")
		require.NoError(t, err)
		assert.Equal(t, domain.AccountID("a"), account.ID)
	}
	alerter.AssertNotCalled(t, "Alert", mock.Anything, mock.Anything)
}

func TestWeightedDispatcherTreatsHealthFailureAsAvailable(t *testing.T) {
	t.Parallel()

	repo := newInMemoryPoolRepo()
	repo.seed(weightedPool(1), domain.Account{ID: "a", Weight: 1, Status: domain.AccountStatusCreated})
	health := &fakeHealth{err: errors.New("connection refused")}
	dispatcher, err := NewWeightedDispatcher(context.Background(), "w", repo, health, newFixedClock(queueNow), nil)
	require.NoError(t, err)

	account, err := dispatcher.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.AccountID("a"), account.ID)
}

func TestWeightedDispatcherRefreshDropsExcludedAccounts(t *testing.T) {
	t.Parallel()

	repo := newInMemoryPoolRepo()
	repo.seed(weightedPool(0),
		domain.Account{ID: "a", Weight: 1, Status: domain.AccountStatusCreated},
		domain.Account{ID: "b", Weight: 1, Status: domain.AccountStatusCreated},
	)
	ctx := context.Background()
	dispatcher, err := NewWeightedDispatcher(ctx, "w", repo, nil, nil, nil)
	require.NoError(t, err)

	svc := NewPoolService(repo, &inMemorySecretStore{}, nil, newFixedClock(queueNow))
	require.NoError(t, svc.ExcludeAccount(ctx, "a"))
	require.NoError(t, dispatcher.Refresh(ctx))

	for range 4 {
		account, err := dispatcher.Acquire(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.AccountID("b"), account.ID)
	}

	require.NoError(t, svc.ExcludeAccount(ctx, "b"))
	require.ErrorIs(t, dispatcher.Refresh(ctx), domain.ErrEmptyPool)
}
