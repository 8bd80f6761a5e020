package application

import (
	"context"
	"testing"
	"time"

	"github.com/bnema/accountpool/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerTickRotatesOnlyDuePools(t *testing.T) {
	t.Parallel()

	repo := newInMemoryPoolRepo()
	future := queueNow.Add(time.Hour)
	past := queueNow.Add(-time.Minute)

	due := rotationPool("due")
	due.NextSwitchTime = &past
	repo.seed(due,
		domain.Account{ID: "due-a", Status: domain.AccountStatusFast},
		domain.Account{ID: "due-b", Status: domain.AccountStatusCreated},
	)

	waiting := rotationPool("waiting")
	waiting.NextSwitchTime = &future
	repo.seed(waiting,
		domain.Account{ID: "wait-a", Status: domain.AccountStatusFast},
		domain.Account{ID: "wait-b", Status: domain.AccountStatusCreated},
	)

	weighted := weightedPool(0)
	repo.seed(weighted, domain.Account{ID: "w-a", Status: domain.AccountStatusCreated})

	clock := newFixedClock(queueNow)
	scheduler := NewScheduler(NewAccountQueue(repo, clock, fixedRandom(0.5), nil), repo, 0, nil)

	assert.Equal(t, 1, scheduler.Tick(context.Background()))
	assert.True(t, repo.account("due-b").Serving())
	assert.Equal(t, domain.AccountStatusFast, repo.account("due-a").Status)
	assert.True(t, repo.account("wait-a").Serving())
	assert.Equal(t, domain.AccountStatusCreated, repo.account("w-a").Status)

	clock.Advance(2 * time.Hour)
	assert.Equal(t, 1, scheduler.Tick(context.Background()))
	assert.True(t, repo.account("wait-b").Serving())
}

func TestSchedulerRescheduleOnlySetsMissingDeadlines(t *testing.T) {
	t.Parallel()

	repo := newInMemoryPoolRepo()
	repo.seed(rotationPool("live"),
		domain.Account{ID: "a", Status: domain.AccountStatusFast},
		domain.Account{ID: "b", Status: domain.AccountStatusCreated},
	)
	repo.seed(rotationPool("fresh"), domain.Account{ID: "c", Status: domain.AccountStatusCreated})

	scheduler := NewScheduler(NewAccountQueue(repo, newFixedClock(queueNow), fixedRandom(0.5), nil), repo, time.Minute, nil)
	scheduler.Reschedule(context.Background())

	live := repo.pool("live")
	require.NotNil(t, live.NextSwitchTime)
	assert.Equal(t, queueNow.Add(12*time.Hour), *live.NextSwitchTime)
	assert.True(t, repo.account("a").Serving())

	assert.Nil(t, repo.pool("fresh").NextSwitchTime)
	assert.False(t, repo.account("c").Serving())
}

func TestSchedulerRunStopsWithContext(t *testing.T) {
	t.Parallel()

	repo := newInMemoryPoolRepo()
	scheduler := NewScheduler(NewAccountQueue(repo, nil, nil, nil), repo, 10*time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, scheduler.Run(ctx))
}
