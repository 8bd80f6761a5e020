package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()

	server := miniredis.RunT(t)
	client, err := Connect(context.Background(), Config{Addr: server.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return server, client
}

func TestConnectRequiresAddress(t *testing.T) {
	t.Parallel()

	_, err := Connect(context.Background(), Config{})
	require.ErrorContains(t, err, "address is required")
}

func TestHealthTrackerCountsInFlightRequests(t *testing.T) {
	t.Parallel()

	server, client := newTestClient(t)
	tracker := NewHealthTracker(client)
	ctx := context.Background()

	require.NoError(t, tracker.RegisterRequestStart(ctx, "acc-1", "r1", time.Minute))
	require.NoError(t, tracker.RegisterRequestStart(ctx, "acc-1", "r2", time.Minute))
	require.NoError(t, tracker.RegisterRequestStart(ctx, "acc-2", "r3", time.Minute))

	stats, err := tracker.Stats(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ActiveCount)
	assert.Nil(t, stats.CooldownUntil)

	require.NoError(t, tracker.RegisterRequestEnd(ctx, "acc-1", "r1", nil))
	stats, err = tracker.Stats(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ActiveCount)

	// A crashed worker's marker expires on its own.
	server.FastForward(2 * time.Minute)
	stats, err = tracker.Stats(ctx, "acc-1")
	require.NoError(t, err)
	assert.Zero(t, stats.ActiveCount)
}

func TestHealthTrackerRecordsCooldown(t *testing.T) {
	t.Parallel()

	server, client := newTestClient(t)
	tracker := NewHealthTracker(client)
	ctx := context.Background()

	until := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	require.NoError(t, tracker.RegisterRequestStart(ctx, "acc-1", "r1", time.Minute))
	require.NoError(t, tracker.RegisterRequestEnd(ctx, "acc-1", "r1", &until))

	stats, err := tracker.Stats(ctx, "acc-1")
	require.NoError(t, err)
	assert.Zero(t, stats.ActiveCount)
	require.NotNil(t, stats.CooldownUntil)
	assert.True(t, until.Equal(*stats.CooldownUntil))
	assert.True(t, stats.CoolingDown(until.Add(-time.Second)))

	assert.Equal(t, CooldownWindow, server.TTL(cooldownKey("acc-1")))
}

func TestHealthTrackerEscapesGlobCharacters(t *testing.T) {
	t.Parallel()

	_, client := newTestClient(t)
	tracker := NewHealthTracker(client)
	ctx := context.Background()

	require.NoError(t, tracker.RegisterRequestStart(ctx, "acc-10", "r1", time.Minute))
	require.NoError(t, tracker.RegisterRequestStart(ctx, "acc-1*", "r2", time.Minute))

	stats, err := tracker.Stats(ctx, "acc-1*")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ActiveCount)
}

func TestHealthTrackerStoreDown(t *testing.T) {
	t.Parallel()

	server, client := newTestClient(t)
	tracker := NewHealthTracker(client)
	server.Close()

	_, err := tracker.Stats(context.Background(), "acc-1")
	require.Error(t, err)
	require.Error(t, tracker.RegisterRequestStart(context.Background(), "acc-1", "r", time.Minute))
}

func TestJobQueueStoreEnforcesLimitAtomically(t *testing.T) {
	t.Parallel()

	server, client := newTestClient(t)
	store := NewJobQueueStore(client)
	ctx := context.Background()

	added, err := store.Add(ctx, "u1", "q1", 2, time.Hour)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = store.Add(ctx, "u1", "q2", 2, time.Hour)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = store.Add(ctx, "u1", "q3", 2, time.Hour)
	require.NoError(t, err)
	assert.False(t, added)

	members, err := server.Members(userKey("u1"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"q1", "q2"}, members)
	assert.Equal(t, time.Hour, server.TTL(userKey("u1")))

	require.NoError(t, store.Remove(ctx, "u1", "q1"))
	added, err = store.Add(ctx, "u1", "q3", 2, time.Hour)
	require.NoError(t, err)
	assert.True(t, added)
}

func TestJobQueueStoreZeroLimitAdmitsNothing(t *testing.T) {
	t.Parallel()

	server, client := newTestClient(t)
	store := NewJobQueueStore(client)

	added, err := store.Add(context.Background(), "u", "a", 0, time.Hour)
	require.NoError(t, err)
	assert.False(t, added)
	assert.False(t, server.Exists(userKey("u")))
}

func TestJobQueueStoreLookup(t *testing.T) {
	t.Parallel()

	server, client := newTestClient(t)
	store := NewJobQueueStore(client)
	ctx := context.Background()

	_, err := store.Add(ctx, "u1", "q1", 1, 12*time.Hour)
	require.NoError(t, err)

	member, ttl, err := store.Lookup(ctx, "u1", "q1")
	require.NoError(t, err)
	assert.True(t, member)
	assert.Equal(t, 12*time.Hour, ttl)

	member, _, err = store.Lookup(ctx, "u1", "other")
	require.NoError(t, err)
	assert.False(t, member)

	server.FastForward(13 * time.Hour)
	member, _, err = store.Lookup(ctx, "u1", "q1")
	require.NoError(t, err)
	assert.False(t, member)
}

func TestPubSubPatternDelivery(t *testing.T) {
	t.Parallel()

	_, client := newTestClient(t)
	bus := NewPubSub(client)
	ctx := context.Background()

	sub, err := bus.Subscribe(ctx, "apool:events:all:*")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "apool:events:coordinator:x", []byte("skip")))
	require.NoError(t, bus.Publish(ctx, "apool:events:all:chat-1", []byte("hello")))

	select {
	case msg := <-sub.Messages():
		assert.Equal(t, "apool:events:all:chat-1", msg.Channel)
		assert.Equal(t, []byte("hello"), msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	assert.Eventually(t, func() bool {
		_, ok := <-sub.Messages()
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}
