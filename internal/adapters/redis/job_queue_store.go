package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/bnema/accountpool/internal/domain"
	"github.com/bnema/accountpool/internal/ports"
	goredis "github.com/redis/go-redis/v9"
)

// addQueue admits ARGV[1] into the user's set unless it already holds
// ARGV[2] members, then refreshes the set's TTL.
var addQueue = goredis.NewScript(`
local limit = tonumber(ARGV[2])
if redis.call('SCARD', KEYS[1]) >= limit then
	return 0
end
redis.call('SADD', KEYS[1], ARGV[1])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

type JobQueueStore struct {
	client goredis.UniversalClient
}

var _ ports.JobQueueStore = (*JobQueueStore)(nil)

func NewJobQueueStore(client goredis.UniversalClient) *JobQueueStore {
	return &JobQueueStore{client: client}
}

func (s *JobQueueStore) Add(ctx context.Context, userID domain.UserID, queueID domain.QueueID, limit int, ttl time.Duration) (bool, error) {
	added, err := addQueue.Run(ctx, s.client, []string{userKey(userID)}, string(queueID), limit, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("add job queue for %s: %w", userID, err)
	}
	return added == 1, nil
}

func (s *JobQueueStore) Lookup(ctx context.Context, userID domain.UserID, queueID domain.QueueID) (bool, time.Duration, error) {
	key := userKey(userID)

	var member *goredis.BoolCmd
	var ttl *goredis.DurationCmd
	_, err := s.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		member = pipe.SIsMember(ctx, key, string(queueID))
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return false, 0, fmt.Errorf("lookup job queue %s: %w", queueID, err)
	}
	if !member.Val() {
		return false, 0, nil
	}

	// PTTL reports -1 for a set without expiry; callers treat that as expired now.
	remaining := ttl.Val()
	if remaining < 0 {
		remaining = 0
	}
	return true, remaining, nil
}

func (s *JobQueueStore) Remove(ctx context.Context, userID domain.UserID, queueID domain.QueueID) error {
	if err := s.client.SRem(ctx, userKey(userID), string(queueID)).Err(); err != nil {
		return fmt.Errorf("remove job queue %s: %w", queueID, err)
	}
	return nil
}

func userKey(userID domain.UserID) string {
	return keyPrefix + "jobqueue:user:" + string(userID)
}
