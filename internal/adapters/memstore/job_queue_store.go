package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/bnema/accountpool/internal/domain"
	"github.com/bnema/accountpool/internal/ports"
)

type userSet struct {
	members map[domain.QueueID]struct{}
	expires time.Time
}

// JobQueueStore holds one expiring set per user. The whole set shares one
// deadline that every successful Add pushes out.
type JobQueueStore struct {
	clock ports.Clock

	mu    sync.Mutex
	users map[domain.UserID]*userSet
}

var _ ports.JobQueueStore = (*JobQueueStore)(nil)

func NewJobQueueStore(clock ports.Clock) *JobQueueStore {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &JobQueueStore{clock: clock, users: map[domain.UserID]*userSet{}}
}

func (s *JobQueueStore) Add(ctx context.Context, userID domain.UserID, queueID domain.QueueID, limit int, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.live(userID)
	if set == nil {
		set = &userSet{members: map[domain.QueueID]struct{}{}}
		s.users[userID] = set
	}
	if len(set.members) >= limit {
		return false, nil
	}

	set.members[queueID] = struct{}{}
	set.expires = s.clock.Now().Add(ttl)
	return true, nil
}

func (s *JobQueueStore) Lookup(ctx context.Context, userID domain.UserID, queueID domain.QueueID) (bool, time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return false, 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.live(userID)
	if set == nil {
		return false, 0, nil
	}
	if _, ok := set.members[queueID]; !ok {
		return false, 0, nil
	}
	return true, set.expires.Sub(s.clock.Now()), nil
}

func (s *JobQueueStore) Remove(ctx context.Context, userID domain.UserID, queueID domain.QueueID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if set := s.live(userID); set != nil {
		delete(set.members, queueID)
		if len(set.members) == 0 {
			delete(s.users, userID)
		}
	}
	return nil
}

// live returns the user's set, dropping it first if it has expired.
// Callers hold s.mu.
func (s *JobQueueStore) live(userID domain.UserID) *userSet {
	set, ok := s.users[userID]
	if !ok {
		return nil
	}
	if !s.clock.Now().Before(set.expires) {
		delete(s.users, userID)
		return nil
	}
	return set
}
