package ports

import (
	"context"
	"time"

	"github.com/bnema/accountpool/internal/domain"
)

// JobQueueStore holds each user's set of active job queue ids.
type JobQueueStore interface {
	// Add inserts queueID unless the set already holds limit members, and
	// re-applies ttl to the whole set. It reports false when at quota, in
	// which case nothing was written.
	Add(ctx context.Context, userID domain.UserID, queueID domain.QueueID, limit int, ttl time.Duration) (bool, error)
	// Lookup reports membership and the remaining ttl of the set.
	Lookup(ctx context.Context, userID domain.UserID, queueID domain.QueueID) (bool, time.Duration, error)
	Remove(ctx context.Context, userID domain.UserID, queueID domain.QueueID) error
}
