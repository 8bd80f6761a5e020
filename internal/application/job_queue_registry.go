package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bnema/accountpool/internal/domain"
	"github.com/bnema/accountpool/internal/metrics"
	"github.com/bnema/accountpool/internal/ports"
	"github.com/google/uuid"
)

const (
	// JobQueueTTL is re-applied to a user's whole set on every submission.
	JobQueueTTL = 12 * time.Hour

	cancelChannelPrefix = "apool:jobqueue:cancel:"

	// cancelPruneInterval is how often Listen drops cancel funcs of jobs whose
	// set expired without a Complete or Cancel.
	cancelPruneInterval = 10 * time.Minute
)

// CancelJobFunc stops a running job. It receives the id Create returned.
type CancelJobFunc func(queueID domain.QueueID)

type cancelEntry struct {
	userID    domain.UserID
	cancel    CancelJobFunc
	expiresAt time.Time
}

// JobQueueRegistry bounds how many long-running jobs a user may have in
// flight and routes cancellations to the process that runs the job.
type JobQueueRegistry struct {
	store  ports.JobQueueStore
	bus    ports.PubSub
	clock  ports.Clock
	logger *slog.Logger

	mu      sync.Mutex
	cancels map[domain.QueueID]cancelEntry
}

func NewJobQueueRegistry(store ports.JobQueueStore, bus ports.PubSub, clock ports.Clock, logger *slog.Logger) *JobQueueRegistry {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &JobQueueRegistry{
		store:   store,
		bus:     bus,
		clock:   clock,
		logger:  loggerOrDefault(logger),
		cancels: map[domain.QueueID]cancelEntry{},
	}
}

// Create admits a new job for userID and returns its queue id. cancel is
// kept in this process only and runs when a cancellation for the id arrives.
// maxPerUser must be positive.
func (r *JobQueueRegistry) Create(ctx context.Context, userID domain.UserID, cancel CancelJobFunc, maxPerUser int) (domain.QueueID, error) {
	if maxPerUser <= 0 {
		return "", fmt.Errorf("%w: max jobs per user must be positive, got %d", domain.ErrInvalidJobLimit, maxPerUser)
	}

	queueID := domain.QueueID(uuid.NewString())

	added, err := r.store.Add(ctx, userID, queueID, maxPerUser, JobQueueTTL)
	if err != nil {
		return "", fmt.Errorf("add job queue: %w", err)
	}
	if !added {
		metrics.JobQueueRejections.Inc()
		return "", fmt.Errorf("%w: user %s already has %d active jobs", domain.ErrQueueQuotaExceeded, userID, maxPerUser)
	}

	if cancel != nil {
		r.mu.Lock()
		r.cancels[queueID] = cancelEntry{userID: userID, cancel: cancel, expiresAt: r.clock.Now().Add(JobQueueTTL)}
		r.mu.Unlock()
	}

	return queueID, nil
}

// Get returns the queue with its absolute expiry, or nil when the id is not
// an active member of the user's set.
func (r *JobQueueRegistry) Get(ctx context.Context, userID domain.UserID, queueID domain.QueueID) (*domain.JobQueue, error) {
	member, ttl, err := r.store.Lookup(ctx, userID, queueID)
	if err != nil {
		return nil, fmt.Errorf("lookup job queue: %w", err)
	}
	if !member {
		return nil, nil
	}

	return &domain.JobQueue{QueueID: queueID, ExpiresAt: r.clock.Now().Add(ttl)}, nil
}

// Complete drops a finished job from the user's set.
func (r *JobQueueRegistry) Complete(ctx context.Context, userID domain.UserID, queueID domain.QueueID) error {
	r.mu.Lock()
	delete(r.cancels, queueID)
	r.mu.Unlock()

	if err := r.store.Remove(ctx, userID, queueID); err != nil {
		return fmt.Errorf("remove job queue: %w", err)
	}
	return nil
}

// Cancel asks whichever process owns queueID to stop it. Delivery is at most
// once; if the owner is gone the request is dropped.
func (r *JobQueueRegistry) Cancel(ctx context.Context, queueID domain.QueueID) error {
	if err := r.bus.Publish(ctx, cancelChannelPrefix+string(queueID), nil); err != nil {
		return fmt.Errorf("publish job cancellation: %w", err)
	}
	return nil
}

// Listen consumes cancellation messages until ctx is done.
func (r *JobQueueRegistry) Listen(ctx context.Context) error {
	sub, err := r.bus.Subscribe(ctx, cancelChannelPrefix+"*")
	if err != nil {
		return fmt.Errorf("subscribe job cancellations: %w", err)
	}
	defer sub.Close()

	ticker := time.NewTicker(cancelPruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.pruneExpired(ctx)
		case msg, ok := <-sub.Messages():
			if !ok {
				return nil
			}
			queueID := domain.QueueID(strings.TrimPrefix(msg.Channel, cancelChannelPrefix))
			r.handleCancel(ctx, queueID)
		}
	}
}

// handleCancel runs the stored cancel func at most once. An id this process
// does not own is a normal no-op.
func (r *JobQueueRegistry) handleCancel(ctx context.Context, queueID domain.QueueID) bool {
	r.mu.Lock()
	entry, ok := r.cancels[queueID]
	delete(r.cancels, queueID)
	r.mu.Unlock()

	if !ok {
		metrics.JobCancellations.WithLabelValues("false").Inc()
		return false
	}

	metrics.JobCancellations.WithLabelValues("true").Inc()
	entry.cancel(queueID)

	if err := r.store.Remove(ctx, entry.userID, queueID); err != nil {
		r.logger.Warn("remove cancelled job queue", "user", entry.userID, "queue", queueID, "error", err)
	}
	r.logger.Info("job queue cancelled", "user", entry.userID, "queue", queueID)
	return true
}

// Owns reports whether this process holds the cancel func for queueID.
func (r *JobQueueRegistry) Owns(queueID domain.QueueID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.cancels[queueID]
	return ok
}

// pruneExpired drops cancel funcs whose job left the user's set by expiry.
// A set that was extended by a later submission keeps its entries.
func (r *JobQueueRegistry) pruneExpired(ctx context.Context) int {
	now := r.clock.Now()

	r.mu.Lock()
	due := make(map[domain.QueueID]cancelEntry)
	for queueID, entry := range r.cancels {
		if !now.Before(entry.expiresAt) {
			due[queueID] = entry
		}
	}
	r.mu.Unlock()

	pruned := 0
	for queueID, entry := range due {
		member, ttl, err := r.store.Lookup(ctx, entry.userID, queueID)
		if err != nil {
			r.logger.Warn("lookup expiring job queue", "user", entry.userID, "queue", queueID, "error", err)
			continue
		}

		r.mu.Lock()
		current, ok := r.cancels[queueID]
		switch {
		case !ok:
		case member:
			current.expiresAt = now.Add(ttl)
			r.cancels[queueID] = current
		default:
			delete(r.cancels, queueID)
			pruned++
		}
		r.mu.Unlock()
	}

	if pruned > 0 {
		r.logger.Debug("pruned expired job cancel funcs", "count", pruned)
	}
	return pruned
}
