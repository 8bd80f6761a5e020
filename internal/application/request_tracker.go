package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/bnema/accountpool/internal/domain"
	"github.com/bnema/accountpool/internal/metrics"
	"github.com/bnema/accountpool/internal/ports"
	"github.com/google/uuid"
)

// DefaultRequestTTL bounds how long a crashed worker can keep an account
// looking busy.
const DefaultRequestTTL = 10 * time.Minute

// RequestTracker marks provider calls in flight on the shared health store.
// Store failures are logged and dropped; tracking never blocks a request.
type RequestTracker struct {
	health ports.HealthTracker
	ttl    time.Duration
	logger *slog.Logger
}

func NewRequestTracker(health ports.HealthTracker, ttl time.Duration, logger *slog.Logger) *RequestTracker {
	if ttl <= 0 {
		ttl = DefaultRequestTTL
	}
	return &RequestTracker{health: health, ttl: ttl, logger: loggerOrDefault(logger)}
}

// Begin registers a new in-flight request and returns its id.
func (t *RequestTracker) Begin(ctx context.Context, accountID domain.AccountID) string {
	requestID := uuid.NewString()
	if err := t.health.RegisterRequestStart(ctx, accountID, requestID, t.ttl); err != nil {
		metrics.HealthStoreErrors.WithLabelValues("start").Inc()
		t.logger.Warn("register request start", "account", accountID, "request", requestID, "error", err)
	}
	return requestID
}

// End clears the in-flight marker. A non-nil cooldownUntil parks the account,
// typically after the provider answered with a rate limit.
func (t *RequestTracker) End(ctx context.Context, accountID domain.AccountID, requestID string, cooldownUntil *time.Time) {
	if err := t.health.RegisterRequestEnd(ctx, accountID, requestID, cooldownUntil); err != nil {
		metrics.HealthStoreErrors.WithLabelValues("end").Inc()
		t.logger.Warn("register request end", "account", accountID, "request", requestID, "error", err)
	}
}
