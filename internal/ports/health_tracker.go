package ports

import (
	"context"
	"time"

	"github.com/bnema/accountpool/internal/domain"
)

// HealthTracker keeps per-account in-flight markers and cooldowns in a store
// shared by every worker process.
type HealthTracker interface {
	RegisterRequestStart(ctx context.Context, accountID domain.AccountID, requestID string, ttl time.Duration) error
	// RegisterRequestEnd clears the in-flight marker and, when cooldownUntil
	// is set, records the cooldown in the same atomic operation.
	RegisterRequestEnd(ctx context.Context, accountID domain.AccountID, requestID string, cooldownUntil *time.Time) error
	Stats(ctx context.Context, accountID domain.AccountID) (domain.HealthStats, error)
}
