package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bnema/accountpool/internal/domain"
	"github.com/bnema/accountpool/internal/metrics"
	"github.com/bnema/accountpool/internal/ports"
)

const (
	findAttempts = 3
	alertTimeout = 5 * time.Second
)

// AvailabilityResolver retries transient selection failures and turns
// exhaustion into one operator alert plus domain.ErrNoAccountsAvailable.
type AvailabilityResolver struct {
	source  AccountSource
	alerter ports.Alerter
	logger  *slog.Logger
}

func NewAvailabilityResolver(source AccountSource, alerter ports.Alerter, logger *slog.Logger) *AvailabilityResolver {
	return &AvailabilityResolver{source: source, alerter: alerter, logger: loggerOrDefault(logger)}
}

func (r *AvailabilityResolver) FindAvailableAccount(ctx context.Context) (domain.Account, error) {
	var lastErr error
	for attempt := 1; attempt <= findAttempts; attempt++ {
		account, err := r.source.Acquire(ctx)
		if err == nil {
			return account, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.Account{}, ctxErr
		}

		lastErr = err
		r.logger.Debug("account selection failed", "pool", r.source.PoolID(), "attempt", attempt, "error", err)
	}

	poolID := r.source.PoolID()
	metrics.PoolExhaustions.WithLabelValues(string(poolID)).Inc()
	r.notify(ctx, fmt.Sprintf("account pool %s exhausted after %d attempts: %v", poolID, findAttempts, lastErr))

	return domain.Account{}, fmt.Errorf("%w: pool %s: %w", domain.ErrNoAccountsAvailable, poolID, lastErr)
}

func (r *AvailabilityResolver) notify(ctx context.Context, message string) {
	if r.alerter == nil {
		return
	}

	alertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertTimeout)
	defer cancel()

	if err := r.alerter.Alert(alertCtx, message); err != nil {
		r.logger.Error("send operator alert", "pool", r.source.PoolID(), "error", err)
	}
}

// IsExhausted reports whether err is the terminal pool exhaustion error.
func IsExhausted(err error) bool {
	return errors.Is(err, domain.ErrNoAccountsAvailable)
}
