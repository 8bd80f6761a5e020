// Package log is the alert channel of last resort: alerts become error-level
// log records for whatever collects the process output.
package log

import (
	"context"
	"log/slog"

	"github.com/bnema/accountpool/internal/ports"
)

type Alerter struct {
	logger *slog.Logger
}

var _ ports.Alerter = (*Alerter)(nil)

func New(logger *slog.Logger) *Alerter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Alerter{logger: logger.With("component", "alert")}
}

func (a *Alerter) Alert(ctx context.Context, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.logger.ErrorContext(ctx, message, "alert", true)
	return nil
}
