package ports

import "context"

// Alerter is the one-way operator notification channel.
type Alerter interface {
	Alert(ctx context.Context, message string) error
}
