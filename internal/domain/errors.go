package domain

import "errors"

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrPoolNotFound    = errors.New("pool not found")
	ErrSecretNotFound  = errors.New("secret not found")

	// ErrNoValidNextAccount means a full rotation scan found no account in an
	// activatable state. Operators have to re-enable accounts by hand.
	ErrNoValidNextAccount = errors.New("no valid next account")
	// ErrNoAccountsAvailable is the terminal, caller-facing exhaustion error.
	ErrNoAccountsAvailable = errors.New("no accounts available")
	// ErrAccountUnavailable is a transient selection miss; callers retry.
	ErrAccountUnavailable = errors.New("account unavailable")
	ErrPoolConflict       = errors.New("pool was modified concurrently")
	ErrIllegalTransition  = errors.New("illegal account transition")
	ErrInvalidWeight      = errors.New("invalid account weight")
	ErrEmptyPool          = errors.New("pool has no accounts")

	ErrQueueQuotaExceeded = errors.New("job queue quota exceeded")
	ErrInvalidJobLimit    = errors.New("invalid job queue limit")
)
