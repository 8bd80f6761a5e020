package domain

import (
	"fmt"
	"strings"
	"time"
)

type PoolID string
type Provider string

// PoolMode selects how a pool hands out accounts.
type PoolMode string

const (
	// PoolModeRotation keeps exactly one serving account and rotates it on a
	// schedule or on failure.
	PoolModeRotation PoolMode = "rotation"
	// PoolModeWeighted dispatches concurrently across every account in
	// proportion to its weight.
	PoolModeWeighted PoolMode = "weighted"
)

func (m PoolMode) Valid() bool {
	return m == PoolModeRotation || m == PoolModeWeighted
}

type Pool struct {
	ID             PoolID
	Name           string
	Provider       Provider
	Mode           PoolMode
	MaxConcurrent  int
	NextSwitchTime *time.Time
	// Version is the optimistic concurrency token. Commit rejects a
	// transition whose Version differs from the stored one.
	Version   int64
	UpdatedAt time.Time
}

func (p Pool) Validate() error {
	if strings.TrimSpace(string(p.ID)) == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(string(p.Provider)) == "" {
		return fmt.Errorf("provider is required")
	}
	if !p.Mode.Valid() {
		return fmt.Errorf("unsupported pool mode %q", p.Mode)
	}
	if p.MaxConcurrent < 0 {
		return fmt.Errorf("max concurrent must not be negative")
	}

	return nil
}

// SwitchDue reports whether the scheduled rotation deadline has passed.
func (p Pool) SwitchDue(now time.Time) bool {
	return p.NextSwitchTime == nil || !now.Before(*p.NextSwitchTime)
}

// PoolTransition is one atomic durable mutation of a pool and its accounts.
type PoolTransition struct {
	Pool     Pool
	Accounts []Account
	Removed  []AccountID
	// Release deletes the pool record; set when its last account goes away.
	Release bool
}

// ActiveAccount returns the index of the serving account, or -1.
func ActiveAccount(accounts []Account) int {
	for i, account := range accounts {
		if account.Serving() {
			return i
		}
	}
	return -1
}
