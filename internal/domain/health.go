package domain

import "time"

// HealthStats is the shared-store view of one account's load.
type HealthStats struct {
	ActiveCount   int
	CooldownUntil *time.Time
}

// CoolingDown reports whether the account is still inside its cooldown.
func (s HealthStats) CoolingDown(now time.Time) bool {
	return s.CooldownUntil != nil && now.Before(*s.CooldownUntil)
}
