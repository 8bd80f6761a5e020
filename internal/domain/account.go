package domain

import (
	"fmt"
	"strings"
	"time"
)

type AccountID string

// AccountStatus is the persisted tier of an account. Whether an account is
// currently serving is carried separately by Account.DisabledAt.
type AccountStatus string

const (
	AccountStatusCreated  AccountStatus = "created"
	AccountStatusFast     AccountStatus = "fast"
	AccountStatusRelaxed  AccountStatus = "relaxed"
	AccountStatusDisabled AccountStatus = "disabled"
)

func (s AccountStatus) Valid() bool {
	switch s {
	case AccountStatusCreated, AccountStatusFast, AccountStatusRelaxed, AccountStatusDisabled:
		return true
	default:
		return false
	}
}

// Activatable reports whether rotation may pick an account in this status.
func (s AccountStatus) Activatable() bool {
	return s == AccountStatusCreated || s == AccountStatusFast
}

func ParseAccountStatus(raw string) (AccountStatus, error) {
	status := AccountStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", fmt.Errorf("unsupported account status %q", raw)
	}
	return status, nil
}

type Account struct {
	ID          AccountID
	PoolID      PoolID
	Name        string
	Weight      int
	Status      AccountStatus
	DisabledAt  *time.Time
	Generations int
	SecretRef   string
	CreatedAt   time.Time
}

// Serving reports whether the account is the active member of a rotation pool.
func (a Account) Serving() bool {
	return a.DisabledAt == nil && a.Status != AccountStatusCreated && a.Status != AccountStatusDisabled
}

func (a Account) Validate() error {
	if strings.TrimSpace(string(a.ID)) == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(string(a.PoolID)) == "" {
		return fmt.Errorf("pool id is required")
	}
	if a.Weight <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWeight, a.Weight)
	}
	if !a.Status.Valid() {
		return fmt.Errorf("unsupported account status %q", a.Status)
	}
	return nil
}

// Activate makes the account the serving member of its pool.
func (a *Account) Activate() error {
	if a.Status == AccountStatusDisabled {
		return fmt.Errorf("%w: activate operator-disabled account %s", ErrIllegalTransition, a.ID)
	}
	if a.Serving() && a.Status == AccountStatusFast {
		return fmt.Errorf("%w: account %s is already active", ErrIllegalTransition, a.ID)
	}

	a.DisabledAt = nil
	a.Status = AccountStatusFast
	a.Generations = 0
	return nil
}

// Disable rotates the account out. status records the tier it was operating
// under so the next rotation can tell whether it may come back.
func (a *Account) Disable(now time.Time, status AccountStatus) error {
	if a.DisabledAt != nil {
		return fmt.Errorf("%w: account %s is already disabled", ErrIllegalTransition, a.ID)
	}
	if !status.Valid() || status == AccountStatusCreated {
		return fmt.Errorf("%w: cannot disable into status %q", ErrIllegalTransition, status)
	}

	disabledAt := now
	a.DisabledAt = &disabledAt
	a.Status = status
	a.Generations = 0
	return nil
}

// Exclude is the operator switch: the account stays out of every rotation
// until Reenable is called.
func (a *Account) Exclude(now time.Time) error {
	if a.Status == AccountStatusDisabled {
		return fmt.Errorf("%w: account %s is already excluded", ErrIllegalTransition, a.ID)
	}

	if a.DisabledAt == nil {
		disabledAt := now
		a.DisabledAt = &disabledAt
	}
	a.Status = AccountStatusDisabled
	a.Generations = 0
	return nil
}

// Reenable returns an excluded account to the pool as a fresh candidate.
func (a *Account) Reenable() error {
	if a.Status != AccountStatusDisabled {
		return fmt.Errorf("%w: account %s is not excluded", ErrIllegalTransition, a.ID)
	}

	a.DisabledAt = nil
	a.Status = AccountStatusCreated
	return nil
}
