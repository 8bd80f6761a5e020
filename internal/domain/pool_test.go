package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPoolValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pool    Pool
		wantErr string
	}{
		{
			name: "valid",
			pool: Pool{ID: "mj-default", Provider: "midjourney", Mode: PoolModeRotation},
		},
		{
			name:    "missing id",
			pool:    Pool{Provider: "midjourney", Mode: PoolModeRotation},
			wantErr: "id is required",
		},
		{
			name:    "missing provider",
			pool:    Pool{ID: "mj-default", Mode: PoolModeRotation},
			wantErr: "provider is required",
		},
		{
			name:    "unsupported mode",
			pool:    Pool{ID: "mj-default", Provider: "midjourney", Mode: "random"},
			wantErr: "unsupported pool mode",
		},
		{
			name:    "negative concurrency",
			pool:    Pool{ID: "keys", Provider: "openai", Mode: PoolModeWeighted, MaxConcurrent: -1},
			wantErr: "must not be negative",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.pool.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestPoolSwitchDue(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 2, 28, 12, 0, 0, 0, time.UTC)
	later := now.Add(time.Minute)

	assert.True(t, Pool{}.SwitchDue(now))
	assert.False(t, Pool{NextSwitchTime: &later}.SwitchDue(now))
	assert.True(t, Pool{NextSwitchTime: &now}.SwitchDue(now))
}

func TestActiveAccountSkipsCreatedAndDisabled(t *testing.T) {
	t.Parallel()

	disabledAt := time.Date(2026, 2, 28, 12, 0, 0, 0, time.UTC)
	accounts := []Account{
		{ID: "new", Status: AccountStatusCreated},
		{ID: "old", Status: AccountStatusFast, DisabledAt: &disabledAt},
		{ID: "off", Status: AccountStatusDisabled},
		{ID: "live", Status: AccountStatusFast},
	}

	assert.Equal(t, 3, ActiveAccount(accounts))
	assert.Equal(t, -1, ActiveAccount(accounts[:3]))
}
