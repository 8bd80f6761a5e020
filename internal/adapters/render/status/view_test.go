package status

import (
	"testing"
	"time"

	"github.com/bnema/accountpool/internal/application"
	"github.com/bnema/accountpool/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var renderNow = time.Date(2026, 2, 14, 11, 0, 0, 0, time.UTC)

func TestRenderNoPools(t *testing.T) {
	output, err := Render(nil, RenderOptions{Now: renderNow})

	require.NoError(t, err)
	assert.Contains(t, output, "pools: 0")
	assert.Contains(t, output, "No pools configured.")
}

func TestRenderRotationPool(t *testing.T) {
	next := renderNow.Add(5 * time.Hour)
	rested := renderNow.Add(-3 * time.Hour)

	output, err := Render([]application.PoolStatus{
		{
			Pool: domain.Pool{ID: "openai-main", Provider: "openai", Mode: domain.PoolModeRotation, NextSwitchTime: &next},
			Accounts: []application.AccountView{
				{Account: domain.Account{ID: "acc-1", Name: "Primary", Status: domain.AccountStatusRelaxed, DisabledAt: &rested}},
				{Account: domain.Account{ID: "acc-2", Name: "Backup", Status: domain.AccountStatusFast}, Health: &domain.HealthStats{ActiveCount: 2}},
				{Account: domain.Account{ID: "acc-3", Status: domain.AccountStatusDisabled}},
			},
		},
	}, RenderOptions{Now: renderNow})

	require.NoError(t, err)
	assert.Contains(t, output, "pools: 1")
	assert.Contains(t, output, "openai-main (rotation, openai)")
	assert.Contains(t, output, "next switch: in 5 hours (16:00)")
	assert.Contains(t, output, "Primary (acc-1)")
	assert.Contains(t, output, "[relaxed]")
	assert.Contains(t, output, "resting since 08:00")
	assert.Contains(t, output, "> Backup (acc-2)")
	assert.Contains(t, output, "2 in flight")
	assert.Contains(t, output, "acc-3 [disabled] excluded")
	assert.NotContains(t, output, "> Primary")
}

func TestRenderWeightedPoolShowsLoadAndCooldown(t *testing.T) {
	cooldown := renderNow.Add(3 * 24 * time.Hour)

	output, err := Render([]application.PoolStatus{
		{
			Pool: domain.Pool{ID: "claude", Provider: "anthropic", Mode: domain.PoolModeWeighted, MaxConcurrent: 4},
			Accounts: []application.AccountView{
				{Account: domain.Account{ID: "a", Weight: 1, Status: domain.AccountStatusCreated}, Health: &domain.HealthStats{ActiveCount: 2}},
				{Account: domain.Account{ID: "b", Weight: 3, Status: domain.AccountStatusCreated}, Health: &domain.HealthStats{ActiveCount: 4, CooldownUntil: &cooldown}},
			},
		},
	}, RenderOptions{Now: renderNow})

	require.NoError(t, err)
	assert.Contains(t, output, "max concurrent: 4 per account")
	assert.Contains(t, output, "weight 3")
	assert.Contains(t, output, "[========--------] 2/4 in flight")
	assert.Contains(t, output, "[================] 4/4 in flight")
	assert.Contains(t, output, "[cooldown, resumes in 3 days (11:00 on 17 Feb)]")
	assert.NotContains(t, output, ">")
}

func TestRenderHidesExpiredCooldown(t *testing.T) {
	expired := renderNow.Add(-time.Minute)

	output, err := Render([]application.PoolStatus{
		{
			Pool: domain.Pool{ID: "claude", Provider: "anthropic", Mode: domain.PoolModeWeighted},
			Accounts: []application.AccountView{
				{Account: domain.Account{ID: "a", Weight: 1, Status: domain.AccountStatusCreated}, Health: &domain.HealthStats{CooldownUntil: &expired}},
			},
		},
	}, RenderOptions{Now: renderNow})

	require.NoError(t, err)
	assert.Contains(t, output, "max concurrent: unbounded")
	assert.Contains(t, output, "0 in flight")
	assert.NotContains(t, output, "cooldown")
}

func TestRenderWithoutNowUsesAbsoluteTimes(t *testing.T) {
	next := time.Date(2026, 2, 15, 9, 30, 0, 0, time.UTC)

	output, err := Render([]application.PoolStatus{
		{Pool: domain.Pool{ID: "p", Provider: "openai", Mode: domain.PoolModeRotation, NextSwitchTime: &next}},
	}, RenderOptions{})

	require.NoError(t, err)
	assert.Contains(t, output, "next switch: at 2026-02-15T09:30:00Z")
	assert.Contains(t, output, "no accounts")
}

func TestFormatRelative(t *testing.T) {
	testCases := []struct {
		at   time.Time
		want string
	}{
		{at: renderNow.Add(-time.Second), want: "now"},
		{at: renderNow.Add(time.Minute), want: "in 1 minute (11:01)"},
		{at: renderNow.Add(45 * time.Minute), want: "in 45 minutes (11:45)"},
		{at: renderNow.Add(time.Hour), want: "in 1 hour (12:00)"},
		{at: renderNow.Add(25 * time.Hour), want: "in 2 days (12:00 on 15 Feb)"},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.want, formatRelative(tc.at, renderNow, "now"))
	}
}
