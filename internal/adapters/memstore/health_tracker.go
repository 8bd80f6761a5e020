// Package memstore keeps request health and job-queue sets in process
// memory, with the same expiry semantics as the redis adapters. It backs
// single-process deployments that run without a redis address.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/bnema/accountpool/internal/domain"
	"github.com/bnema/accountpool/internal/ports"
)

// CooldownWindow matches the redis adapter: a cooldown marker outlives its
// deadline by at most this long.
const CooldownWindow = 24 * time.Hour

type cooldownEntry struct {
	until   time.Time
	expires time.Time
}

type HealthTracker struct {
	clock ports.Clock

	mu        sync.Mutex
	requests  map[domain.AccountID]map[string]time.Time
	cooldowns map[domain.AccountID]cooldownEntry
}

var _ ports.HealthTracker = (*HealthTracker)(nil)

func NewHealthTracker(clock ports.Clock) *HealthTracker {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &HealthTracker{
		clock:     clock,
		requests:  map[domain.AccountID]map[string]time.Time{},
		cooldowns: map[domain.AccountID]cooldownEntry{},
	}
}

func (h *HealthTracker) RegisterRequestStart(ctx context.Context, accountID domain.AccountID, requestID string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	markers := h.requests[accountID]
	if markers == nil {
		markers = map[string]time.Time{}
		h.requests[accountID] = markers
	}
	markers[requestID] = h.clock.Now().Add(ttl)
	return nil
}

func (h *HealthTracker) RegisterRequestEnd(ctx context.Context, accountID domain.AccountID, requestID string, cooldownUntil *time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.requests[accountID], requestID)
	if len(h.requests[accountID]) == 0 {
		delete(h.requests, accountID)
	}
	if cooldownUntil != nil {
		h.cooldowns[accountID] = cooldownEntry{until: *cooldownUntil, expires: h.clock.Now().Add(CooldownWindow)}
	}
	return nil
}

// Stats prunes expired markers as it counts.
func (h *HealthTracker) Stats(ctx context.Context, accountID domain.AccountID) (domain.HealthStats, error) {
	if err := ctx.Err(); err != nil {
		return domain.HealthStats{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.clock.Now()
	var stats domain.HealthStats
	for id, expires := range h.requests[accountID] {
		if !now.Before(expires) {
			delete(h.requests[accountID], id)
			continue
		}
		stats.ActiveCount++
	}

	if entry, ok := h.cooldowns[accountID]; ok {
		if now.Before(entry.expires) {
			until := entry.until
			stats.CooldownUntil = &until
		} else {
			delete(h.cooldowns, accountID)
		}
	}

	return stats, nil
}
