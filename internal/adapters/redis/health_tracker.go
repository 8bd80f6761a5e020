package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bnema/accountpool/internal/domain"
	"github.com/bnema/accountpool/internal/ports"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// CooldownWindow is how long a cooldown marker survives, independent of
// the cooldown deadline it stores.
const CooldownWindow = 24 * time.Hour

const scanBatch = 100

// endRequest drops the in-flight marker and, when ARGV[1] is set, records
// the cooldown deadline in the same round trip.
var endRequest = goredis.NewScript(`
redis.call('DEL', KEYS[1])
if ARGV[1] ~= '' then
	redis.call('SET', KEYS[2], ARGV[1], 'PX', ARGV[2])
end
return 1
`)

type HealthTracker struct {
	client goredis.UniversalClient
}

var _ ports.HealthTracker = (*HealthTracker)(nil)

func NewHealthTracker(client goredis.UniversalClient) *HealthTracker {
	return &HealthTracker{client: client}
}

func (h *HealthTracker) RegisterRequestStart(ctx context.Context, accountID domain.AccountID, requestID string, ttl time.Duration) error {
	if err := h.client.Set(ctx, requestKey(accountID, requestID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("register request start: %w", err)
	}
	return nil
}

func (h *HealthTracker) RegisterRequestEnd(ctx context.Context, accountID domain.AccountID, requestID string, cooldownUntil *time.Time) error {
	cooldown := ""
	if cooldownUntil != nil {
		cooldown = strconv.FormatInt(cooldownUntil.UnixMilli(), 10)
	}

	keys := []string{requestKey(accountID, requestID), cooldownKey(accountID)}
	if err := endRequest.Run(ctx, h.client, keys, cooldown, CooldownWindow.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("register request end: %w", err)
	}
	return nil
}

// Stats counts live request markers and reads the cooldown deadline
// concurrently. Missing keys mean no load and no cooldown.
func (h *HealthTracker) Stats(ctx context.Context, accountID domain.AccountID) (domain.HealthStats, error) {
	var stats domain.HealthStats

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		count, err := h.countRequests(gctx, accountID)
		if err != nil {
			return err
		}
		stats.ActiveCount = count
		return nil
	})
	group.Go(func() error {
		until, err := h.cooldown(gctx, accountID)
		if err != nil {
			return err
		}
		stats.CooldownUntil = until
		return nil
	})

	if err := group.Wait(); err != nil {
		return domain.HealthStats{}, fmt.Errorf("health stats of %s: %w", accountID, err)
	}
	return stats, nil
}

func (h *HealthTracker) countRequests(ctx context.Context, accountID domain.AccountID) (int, error) {
	match := escapeGlob(requestKeyPrefix(accountID)) + "*"

	count := 0
	var cursor uint64
	for {
		keys, next, err := h.client.Scan(ctx, cursor, match, scanBatch).Result()
		if err != nil {
			return 0, fmt.Errorf("scan request markers: %w", err)
		}
		count += len(keys)
		if next == 0 {
			return count, nil
		}
		cursor = next
	}
}

func (h *HealthTracker) cooldown(ctx context.Context, accountID domain.AccountID) (*time.Time, error) {
	ms, err := h.client.Get(ctx, cooldownKey(accountID)).Int64()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cooldown: %w", err)
	}

	until := time.UnixMilli(ms).UTC()
	return &until, nil
}

// Keys share the {account} hash tag so the end script stays on one slot.
func accountTag(accountID domain.AccountID) string {
	return keyPrefix + "health:{" + string(accountID) + "}"
}

func requestKeyPrefix(accountID domain.AccountID) string {
	return accountTag(accountID) + ":req:"
}

func requestKey(accountID domain.AccountID, requestID string) string {
	return requestKeyPrefix(accountID) + requestID
}

func cooldownKey(accountID domain.AccountID) string {
	return accountTag(accountID) + ":cooldown"
}
