// Package memory is an in-process pub/sub bus. Every Router sharing one Bus
// behaves like a separate worker process on a shared broker, which is what
// single-process deployments and tests need.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/bnema/accountpool/internal/ports"
)

const subscriptionBuffer = 256

type Bus struct {
	mu   sync.RWMutex
	subs map[*subscription]struct{}
}

var _ ports.PubSub = (*Bus)(nil)

func NewBus() *Bus {
	return &Bus{subs: map[*subscription]struct{}{}}
}

// Publish delivers payload to every matching subscriber in publish order.
// It blocks while a subscriber's buffer is full.
func (b *Bus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	msg := ports.Message{Channel: channel, Payload: append([]byte(nil), payload...)}
	for sub := range b.subs {
		if !matchPattern(sub.pattern, channel) {
			continue
		}
		select {
		case sub.messages <- msg:
		case <-sub.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

func (b *Bus) Subscribe(ctx context.Context, pattern string) (ports.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := &subscription{
		bus:      b,
		pattern:  pattern,
		messages: make(chan ports.Message, subscriptionBuffer),
		done:     make(chan struct{}),
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	return sub, nil
}

type subscription struct {
	bus      *Bus
	pattern  string
	messages chan ports.Message
	done     chan struct{}
	once     sync.Once
}

func (s *subscription) Messages() <-chan ports.Message {
	return s.messages
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		close(s.done)

		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()

		close(s.messages)
	})
	return nil
}

// matchPattern supports exact channels and a trailing "*" wildcard, the
// only pattern shapes the router and job registry use.
func matchPattern(pattern, channel string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(channel, prefix)
	}
	return pattern == channel
}
