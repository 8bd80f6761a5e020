package redis

import (
	"context"
	"fmt"
	"sync"

	"github.com/bnema/accountpool/internal/ports"
	goredis "github.com/redis/go-redis/v9"
)

// PubSub carries router and cancellation traffic over Redis PUBLISH and
// PSUBSCRIBE. Delivery is at most once; a process that is not subscribed
// when a message is published never sees it.
type PubSub struct {
	client goredis.UniversalClient
}

var _ ports.PubSub = (*PubSub)(nil)

func NewPubSub(client goredis.UniversalClient) *PubSub {
	return &PubSub{client: client}
}

func (p *PubSub) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	return nil
}

// Subscribe returns once the server confirmed the subscription, so messages
// published after it returns are not missed.
func (p *PubSub) Subscribe(ctx context.Context, pattern string) (ports.Subscription, error) {
	ps := p.client.PSubscribe(ctx, pattern)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("psubscribe %s: %w", pattern, err)
	}

	sub := &subscription{ps: ps, messages: make(chan ports.Message), done: make(chan struct{})}
	go sub.forward(ps.Channel())
	return sub, nil
}

type subscription struct {
	ps       *goredis.PubSub
	messages chan ports.Message
	done     chan struct{}
	once     sync.Once
	err      error
}

func (s *subscription) forward(in <-chan *goredis.Message) {
	defer close(s.messages)
	for msg := range in {
		select {
		case s.messages <- ports.Message{Channel: msg.Channel, Payload: []byte(msg.Payload)}:
		case <-s.done:
			return
		}
	}
}

func (s *subscription) Messages() <-chan ports.Message {
	return s.messages
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.err = s.ps.Close()
	})
	return s.err
}
