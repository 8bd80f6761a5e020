package ports

import "context"

type Message struct {
	Channel string
	Payload []byte
}

// PubSub is the broadcast transport shared by the worker fleet. Publish
// order to one channel is preserved for each subscriber.
type PubSub interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe listens on a glob pattern such as "events:all:*".
	Subscribe(ctx context.Context, pattern string) (Subscription, error)
}

type Subscription interface {
	Messages() <-chan Message
	Close() error
}
