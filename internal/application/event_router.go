package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bnema/accountpool/internal/domain"
	"github.com/bnema/accountpool/internal/metrics"
	"github.com/bnema/accountpool/internal/ports"
	"golang.org/x/sync/errgroup"
)

// Role says whether a process relays worker broadcasts to the fleet.
type Role string

const (
	RoleCoordinator Role = "coordinator"
	RoleWorker      Role = "worker"
)

func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleCoordinator:
		return RoleCoordinator, nil
	case RoleWorker, "":
		return RoleWorker, nil
	default:
		return "", fmt.Errorf("unsupported process role %q", raw)
	}
}

const (
	allChannelPrefix         = "apool:events:all:"
	coordinatorChannelPrefix = "apool:events:coordinator:"
)

// EventRouter gets an event from whichever process produced it to the one
// process holding the live listener. Workers hand events to the
// coordinator, the coordinator re-broadcasts to every process, and each
// process delivers into its own StreamRegistry. Nothing is delivered locally
// without going through the bus, so a process sees each event once.
type EventRouter struct {
	role    Role
	origin  string
	bus     ports.PubSub
	codec   ports.EnvelopeCodec
	streams *StreamRegistry
	logger  *slog.Logger
}

func NewEventRouter(role Role, origin string, bus ports.PubSub, codec ports.EnvelopeCodec, streams *StreamRegistry, logger *slog.Logger) *EventRouter {
	return &EventRouter{
		role:    role,
		origin:  origin,
		bus:     bus,
		codec:   codec,
		streams: streams,
		logger:  loggerOrDefault(logger),
	}
}

func (r *EventRouter) Streams() *StreamRegistry {
	return r.streams
}

// Broadcast sends event towards the listener of id, wherever it lives.
func (r *EventRouter) Broadcast(ctx context.Context, id domain.SubscriptionID, event domain.Event) error {
	payload, err := r.codec.Encode(domain.Envelope{SubscriptionID: id, Event: event, Origin: r.origin})
	if err != nil {
		return fmt.Errorf("encode event envelope: %w", err)
	}

	channel := allChannelPrefix + string(id)
	if r.role != RoleCoordinator {
		channel = coordinatorChannelPrefix + string(id)
	}

	if err := r.bus.Publish(ctx, channel, payload); err != nil {
		return fmt.Errorf("publish event for %s: %w", id, err)
	}
	return nil
}

// Run delivers fleet broadcasts into local streams and, on the coordinator,
// relays worker submissions. It returns when ctx is done.
func (r *EventRouter) Run(ctx context.Context) error {
	all, relay, err := r.subscribe(ctx)
	if err != nil {
		return err
	}
	return r.serve(ctx, all, relay)
}

// subscribe opens the broker subscriptions. relay is nil on workers.
func (r *EventRouter) subscribe(ctx context.Context) (all ports.Subscription, relay ports.Subscription, err error) {
	all, err = r.bus.Subscribe(ctx, allChannelPrefix+"*")
	if err != nil {
		return nil, nil, fmt.Errorf("subscribe fleet broadcasts: %w", err)
	}

	if r.role == RoleCoordinator {
		relay, err = r.bus.Subscribe(ctx, coordinatorChannelPrefix+"*")
		if err != nil {
			_ = all.Close()
			return nil, nil, fmt.Errorf("subscribe coordinator channel: %w", err)
		}
	}

	return all, relay, nil
}

func (r *EventRouter) serve(ctx context.Context, all, relay ports.Subscription) error {
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		defer all.Close()
		return r.consume(ctx, all, r.deliver)
	})
	if relay != nil {
		group.Go(func() error {
			defer relay.Close()
			return r.consume(ctx, relay, r.relay)
		})
	}

	return group.Wait()
}

func (r *EventRouter) consume(ctx context.Context, sub ports.Subscription, handle func(context.Context, ports.Message)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-sub.Messages():
			if !ok {
				return nil
			}
			handle(ctx, msg)
		}
	}
}

func (r *EventRouter) deliver(_ context.Context, msg ports.Message) {
	envelope, err := r.codec.Decode(msg.Payload)
	if err != nil {
		r.logger.Warn("drop undecodable event", "channel", msg.Channel, "error", err)
		return
	}

	if !r.streams.Deliver(envelope.SubscriptionID, envelope.Event) {
		r.logger.Debug("no local listener for event", "subscription", envelope.SubscriptionID, "origin", envelope.Origin)
	}
}

// relay forwards a worker submission to the whole fleet untouched.
func (r *EventRouter) relay(ctx context.Context, msg ports.Message) {
	id := strings.TrimPrefix(msg.Channel, coordinatorChannelPrefix)
	if err := r.bus.Publish(ctx, allChannelPrefix+id, msg.Payload); err != nil {
		r.logger.Error("relay event to workers", "subscription", id, "error", err)
		return
	}
	metrics.EventsRelayed.Inc()
}
