package application

import (
	"sync"

	"github.com/bnema/accountpool/internal/domain"
	"github.com/bnema/accountpool/internal/metrics"
)

const listenerBuffer = 64

// EventStream fans events of one subscription out to the local listeners.
type EventStream struct {
	id domain.SubscriptionID

	mu        sync.Mutex
	listeners map[uint64]chan domain.Event
	nextID    uint64
}

func newEventStream(id domain.SubscriptionID) *EventStream {
	return &EventStream{id: id, listeners: map[uint64]chan domain.Event{}}
}

func (s *EventStream) ID() domain.SubscriptionID {
	return s.id
}

// Publish hands the event to every listener without blocking. A listener
// whose buffer is full misses the event.
func (s *EventStream) Publish(event domain.Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	delivered := 0
	for _, ch := range s.listeners {
		select {
		case ch <- event:
			delivered++
		default:
			metrics.EventsDropped.Inc()
		}
	}
	return delivered
}

func (s *EventStream) attach() (uint64, <-chan domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan domain.Event, listenerBuffer)
	s.listeners[id] = ch
	return id, ch
}

// detach removes the listener and reports how many remain.
func (s *EventStream) detach(id uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch, ok := s.listeners[id]; ok {
		delete(s.listeners, id)
		close(ch)
	}
	return len(s.listeners)
}

func (s *EventStream) listenerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

// StreamRegistry is the process-local table of event streams.
type StreamRegistry struct {
	mu      sync.Mutex
	streams map[domain.SubscriptionID]*EventStream
}

func NewStreamRegistry() *StreamRegistry {
	return &StreamRegistry{streams: map[domain.SubscriptionID]*EventStream{}}
}

// Ensure returns the stream for id, creating it on first use. Concurrent
// callers always get the same stream.
func (r *StreamRegistry) Ensure(id domain.SubscriptionID) *EventStream {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ensureLocked(id)
}

func (r *StreamRegistry) ensureLocked(id domain.SubscriptionID) *EventStream {
	stream, ok := r.streams[id]
	if !ok {
		stream = newEventStream(id)
		r.streams[id] = stream
		metrics.ActiveStreams.Inc()
	}
	return stream
}

// Listen attaches a listener to id. The returned func detaches it and drops
// the stream once no listener is left.
func (r *StreamRegistry) Listen(id domain.SubscriptionID) (<-chan domain.Event, func()) {
	r.mu.Lock()
	stream := r.ensureLocked(id)
	listenerID, ch := stream.attach()
	r.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()

			if stream.detach(listenerID) > 0 {
				return
			}
			// A new listener may have re-used the entry meanwhile.
			if current, ok := r.streams[id]; ok && current == stream && stream.listenerCount() == 0 {
				delete(r.streams, id)
				metrics.ActiveStreams.Dec()
			}
		})
	}
}

func (r *StreamRegistry) Lookup(id domain.SubscriptionID) (*EventStream, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stream, ok := r.streams[id]
	return stream, ok
}

// Deliver pushes the event to the local stream for id. A missing stream is
// the common case on most workers and reports false without error.
func (r *StreamRegistry) Deliver(id domain.SubscriptionID, event domain.Event) bool {
	stream, ok := r.Lookup(id)
	if !ok {
		return false
	}

	stream.Publish(event)
	metrics.EventsDelivered.Inc()
	return true
}

func (r *StreamRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.streams)
}
