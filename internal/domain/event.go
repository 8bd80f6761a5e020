package domain

// SubscriptionID correlates an event with the stream a client listens on,
// usually a chat id or a job queue id.
type SubscriptionID string

type Event struct {
	ID   string
	Type string
	Data []byte
}

// Envelope is the wire unit the event router broadcasts between processes.
type Envelope struct {
	SubscriptionID SubscriptionID
	Event          Event
	Origin         string
}
