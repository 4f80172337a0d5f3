package mq

import "context"

// Channel names used by the workspace.
const (
	// NotificationsChannel carries per-user notification fan-out.
	NotificationsChannel = "notifications"
	// AuthEventsChannel carries sign-in/sign-out events for live clients.
	AuthEventsChannel = "auth_events"
)

// Message is a broker-agnostic payload. Attributes carry routing metadata
// such as the target user id.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a delivered message. Returning an error nacks the
// message so the broker can redeliver it.
type Handler func(ctx context.Context, msg Message) error

// Backend is implemented per broker.
type Backend interface {
	Publish(ctx context.Context, channel string, msg Message) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// Broker wraps a backend with a stable API.
type Broker struct {
	backend Backend
}

// NewBroker constructs a Broker for the provided backend.
func NewBroker(backend Backend) *Broker {
	return &Broker{backend: backend}
}

// Publish sends a message to the named channel and returns the broker's
// message id.
func (b *Broker) Publish(ctx context.Context, channel string, msg Message) (string, error) {
	return b.backend.Publish(ctx, channel, msg)
}

// Subscribe consumes messages from the named channel until ctx is done.
func (b *Broker) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return b.backend.Subscribe(ctx, channel, handler)
}

// Close closes the underlying backend.
func (b *Broker) Close() error {
	return b.backend.Close()
}
