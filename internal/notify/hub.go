// Package notify fans broker messages out to live per-user subscribers,
// typically SSE connections.
package notify

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/teamz-workspace/apiserver/internal/mq"
)

// subscriberBuffer bounds each subscriber channel. A subscriber that cannot
// keep up loses messages rather than stalling the dispatcher; the persisted
// feed remains complete.
const subscriberBuffer = 16

type subKey struct {
	channel string
	userID  uuid.UUID
}

// Hub routes payloads to the live subscribers of a (channel, user) pair.
type Hub struct {
	mu     sync.RWMutex
	subs   map[subKey]map[chan []byte]struct{}
	logger zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		subs:   make(map[subKey]map[chan []byte]struct{}),
		logger: logger,
	}
}

// Subscribe registers a live subscriber and returns its channel plus a
// cancel function that must be called when the subscriber goes away.
func (h *Hub) Subscribe(channel string, userID uuid.UUID) (<-chan []byte, func()) {
	key := subKey{channel: channel, userID: userID}
	ch := make(chan []byte, subscriberBuffer)

	h.mu.Lock()
	if h.subs[key] == nil {
		h.subs[key] = make(map[chan []byte]struct{})
	}
	h.subs[key][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[key]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, key)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Dispatch delivers a payload to every live subscriber of the pair.
func (h *Hub) Dispatch(channel string, userID uuid.UUID, payload []byte) {
	key := subKey{channel: channel, userID: userID}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[key] {
		select {
		case ch <- payload:
		default:
			h.logger.Debug().Str("channel", channel).Stringer("user_id", userID).Msg("slow subscriber, message dropped")
		}
	}
}

// HandlerFor adapts the hub into a broker handler for the named channel.
// Messages without a parseable user_id attribute are acked and dropped.
func (h *Hub) HandlerFor(channel string) mq.Handler {
	return func(_ context.Context, msg mq.Message) error {
		userID, err := uuid.Parse(msg.Attributes["user_id"])
		if err != nil {
			h.logger.Warn().Str("channel", channel).Str("msg_id", msg.ID).Msg("message missing user_id attribute")
			return nil
		}
		h.Dispatch(channel, userID, msg.Data)
		return nil
	}
}
