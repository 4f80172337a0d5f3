package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/teamz-workspace/apiserver/internal/notify"
)

// keepAliveInterval spaces SSE comments so idle proxies keep the stream up.
const keepAliveInterval = 25 * time.Second

// streamSSE pipes a principal's hub subscription to the client as
// server-sent events until the client disconnects.
func streamSSE(w http.ResponseWriter, r *http.Request, hub *notify.Hub, channel string, userID uuid.UUID, logger zerolog.Logger) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events, cancel := hub.Subscribe(channel, userID)
	defer cancel()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case payload := <-events:
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				logger.Debug().Err(err).Str("channel", channel).Msg("sse write failed")
				return
			}
			flusher.Flush()
		}
	}
}
