package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bnema/accountpool/internal/domain"
	"github.com/gorilla/mux"
)

type eventRequest struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data string `json:"data"`
}

// StreamEvents relays events delivered to the local stream registry as
// server-sent events until the client disconnects.
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	id := domain.SubscriptionID(mux.Vars(r)["id"])
	events, unsubscribe := h.deps.Streams.Listen(id)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	// The comment tells clients the listener is attached.
	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(h.deps.Heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(w, event); err != nil {
				h.logger.Debug("write event", "stream", id, "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event domain.Event) error {
	var b strings.Builder
	if event.ID != "" {
		fmt.Fprintf(&b, "id: %s\n", event.ID)
	}
	if event.Type != "" {
		fmt.Fprintf(&b, "event: %s\n", event.Type)
	}
	for _, line := range strings.Split(string(event.Data), "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")

	_, err := fmt.Fprint(w, b.String())
	return err
}

// PublishEvent broadcasts an event to every process serving the stream.
func (h *Handler) PublishEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid event body")
		return
	}
	if strings.ContainsAny(req.Type, "\r\n") || strings.ContainsAny(req.ID, "\r\n") {
		respondError(w, http.StatusBadRequest, "event id and type must be single-line")
		return
	}

	id := domain.SubscriptionID(mux.Vars(r)["id"])
	event := domain.Event{ID: req.ID, Type: req.Type, Data: []byte(req.Data)}
	if err := h.deps.Events.Broadcast(r.Context(), id, event); err != nil {
		h.respondDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}
