package raffle_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ms-raffles/internal/sse"
)

// StreamRaffleEvents streams the events of one raffle.
func (h *Handler) StreamRaffleEvents(w http.ResponseWriter, r *http.Request) {
	key, ok := h.raffleKey(w, r)
	if !ok {
		return
	}
	h.stream(w, r, key.String())
}

// StreamAllEvents streams the events of every raffle.
func (h *Handler) StreamAllEvents(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, sse.AllRaffles)
}

func (h *Handler) stream(w http.ResponseWriter, r *http.Request, raffleKey string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	// Streams outlive the server write timeout
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	// Set headers for SSE
	setupSSEHeaders(w)

	// Create a context that cancels when the client disconnects
	ctx := r.Context()
	eventChan := h.Emitter.Subscribe(ctx, raffleKey)

	// Send initial connection established message
	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"raffle\":\"%s\"}\n\n", raffleKey)
	flusher.Flush()

	h.Logger.Info("SSE", fmt.Sprintf("client connected to raffle events for %q", raffleKey))

	for {
		select {
		case ev, ok := <-eventChan:
			if !ok {
				h.Logger.Debug("SSE", fmt.Sprintf("channel closed for raffle %q", raffleKey))
				return
			}

			jsonData, err := json.Marshal(ev)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("failed to serialize raffle event: %v", err))
				continue
			}

			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, jsonData)
			flusher.Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("client disconnected from raffle events for %q", raffleKey))
			return
		}
	}
}

// Helper function to set up SSE headers
func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
