package portalhandler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const heartbeatInterval = 15 * time.Second

// HandleEvents streams session snapshots as Server-Sent Events. With ?path=
// it streams guard decisions for that path instead, emitting only when the
// decision changes.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	if target := r.URL.Query().Get("path"); target != "" {
		changes := h.Policy.Monitor(ctx, h.Sessions.Store, target)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Fprint(w, ": heartbeat\n\n")
				flusher.Flush()
			case change, ok := <-changes:
				if !ok {
					return
				}
				payload := guardResult{Path: change.Path, Decision: change.Decision, Location: change.Location}
				if err := sendEvent(w, flusher, "guard", payload); err != nil {
					h.logger().Debug("sse client disconnected", "err", err)
					return
				}
			}
		}
	}

	updates := h.Sessions.Store.Watch(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case sess, ok := <-updates:
			if !ok {
				return
			}
			if err := sendEvent(w, flusher, "session", sess); err != nil {
				h.logger().Debug("sse client disconnected", "err", err)
				return
			}
		}
	}
}

func sendEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
