package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/EdgeAdaptics/triage/internal/events"
)

type connectedPayload struct {
	Connected bool   `json:"connected"`
	Message   string `json:"message"`
}

type heartbeatPayload struct {
	Heartbeat bool `json:"heartbeat"`
}

// handleEventsStream relays bus events to one client as text/event-stream
// frames until the client goes away or a write fails. The subscription and
// the heartbeat ticker are released on every exit path.
func (a *API) handleEventsStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", "Cache-Control")

	// The stream outlives the server's write timeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		a.log.DebugContext(r.Context(), "cannot clear write deadline", slog.String("err", err.Error()))
	}

	sub := a.events.Subscribe(events.AllTypes...)
	defer sub.Close()

	ticker := time.NewTicker(a.heartbeat)
	defer ticker.Stop()

	w.WriteHeader(http.StatusOK)

	send := func(evt events.Event) error {
		if err := writeFrame(w, evt); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	err := send(events.Event{
		Type:      events.IssueUpdate,
		Payload:   connectedPayload{Connected: true, Message: "Real-time connection established"},
		Timestamp: a.events.Now(),
	})
	if err != nil {
		return
	}
	a.log.DebugContext(r.Context(), "event stream opened", slog.String("remote", r.RemoteAddr))
	defer a.log.DebugContext(r.Context(), "event stream closed", slog.String("remote", r.RemoteAddr))

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub.C():
			if !ok {
				return
			}
			err = send(evt)
		case <-ticker.C:
			err = send(events.Event{
				Type:      events.IssueUpdate,
				Payload:   heartbeatPayload{Heartbeat: true},
				Timestamp: a.events.Now(),
			})
		}
		if err != nil {
			a.log.DebugContext(ctx, "event stream write failed", slog.String("err", err.Error()))
			return
		}
	}
}

func writeFrame(w io.Writer, evt events.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", evt.Type, err)
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
