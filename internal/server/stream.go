package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// event is one frame queued for the response stream.
type event struct {
	name    string
	payload interface{}
}

// streamEvents writes frames from ch to the response until the channel
// closes or the request context is cancelled. When the agent is quiet for
// KeepAliveInterval, a comment line is injected so intermediaries don't drop
// the connection; the decoder on the other side ignores it.
func (s *Server) streamEvents(ctx context.Context, w http.ResponseWriter, ch <-chan event) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, canFlush := w.(http.Flusher)
	flush := func() {
		if canFlush {
			flusher.Flush()
		}
	}

	ticker := time.NewTicker(s.cfg.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("client went away, stopping stream")
			return

		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := writeFrame(w, ev); err != nil {
				s.logger.Debug("stream write failed", "error", err)
				return
			}
			eventsEmitted.WithLabelValues(ev.name).Inc()
			flush()
			ticker.Reset(s.cfg.KeepAliveInterval)

		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flush()
		}
	}
}

func writeFrame(w http.ResponseWriter, ev event) error {
	data, err := json.Marshal(ev.payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, data)
	return err
}

// emit sends the scripted events down the channel with optional pacing,
// bailing out when the client disconnects.
func (s *Server) emit(ctx context.Context, ch chan<- event, evs []event) {
	defer close(ch)
	for _, ev := range evs {
		if s.cfg.TokenDelay > 0 && ev.name == "token" {
			select {
			case <-time.After(s.cfg.TokenDelay):
			case <-ctx.Done():
				return
			}
		}
		select {
		case ch <- ev:
		case <-ctx.Done():
			return
		}
	}
}
