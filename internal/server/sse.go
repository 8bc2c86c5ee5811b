package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tjamescouch/personas/internal/logging"
	"github.com/tjamescouch/personas/internal/signal"
)

// sseWriter frames events for one stream connection. A single goroutine
// owns the connection, so no locking.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}
	return &sseWriter{w: w, flusher: f}, nil
}

func (sw *sseWriter) send(event string, data interface{}) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(sw.w, "event: %s\n", event); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(sw.w, "data: %s\n\n", string(b)); err != nil {
		return err
	}
	sw.flusher.Flush()
	return nil
}

// comment writes an SSE comment line. Clients ignore it; proxies see bytes.
func (sw *sseWriter) comment(text string) error {
	if _, err := fmt.Fprintf(sw.w, ": %s\n\n", text); err != nil {
		return err
	}
	sw.flusher.Flush()
	return nil
}

// handleStream serves one SSE subscriber: history replay oldest first, then
// live events until the client goes away, a write fails, or the hub drops
// the subscription. Each connection costs the hub one buffered channel and
// nothing more.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sw, err := newSSEWriter(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		name = r.RemoteAddr
	}
	sub, replay := s.hub.Subscribe(name)
	defer s.hub.Unsubscribe(sub)

	for i := range replay {
		if err := sw.send(signal.KindSignal, &replay[i]); err != nil {
			logging.Debugw("sse replay write failed", logging.SubscriberFields(sub.ID(), name)...)
			return
		}
	}

	heartbeat := time.NewTicker(s.cfg.Heartbeat)
	defer heartbeat.Stop()
	lastWrite := time.Now()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				// Hub dropped us for falling behind.
				return
			}
			if err := sw.send(ev.EventKind(), ev.Payload()); err != nil {
				logging.Debugw("sse write failed", logging.SubscriberFields(sub.ID(), name)...)
				return
			}
			lastWrite = time.Now()
		case now := <-heartbeat.C:
			if now.Sub(lastWrite) < s.cfg.Heartbeat {
				continue
			}
			if err := sw.comment("keepalive"); err != nil {
				return
			}
			lastWrite = now
		}
	}
}
