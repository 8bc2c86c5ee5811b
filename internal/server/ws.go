package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tjamescouch/personas/internal/logging"
	"github.com/tjamescouch/personas/internal/signal"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// handleStreamWS ingests producer events over a WebSocket. Each text frame
// is one event or a batch; malformed frames get an error frame back and are
// dropped without closing the connection, valid frames publish in order.
func (s *Server) handleStreamWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warnw("ws upgrade failed", "err", err, "remote", r.RemoteAddr)
		return
	}
	connID := uuid.NewString()
	logging.Infow("ws producer connected", "conn_id", connID, "remote", r.RemoteAddr)
	defer func() {
		conn.Close()
		logging.Infow("ws producer disconnected", "conn_id", connID)
	}()

	conn.SetReadLimit(s.cfg.MaxBodyBytes)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	// Pings ride a side goroutine; WriteControl is safe alongside the read
	// loop's error frames.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Debugw("ws read error", "conn_id", connID, "err", err)
			}
			return
		}

		events, err := signal.ParseBatch(data)
		if err == nil {
			err = s.validateEvents(events)
		}
		if err != nil {
			logging.Debugw("ws frame rejected", "conn_id", connID, "err", err)
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if werr := conn.WriteJSON(errorResponse{Error: err.Error(), CorrelationID: connID}); werr != nil {
				return
			}
			continue
		}
		for _, ev := range events {
			s.hub.Publish(ev)
		}
	}
}
