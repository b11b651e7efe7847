package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const wsWriteTimeout = 10 * time.Second

// WebSocket handles GET /v1/ws: upgrades the connection, subscribes to the
// billing bus, and pushes every event to the client. The server answers
// client pings with pongs via gorilla's default ping handler wiring; it
// never originates application-level pings of its own.
func (h *Handlers) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.app.Logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sub := h.app.Bus.Subscribe()
	defer h.app.Bus.Unsubscribe(sub.ID())

	// Drain and discard client reads (pings/close) on a dedicated goroutine;
	// gorilla answers pings with pongs automatically via SetPingHandler's
	// default behavior unless overridden, which we leave as-is.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case evt, ok := <-sub.Events():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(evt); err != nil {
				h.app.Logger.Debug("websocket send failed, dropping subscriber", zap.Error(err))
				return
			}
		}
	}
}
