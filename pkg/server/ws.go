// Copyright 2025 Certen Protocol
//
// WebSocket fan-out of the event bus. Grounded on gorilla/websocket,
// already an indirect dependency of the teacher's module graph; the
// upgrade/write-pump shape follows the package's own documented usage
// pattern (one goroutine per connection draining a channel into writes).

package server

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

const writeTimeout = 5 * time.Second

// handleWebSocket upgrades the connection and streams every bus event to
// the client until it disconnects or falls behind.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ch, unsubscribe := s.Bus.Subscribe()
	defer unsubscribe()

	// Drain and discard anything the client sends; this also detects
	// client-initiated close so the write loop below can exit promptly.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				unsubscribe()
				return
			}
		}
	}()

	for msg := range ch {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			return
		}
	}
}
