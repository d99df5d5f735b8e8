package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsConn serializes writes; gorilla connections support one concurrent
// writer.
type wsConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
}

func (s *Server) handleChatWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	// Verify the session exists.
	if _, err := s.chats.History(sessionID); err != nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade websocket", "error", err)
		return
	}
	defer ws.Close()
	conn := &wsConn{ws: ws}

	done := make(chan struct{})
	var updates <-chan string
	if s.log != nil {
		sub := s.log.Subscribe()
		defer s.log.Unsubscribe(sub)
		updates = sub
	}

	var wg sync.WaitGroup
	wg.Add(1)

	// Writer goroutine: pushes recorded orders to the client.
	go func() {
		defer wg.Done()

		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case orderID, ok := <-updates:
				if !ok {
					updates = nil
					continue
				}
				rec, err := s.log.GetOrder(context.Background(), orderID)
				if err != nil {
					slog.Warn("Failed to load recorded order", "orderID", orderID, "error", err)
					continue
				}
				if err := conn.writeJSON(map[string]any{"order": rec}); err != nil {
					slog.Debug("Failed to push order update", "error", err)
					return
				}
			case <-ticker.C:
				if err := conn.ping(); err != nil {
					return
				}
			}
		}
	}()

	// Reader loop: each frame is one chat message.
	for {
		var msg messageRequest
		if err := ws.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Error("WebSocket read error", "error", err)
			}
			break
		}
		if msg.Text == "" {
			continue
		}

		reply, err := s.chats.Chat(r.Context(), sessionID, msg.Text, msg.ambient())
		if err != nil {
			slog.Warn("Chat failed", "sessionID", sessionID, "error", err)
			if werr := conn.writeJSON(map[string]string{"error": err.Error()}); werr != nil {
				break
			}
			continue
		}
		if err := conn.writeJSON(reply); err != nil {
			slog.Error("WebSocket write error", "error", err)
			break
		}
	}

	close(done)
	wg.Wait()
}
