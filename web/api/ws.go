package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsReadTimeout  = 90 * time.Second // Allow missing 2 pings before disconnect
	wsPingInterval = 30 * time.Second
)

// WSCommand is an inbound dashboard command
type WSCommand struct {
	Type  string `json:"type"`
	Index int    `json:"index,omitempty"`
}

func (s *Server) wsHandler() http.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("websocket upgrade failed: %v", err)
			return
		}
		go s.handleDashboardConn(conn)
	}
}

func (s *Server) handleDashboardConn(conn *websocket.Conn) {
	client := s.sseHub.Subscribe()

	done := make(chan struct{})
	defer func() {
		close(done)
		s.sseHub.Unsubscribe(client)
		conn.Close()
	}()

	var writeMu sync.Mutex
	write := func(messageType int, data []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		err := conn.WriteMessage(messageType, data)
		conn.SetWriteDeadline(time.Time{})
		return err
	}

	// Initial state so the dashboard renders before the first change
	if data, err := json.Marshal(SSEEvent{Type: "state", Data: stateToResponse(s.ctrl.Snapshot())}); err == nil {
		if err := write(websocket.TextMessage, data); err != nil {
			return
		}
	}

	// Writer: forward hub events and keep the connection alive with pings
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case event, ok := <-client:
				if !ok {
					conn.Close()
					return
				}
				data, err := json.Marshal(event)
				if err != nil {
					continue
				}
				if err := write(websocket.TextMessage, data); err != nil {
					conn.Close()
					return
				}
			case <-ticker.C:
				if err := write(websocket.PingMessage, nil); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("websocket read error: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		var cmd WSCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			log.Printf("invalid websocket command: %v", err)
			continue
		}

		switch cmd.Type {
		case "run":
			s.ctrl.StartRun(context.Background())
		case "retry":
			go func(index int) {
				if err := s.ctrl.RetryNotification(context.Background(), index); err != nil {
					log.Printf("notification retry failed: %v", err)
				}
			}(cmd.Index)
		default:
			log.Printf("unknown websocket command %q", cmd.Type)
		}
	}
}
