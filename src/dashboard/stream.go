package dashboard

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	streamBuffer = 16
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
)

// handleStream upgrades to a websocket, sends the state of every widget and
// then one JSON message per widget tick until the client goes away
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("stream upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, unsubscribe := s.tracker.Subscribe(streamBuffer)
	defer unsubscribe()

	s.log.Infof("stream client connected: %v", conn.RemoteAddr())
	defer s.log.Infof("stream client disconnected: %v", conn.RemoteAddr())

	for _, state := range s.tracker.Snapshot() {
		if err := writeState(conn, state); err != nil {
			return
		}
	}

	// The client never sends anything we use, reading only detects close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case state := <-updates:
			if err := writeState(conn, state); err != nil {
				return
			}
		case <-ping.C:
			deadline := time.Now().Add(writeTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func writeState(conn *websocket.Conn, state WidgetState) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(state)
}
