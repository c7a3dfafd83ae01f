package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"pingmonitor/internal/monitor"
)

const (
	streamWriteTimeout = 5 * time.Second
	streamTypeSnapshot = "snapshot"
)

var streamUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(strings.TrimSpace(r.Host))
		originHost := strings.ToLower(strings.TrimSpace(u.Host))
		return host == originHost
	},
}

// streamMessage is what the stream sends: the full state, plus the event
// type that caused it. Trigger is empty for the message sent on connect.
type streamMessage struct {
	Type     string           `json:"type"`
	Trigger  string           `json:"trigger,omitempty"`
	Snapshot monitor.Snapshot `json:"snapshot"`
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := streamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debugf("websocket upgrade: %v", err)
		return
	}
	s.serveStream(conn)
}

func (s *Server) serveStream(conn *websocket.Conn) {
	defer conn.Close()

	var events <-chan []byte
	if s.broker != nil {
		ch, cleanup := s.broker.Subscribe()
		defer cleanup()
		events = ch
	}

	if err := s.writeSnapshot(conn, ""); err != nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case data, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(streamWriteTimeout))
				return
			}
			if err := s.writeSnapshot(conn, eventType(data)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (s *Server) writeSnapshot(conn *websocket.Conn, trigger string) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return conn.WriteJSON(streamMessage{
		Type:     streamTypeSnapshot,
		Trigger:  trigger,
		Snapshot: s.monitor.Snapshot(),
	})
}

func eventType(data []byte) string {
	var evt struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &evt); err != nil {
		return ""
	}
	return evt.Type
}
