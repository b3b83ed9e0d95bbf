package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"wahook/internal/events"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

const (
	wsPongWait     = 60 * time.Second
	wsPingInterval = 20 * time.Second
)

// wsMessage frames everything sent on the stream. Delivery events travel as
// "next" with the event as payload.
type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// StreamHandler handles GET /v1/webhooks/stream?sessionId=. Without a
// session id (admin only) it streams every session.
func (s *Server) StreamHandler(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("sessionId")
	if topic == "" {
		if err := requireAdmin(r); err != nil {
			s.writeError(w, r, err)
			return
		}
		topic = events.TopicAll
	} else if _, err := s.sessionByID(r, topic); err != nil {
		s.writeError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	ch := s.Broker.Subscribe(topic)
	defer s.Broker.Unsubscribe(topic, ch)

	var mu sync.Mutex
	write := func(m wsMessage) error {
		mu.Lock()
		defer mu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(m)
	}

	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(wsPongWait)) })

	// Reader: answers client pings and notices disconnects.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			var msg wsMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
			if msg.Type == "ping" {
				_ = write(wsMessage{Type: "pong", ID: msg.ID})
			}
		}
	}()

	ack, _ := json.Marshal(map[string]string{"topic": topic})
	if err := write(wsMessage{Type: "connection_ack", Payload: ack}); err != nil {
		return
	}
	s.Log.Debug().Str("topic", topic).Msg("stream subscriber connected")

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				_ = write(wsMessage{Type: "complete"})
				return
			}
			payload, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			if err := write(wsMessage{Type: "next", ID: evt.JobID, Payload: payload}); err != nil {
				return
			}
		case <-ticker.C:
			mu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
			mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
