// Command wswatch prints webhook delivery events from a running server.
package main

import (
	"encoding/json"
	"flag"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	addr := flag.String("addr", "localhost:8080", "server host:port")
	session := flag.String("session", "", "session id (empty streams every session, admin only)")
	token := flag.String("token", os.Getenv("WAHOOK_TOKEN"), "bearer token; dev mode accepts owner:role")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/v1/webhooks/stream"}
	if *session != "" {
		u.RawQuery = url.Values{"sessionId": {*session}}.Encode()
	}
	hdr := http.Header{}
	if *token != "" {
		hdr.Set("Authorization", "Bearer "+*token)
	}
	c, resp, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		if resp != nil {
			log.Fatal().Err(err).Int("status", resp.StatusCode).Msg("dial")
		}
		log.Fatal().Err(err).Msg("dial")
	}
	defer func() { _ = c.Close() }()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Info().Err(err).Msg("stream closed")
				return
			}
			switch m.Type {
			case "next":
				os.Stdout.Write(append(m.Payload, '\n'))
			case "connection_ack":
				log.Info().RawJSON("payload", m.Payload).Msg("subscribed")
			case "complete":
				return
			}
		}
	}()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()
	for {
		select {
		case <-done:
			return
		case <-ping.C:
			if err := c.WriteJSON(wsMessage{Type: "ping"}); err != nil {
				return
			}
		case <-interrupt:
			_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		}
	}
}
