// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// handleWebSocket pushes a status document on connect, on every state
// change and at least every push interval. Binary CBOR frames are the
// default; ?format=json sends text frames.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	asJSON := r.URL.Query().Get("format") == "json"

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Debug("websocket upgrade failed")
		return
	}
	defer conn.Close()

	events, cancel := s.store.Subscribe(32)
	defer cancel()

	// The reader only notices the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.pushInterval)
	defer ticker.Stop()

	log := s.log.WithField("remote", r.RemoteAddr)
	log.Info("websocket client connected")
	defer log.Info("websocket client disconnected")

	for {
		if err := s.push(conn, asJSON); err != nil {
			log.WithError(err).Debug("push failed")
			return
		}

		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		case _, ok := <-events:
			if !ok {
				return
			}
			// Coalesce a burst of transitions into one push
			for len(events) > 0 {
				<-events
			}
		}
	}
}

func (s *Server) push(conn *websocket.Conn, asJSON bool) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	status := s.status()

	if asJSON {
		body, err := json.Marshal(status)
		if err != nil {
			return err
		}
		return conn.WriteMessage(websocket.TextMessage, body)
	}

	body, err := cbor.Marshal(status)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.BinaryMessage, body)
}
