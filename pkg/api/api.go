// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package api serves the mirrored panel state over HTTP. Documents are JSON
// by default and CBOR with ?format=cbor; /ws pushes snapshots to WebSocket
// clients.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/Thermoquad/kyobridge/pkg/store"
	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// EventLog is the journal as seen by the API.
type EventLog interface {
	Recent(limit int) ([]store.Event, error)
}

// Status is the document served at /status.
type Status struct {
	Meta  store.Meta  `json:"meta" cbor:"meta"`
	State store.State `json:"state" cbor:"state"`
}

// Server exposes a store over HTTP.
type Server struct {
	store        *store.Store
	stats        func() interface{}
	events       EventLog
	pushInterval time.Duration
	upgrader     websocket.Upgrader
	log          *log.Entry
}

// New creates a server. stats and events may be nil.
func New(st *store.Store, stats func() interface{}, events EventLog, pushInterval time.Duration) *Server {
	if pushInterval <= 0 {
		pushInterval = time.Second
	}
	return &Server{
		store:        st,
		stats:        stats,
		events:       events,
		pushInterval: pushInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		log: log.WithField("component", "api"),
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /status/zones", s.handleZones)
	mux.HandleFunc("GET /status/partitions", s.handlePartitions)
	mux.HandleFunc("GET /logger", s.handleLogger)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	return mux
}

func (s *Server) status() Status {
	return Status{Meta: s.store.Meta(), State: s.store.Snapshot()}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.write(w, r, s.status())
}

func (s *Server) handleZones(w http.ResponseWriter, r *http.Request) {
	st := s.store.Snapshot()
	s.write(w, r, st.Zones)
}

func (s *Server) handlePartitions(w http.ResponseWriter, r *http.Request) {
	st := s.store.Snapshot()
	s.write(w, r, st.Partitions)
}

func (s *Server) handleLogger(w http.ResponseWriter, r *http.Request) {
	logger := s.store.Logger()
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(logger)))
	w.Write(logger[:])
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		http.Error(w, "statistics not available", http.StatusNotFound)
		return
	}
	s.write(w, r, s.stats())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		http.Error(w, "journal not enabled", http.StatusNotFound)
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	events, err := s.events.Recent(limit)
	if err != nil {
		s.log.WithError(err).Error("journal query failed")
		http.Error(w, "journal query failed", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []store.Event{}
	}
	s.write(w, r, events)
}

// write renders v in the format the request asks for.
func (s *Server) write(w http.ResponseWriter, r *http.Request, v interface{}) {
	var (
		body []byte
		err  error
	)
	if r.URL.Query().Get("format") == "cbor" {
		body, err = cbor.Marshal(v)
		w.Header().Set("Content-Type", "application/cbor")
	} else {
		body, err = json.Marshal(v)
		w.Header().Set("Content-Type", "application/json")
	}
	if err != nil {
		s.log.WithError(err).Error("encoding failed")
		http.Error(w, "encoding failed", http.StatusInternalServerError)
		return
	}
	w.Write(body)
}
