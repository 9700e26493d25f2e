// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package store holds the bridge's mirror of panel state. Decoded messages
// are merged in by a single writer; any number of readers take snapshots.
package store

import (
	"sync"
	"time"

	"github.com/Thermoquad/kyobridge/pkg/kyo"
	log "github.com/sirupsen/logrus"
)

// Meta describes the freshness of the mirrored state.
type Meta struct {
	Version uint64               `json:"version" cbor:"version"`
	Updated map[string]time.Time `json:"updated" cbor:"updated"` // by response kind
}

// Store is the lock-protected panel mirror.
type Store struct {
	mu      sync.RWMutex
	state   State
	version uint64
	updated map[kyo.Kind]time.Time
	now     func() time.Time

	sweep     [kyo.LoggerSize]byte // logger as of the last completed sweep
	sweepDone bool

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
	dropped uint64
}

// New creates an empty store.
func New() *Store {
	return &Store{
		updated: make(map[kyo.Kind]time.Time),
		subs:    make(map[int]chan Event),
		now:     time.Now,
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Logger returns a copy of the event logger buffer.
func (s *Store) Logger() [kyo.LoggerSize]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Logger
}

// LoggerSweep returns the logger buffer as of the last completed sweep.
// ok is false until a last page has been applied.
func (s *Store) LoggerSweep() (logger [kyo.LoggerSize]byte, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sweep, s.sweepDone
}

// Meta returns the version counter and per-kind update times.
func (s *Store) Meta() Meta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := Meta{Version: s.version, Updated: make(map[string]time.Time, len(s.updated))}
	for k, t := range s.updated {
		m.Updated[k.String()] = t
	}
	return m
}

// Apply merges msg into the state. Only the fields owned by msg's kind
// change. Requests are ignored.
func (s *Store) Apply(msg kyo.Message) {
	e, ok := kyo.Lookup(msg.Command())
	if !ok {
		return
	}
	if _, isReq := msg.(*kyo.Request); isReq {
		return
	}

	now := s.now()

	s.mu.Lock()
	before := s.state
	merge(&s.state, msg)
	after := s.state
	s.version++
	s.updated[e.Kind] = now
	sweep := s.completeSweep(msg)
	s.mu.Unlock()

	events := diff(&before, &after, msg, now)
	if sweep != nil {
		events = append(events, Event{Time: now, Type: EventLoggerSweep, Index: kyo.LoggerPages, Value: "complete", Logger: sweep})
	}
	if len(events) > 0 {
		s.publish(events)
	}
}

// Deliver lets the store terminate a layer stack directly.
func (s *Store) Deliver(msg kyo.Message) error {
	s.Apply(msg)
	return nil
}

// completeSweep records the logger when the last page lands and returns a
// copy if it differs from the previous sweep. Callers hold mu.
func (s *Store) completeSweep(msg kyo.Message) *[kyo.LoggerSize]byte {
	page, ok := msg.(*kyo.LoggerPage)
	if !ok || page.Page != kyo.LoggerPages-1 {
		return nil
	}
	if s.sweepDone && s.sweep == s.state.Logger {
		return nil
	}
	s.sweep = s.state.Logger
	s.sweepDone = true
	snap := s.sweep
	return &snap
}

func merge(st *State, msg kyo.Message) {
	switch m := msg.(type) {
	case *kyo.Model:
		st.Model = m.Name
		st.FwMajor = m.FwMajor
		st.FwMinor = m.FwMinor

	case *kyo.Peripherals:
		st.Readers = m.Readers
		st.Keyboards = m.Keyboards

	case *kyo.ZoneNames:
		first := m.Block * kyo.NamesPerBlock
		for i, name := range m.Names {
			st.Zones[first+i].Name = name
		}

	case *kyo.PartitionNames:
		first := m.Block * kyo.NamesPerBlock
		for i, name := range m.Names {
			st.Partitions[first+i].Name = name
		}

	case *kyo.WideZoneNames:
		for i, name := range m.Names {
			st.Zones[i].Name = name
		}

	case *kyo.WidePartitionNames:
		for i, name := range m.Names {
			st.Partitions[i].Name = name
		}

	case *kyo.StatusAndFaults:
		for i := range st.Zones {
			st.Zones[i].Alarm = m.ZoneAlarm[i]
			st.Zones[i].Sabotage = m.ZoneSabotage[i]
		}
		for i := range st.Partitions {
			st.Partitions[i].Alarm = m.PartitionAlarm[i]
		}
		st.Faults = m.Faults
		st.Sabotage = m.Sabotage

	case *kyo.ArmedPartitions:
		for i := range st.Partitions {
			st.Partitions[i].Armed = m.Armed(i)
			st.Partitions[i].Mode = m.Mode(i)
		}
		for i := range st.Zones {
			st.Zones[i].Included = m.ZoneInclusion[i]
			st.Zones[i].AlarmMemory = m.ZoneAlarmMemory[i]
			st.Zones[i].SabotageMemory = m.ZoneSabotageMemory[i]
		}
		st.Siren = m.Siren
		st.Outputs = m.Outputs

	case *kyo.LoggerPage:
		copy(st.Logger[m.Page*kyo.LoggerPageSize:], m.Data[:])

	default:
		log.WithField("type", msg.Command().String()).Debug("store: nothing to merge")
	}
}
