// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package store

import (
	"bytes"
	"time"

	"github.com/Thermoquad/kyobridge/pkg/kyo"
	log "github.com/sirupsen/logrus"
)

// EventType names a state transition.
type EventType string

const (
	EventModel          EventType = "model"
	EventZoneAlarm      EventType = "zone_alarm"
	EventZoneSabotage   EventType = "zone_sabotage"
	EventPartitionAlarm EventType = "partition_alarm"
	EventPartitionArm   EventType = "partition_arm"
	EventFault          EventType = "fault"
	EventSabotage       EventType = "sabotage"
	EventSiren          EventType = "siren"
	EventLogger         EventType = "logger"
	EventLoggerSweep    EventType = "logger_sweep"
)

// Event is one observed transition. Index is 1-based for zones,
// partitions and logger pages and zero otherwise.
//
// Logger is set only on EventLoggerSweep and holds the buffer as it was
// when the last page of the sweep arrived.
type Event struct {
	Time   time.Time             `json:"time" cbor:"time"`
	Type   EventType             `json:"type" cbor:"type"`
	Index  int                   `json:"index,omitempty" cbor:"index,omitempty"`
	Name   string                `json:"name,omitempty" cbor:"name,omitempty"`
	Value  string                `json:"value" cbor:"value"`
	Logger *[kyo.LoggerSize]byte `json:"-" cbor:"-"`
}

// Subscribe returns a channel receiving future events and a function that
// cancels the subscription. Events are dropped for a subscriber whose
// channel is full.
func (s *Store) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	cancel := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Dropped reports how many events were lost to slow subscribers.
func (s *Store) Dropped() uint64 {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return s.dropped
}

func (s *Store) publish(events []Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ev := range events {
		for _, ch := range s.subs {
			select {
			case ch <- ev:
			default:
				s.dropped++
			}
		}
		log.WithFields(log.Fields{"type": ev.Type, "index": ev.Index, "value": ev.Value}).Debug("state changed")
	}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

// diff lists the transitions msg caused between before and after.
func diff(before, after *State, msg kyo.Message, now time.Time) []Event {
	var events []Event
	add := func(t EventType, index int, name, value string) {
		events = append(events, Event{Time: now, Type: t, Index: index, Name: name, Value: value})
	}

	switch m := msg.(type) {
	case *kyo.Model:
		if before.Model != after.Model || before.FwMajor != after.FwMajor || before.FwMinor != after.FwMinor {
			add(EventModel, 0, after.Model, after.Firmware())
		}

	case *kyo.StatusAndFaults:
		for i := range after.Zones {
			b, a := before.Zones[i], after.Zones[i]
			if b.Alarm != a.Alarm {
				add(EventZoneAlarm, i+1, a.Name, onOff(a.Alarm))
			}
			if b.Sabotage != a.Sabotage {
				add(EventZoneSabotage, i+1, a.Name, onOff(a.Sabotage))
			}
		}
		for i := range after.Partitions {
			if b, a := before.Partitions[i], after.Partitions[i]; b.Alarm != a.Alarm {
				add(EventPartitionAlarm, i+1, a.Name, onOff(a.Alarm))
			}
		}
		faults := []struct {
			name string
			b, a bool
		}{
			{"power", before.Faults.Power, after.Faults.Power},
			{"bpi", before.Faults.BPI, after.Faults.BPI},
			{"fuse", before.Faults.Fuse, after.Faults.Fuse},
			{"battery_low", before.Faults.BatteryLow, after.Faults.BatteryLow},
			{"telephone_line", before.Faults.TelephoneLine, after.Faults.TelephoneLine},
			{"default_codes", before.Faults.DefaultCodes, after.Faults.DefaultCodes},
			{"wireless", before.Faults.Wireless, after.Faults.Wireless},
		}
		for _, f := range faults {
			if f.b != f.a {
				add(EventFault, 0, f.name, onOff(f.a))
			}
		}
		sabotage := []struct {
			name string
			b, a bool
		}{
			{"partition", before.Sabotage.Partition, after.Sabotage.Partition},
			{"fake_key", before.Sabotage.FakeKey, after.Sabotage.FakeKey},
			{"bpi", before.Sabotage.BPI, after.Sabotage.BPI},
			{"system", before.Sabotage.System, after.Sabotage.System},
			{"jam", before.Sabotage.Jam, after.Sabotage.Jam},
			{"wireless", before.Sabotage.Wireless, after.Sabotage.Wireless},
		}
		for _, f := range sabotage {
			if f.b != f.a {
				add(EventSabotage, 0, f.name, onOff(f.a))
			}
		}

	case *kyo.ArmedPartitions:
		for i := range after.Partitions {
			if b, a := before.Partitions[i], after.Partitions[i]; b.Mode != a.Mode {
				add(EventPartitionArm, i+1, a.Name, a.Mode.String())
			}
		}
		if before.Siren != after.Siren {
			add(EventSiren, 0, "", onOff(after.Siren))
		}

	case *kyo.LoggerPage:
		lo, hi := m.Page*kyo.LoggerPageSize, (m.Page+1)*kyo.LoggerPageSize
		if !bytes.Equal(before.Logger[lo:hi], after.Logger[lo:hi]) {
			add(EventLogger, m.Page+1, "", "updated")
		}
	}

	return events
}
