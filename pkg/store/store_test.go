// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package store

import (
	"sync"
	"testing"
	"time"

	"github.com/Thermoquad/kyobridge/pkg/kyo"
)

func fixedClock(s *Store) time.Time {
	t := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return t }
	return t
}

// ============================================================
// Merge Tests
// ============================================================

func TestApply_Model(t *testing.T) {
	s := New()
	s.Apply(&kyo.Model{Name: "KYO32", FwMajor: 2, FwMinor: 12})

	st := s.Snapshot()
	if st.Model != "KYO32" || st.Firmware() != "2.12" {
		t.Errorf("expected KYO32 2.12, got %s %s", st.Model, st.Firmware())
	}
	if m := s.Meta(); m.Version != 1 {
		t.Errorf("expected version 1, got %d", m.Version)
	}
}

func TestApply_NamesBlocksLandInPlace(t *testing.T) {
	s := New()
	s.Apply(&kyo.ZoneNames{Block: 2, Names: [kyo.NamesPerBlock]string{"a", "b", "c", "d"}})
	s.Apply(&kyo.PartitionNames{Block: 1, Names: [kyo.NamesPerBlock]string{"Shed"}})

	st := s.Snapshot()
	if st.Zones[8].Name != "a" || st.Zones[11].Name != "d" {
		t.Errorf("zone names misplaced: %q %q", st.Zones[8].Name, st.Zones[11].Name)
	}
	if st.Zones[7].Name != "" || st.Zones[12].Name != "" {
		t.Errorf("neighbouring zones touched")
	}
	if st.Partitions[4].Name != "Shed" {
		t.Errorf("expected partition 5 Shed, got %q", st.Partitions[4].Name)
	}
}

func TestApply_StatusIsIdempotent(t *testing.T) {
	status := &kyo.StatusAndFaults{
		ZoneAlarm:      [kyo.ZoneCount]bool{0: true, 30: true},
		ZoneSabotage:   [kyo.ZoneCount]bool{5: true},
		Faults:         kyo.Faults{BatteryLow: true},
		PartitionAlarm: [kyo.PartitionCount]bool{2: true},
		Sabotage:       kyo.SabotageFlags{Jam: true},
	}

	s := New()
	s.Apply(status)
	once := s.Snapshot()
	s.Apply(status)
	twice := s.Snapshot()

	if once != twice {
		t.Errorf("applying the same status twice changed the state")
	}
	if !twice.Zones[30].Alarm || !twice.Zones[5].Sabotage || !twice.Partitions[2].Alarm {
		t.Errorf("status fields not merged: %+v", twice.Zones[30])
	}
}

func TestApply_FieldOwnership(t *testing.T) {
	s := New()
	s.Apply(&kyo.ZoneNames{Block: 0, Names: [kyo.NamesPerBlock]string{"Door"}})
	s.Apply(&kyo.ArmedPartitions{
		ArmedPartial:  [kyo.PartitionCount]bool{0: true},
		ZoneInclusion: [kyo.ZoneCount]bool{0: true},
		Siren:         true,
	})
	s.Apply(&kyo.StatusAndFaults{ZoneAlarm: [kyo.ZoneCount]bool{0: true}})

	z := s.Snapshot().Zones[0]
	if z.Name != "Door" || !z.Included || !z.Alarm {
		t.Errorf("expected every owner's field kept, got %+v", z)
	}

	// A later status must not clear armed fields
	s.Apply(&kyo.StatusAndFaults{})
	st := s.Snapshot()
	if !st.Siren || !st.Partitions[0].Armed || st.Partitions[0].Mode != kyo.ArmPartial {
		t.Errorf("armed fields changed by status: %+v siren=%t", st.Partitions[0], st.Siren)
	}
	if st.Zones[0].Alarm {
		t.Errorf("zone alarm not cleared by status")
	}
}

func TestApply_LoggerPage(t *testing.T) {
	s := New()
	page := &kyo.LoggerPage{Page: 27}
	for i := range page.Data {
		page.Data[i] = 0xA5
	}
	s.Apply(page)

	logger := s.Logger()
	if logger[27*kyo.LoggerPageSize] != 0xA5 || logger[kyo.LoggerSize-1] != 0xA5 {
		t.Errorf("page 27 not copied to the end of the logger")
	}
	if logger[27*kyo.LoggerPageSize-1] != 0 {
		t.Errorf("page 26 overwritten")
	}
}

func TestApply_IgnoresRequests(t *testing.T) {
	s := New()
	s.Apply(&kyo.Request{Cmd: kyo.CmdModel})
	if m := s.Meta(); m.Version != 0 {
		t.Errorf("request changed version to %d", m.Version)
	}
}

// ============================================================
// Event Tests
// ============================================================

func TestEvents_Transitions(t *testing.T) {
	s := New()
	now := fixedClock(s)
	events, cancel := s.Subscribe(16)
	defer cancel()

	s.Apply(&kyo.PartitionNames{Block: 0, Names: [kyo.NamesPerBlock]string{"House"}})
	s.Apply(&kyo.ArmedPartitions{ArmedTotal: [kyo.PartitionCount]bool{0: true}})

	select {
	case ev := <-events:
		if ev.Type != EventPartitionArm || ev.Index != 1 || ev.Name != "House" || ev.Value != "total" {
			t.Errorf("unexpected event %+v", ev)
		}
		if !ev.Time.Equal(now) {
			t.Errorf("expected event time %v, got %v", now, ev.Time)
		}
	default:
		t.Fatal("expected an arm event")
	}

	// Same message again: no transition
	s.Apply(&kyo.ArmedPartitions{ArmedTotal: [kyo.PartitionCount]bool{0: true}})
	select {
	case ev := <-events:
		t.Errorf("unexpected event %+v", ev)
	default:
	}
}

func TestEvents_StatusFlags(t *testing.T) {
	s := New()
	events, cancel := s.Subscribe(16)
	defer cancel()

	s.Apply(&kyo.StatusAndFaults{
		ZoneAlarm: [kyo.ZoneCount]bool{3: true},
		Faults:    kyo.Faults{Power: true},
		Sabotage:  kyo.SabotageFlags{FakeKey: true},
	})

	var got []EventType
	for len(events) > 0 {
		got = append(got, (<-events).Type)
	}
	expected := []EventType{EventZoneAlarm, EventFault, EventSabotage}
	if len(got) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("event %d: expected %s, got %s", i, expected[i], got[i])
		}
	}
}

func TestEvents_LoggerSweep(t *testing.T) {
	s := New()
	fixedClock(s)
	events, cancel := s.Subscribe(64)
	defer cancel()

	sweep := func(mark byte) {
		for p := 0; p < kyo.LoggerPages; p++ {
			page := &kyo.LoggerPage{Page: p}
			page.Data[1] = mark
			s.Apply(page)
		}
	}
	drain := func() (pages, sweeps []Event) {
		for {
			select {
			case ev := <-events:
				switch ev.Type {
				case EventLogger:
					pages = append(pages, ev)
				case EventLoggerSweep:
					sweeps = append(sweeps, ev)
				}
			default:
				return
			}
		}
	}

	if _, ok := s.LoggerSweep(); ok {
		t.Fatalf("expected no sweep before the last page")
	}

	sweep(7)
	pages, sweeps := drain()
	if len(pages) != kyo.LoggerPages || pages[0].Index != 1 || pages[27].Index != 28 {
		t.Fatalf("expected 28 page events indexed 1..28, got %d", len(pages))
	}
	if len(sweeps) != 1 || sweeps[0].Logger == nil || sweeps[0].Logger[27*kyo.LoggerPageSize+1] != 7 {
		t.Fatalf("expected one sweep event carrying the buffer, got %d", len(sweeps))
	}
	first := sweeps[0].Logger

	sweep(7)
	if pages, sweeps = drain(); len(pages) != 0 || len(sweeps) != 0 {
		t.Errorf("unchanged sweep produced %d page and %d sweep events", len(pages), len(sweeps))
	}

	sweep(9)
	if _, sweeps = drain(); len(sweeps) != 1 {
		t.Fatalf("expected one sweep event, got %d", len(sweeps))
	}
	// The carried buffer is a copy
	if first[1] != 7 {
		t.Errorf("earlier sweep event changed to 0x%02X", first[1])
	}
	got, ok := s.LoggerSweep()
	if !ok || got[1] != 9 {
		t.Errorf("expected LoggerSweep to hold the latest sweep, got ok=%t 0x%02X", ok, got[1])
	}
}

func TestEvents_SlowSubscriberDrops(t *testing.T) {
	s := New()
	_, cancel := s.Subscribe(0)
	defer cancel()

	s.Apply(&kyo.ArmedPartitions{Siren: true})
	if s.Dropped() != 1 {
		t.Errorf("expected 1 dropped event, got %d", s.Dropped())
	}
}

func TestEvents_CancelClosesChannel(t *testing.T) {
	s := New()
	events, cancel := s.Subscribe(1)
	cancel()
	cancel()
	if _, ok := <-events; ok {
		t.Errorf("expected closed channel")
	}
}

// ============================================================
// Concurrency Tests
// ============================================================

func TestStore_ConcurrentReaders(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	stop := make(chan struct{})

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				st := s.Snapshot()
				// Every status applied below sets the whole alarm bitmap to one value
				for i := 1; i < kyo.ZoneCount; i++ {
					if st.Zones[i].Alarm != st.Zones[0].Alarm {
						t.Errorf("torn snapshot at zone %d", i+1)
						return
					}
				}
			}
		}()
	}

	for i := 0; i < 1000; i++ {
		var m kyo.StatusAndFaults
		for z := range m.ZoneAlarm {
			m.ZoneAlarm[z] = i%2 == 0
		}
		s.Apply(&m)
	}
	close(stop)
	wg.Wait()
}
