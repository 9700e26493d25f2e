// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/Thermoquad/kyobridge/pkg/kyo"
	"github.com/Thermoquad/kyobridge/pkg/panel"
	"github.com/Thermoquad/kyobridge/pkg/poller"
	"github.com/Thermoquad/kyobridge/pkg/transport"
)

// ============================================================
// Test Helpers
// ============================================================

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

// newSimulated stacks a bridge on a mock transport answered by a simulated panel
func newSimulated(t *testing.T, opts Options) (*Bridge, *panel.Panel, *transport.Mock) {
	t.Helper()
	p := panel.New()
	mock := transport.NewMock()
	mock.Responder = p.HandleFrame

	b := New(mock, opts)
	if err := b.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(b.Stop)
	return b, p, mock
}

func tick(t *testing.T, b *Bridge, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := b.Poller.Advance(); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}
}

// ============================================================
// Integration Tests
// ============================================================

func TestBridge_FullCycleFillsStore(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	b, p, _ := newSimulated(t, Options{Poller: poller.Options{ResponseTimeout: time.Second, Logger: true, Now: clock.now}})
	p.SetZoneName(0, "Front door")
	p.SetPartitionName(7, "Garage")
	p.SetZoneAlarm(0, true)
	p.SetArmMode(0, kyo.ArmTotal)
	p.WriteLogger(kyo.LoggerSize-1, []byte{0x99})

	steps := len(poller.Cycle(false, true))
	tick(t, b, 1+steps)

	st := b.Store.Snapshot()
	if st.Model != "KYO32" || st.Firmware() != "2.12" {
		t.Errorf("expected KYO32 2.12, got %s %s", st.Model, st.Firmware())
	}
	if st.Zones[0].Name != "Front door" || st.Zones[31].Name != "Zone 32" {
		t.Errorf("unexpected zone names %q %q", st.Zones[0].Name, st.Zones[31].Name)
	}
	if st.Partitions[7].Name != "Garage" {
		t.Errorf("unexpected partition name %q", st.Partitions[7].Name)
	}
	if !st.Zones[0].Alarm || !st.Zones[0].AlarmMemory {
		t.Errorf("zone 1 alarm not mirrored: %+v", st.Zones[0])
	}
	if st.Partitions[0].Mode != kyo.ArmTotal || !st.Partitions[0].Armed {
		t.Errorf("partition 1 not armed: %+v", st.Partitions[0])
	}
	if st.Logger[kyo.LoggerSize-1] != 0x99 {
		t.Errorf("last logger page not mirrored")
	}

	s := b.Stats()
	if s.Poller.Cycles != 1 || s.Poller.Completed != uint64(steps) {
		t.Errorf("expected one complete cycle, got %+v", s.Poller)
	}
	// The last tick already started the next cycle with a model request
	if s.Protocol.ValidFrames != uint64(steps)+1 || s.Protocol.Errors() != 0 {
		t.Errorf("unexpected protocol stats %+v", s.Protocol)
	}
}

func TestBridge_WideNames(t *testing.T) {
	b, p, mock := newSimulated(t, Options{Poller: poller.Options{WideNames: true}})
	p.SetZoneName(20, "Attic")

	tick(t, b, 1+len(poller.Cycle(true, false)))

	if name := b.Store.Snapshot().Zones[20].Name; name != "Attic" {
		t.Errorf("expected Attic, got %q", name)
	}
	if len(mock.TxLog()) != 6 {
		t.Errorf("expected 6 requests, got %d", len(mock.TxLog()))
	}
}

func TestBridge_CorruptArmedLeavesStoreUnchanged(t *testing.T) {
	b, p, _ := newSimulated(t, Options{})
	tick(t, b, 1+len(poller.Cycle(false, false)))
	before := b.Store.Snapshot()

	p.SetArmMode(3, kyo.ArmPartial)
	p.SetSiren(true)
	p.Corrupt(kyo.CmdArmed, true)
	tick(t, b, len(poller.Cycle(false, false)))

	after := b.Store.Snapshot()
	if after.Partitions[3] != before.Partitions[3] || after.Siren != before.Siren {
		t.Errorf("corrupt armed response changed the store")
	}
	if s := b.Protocol.Stats(); s.PayloadChecksumErrors != 1 {
		t.Errorf("expected 1 payload checksum error, got %d", s.PayloadChecksumErrors)
	}
}

func TestBridge_SilentCommandIsSkipped(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	b, p, mock := newSimulated(t, Options{Poller: poller.Options{ResponseTimeout: time.Second, Retries: 1, Now: clock.now}})
	p.Mute(kyo.CmdPeripherals, true)

	tick(t, b, 3) // start, model, peripherals
	clock.t = clock.t.Add(time.Second)
	tick(t, b, 1) // retry peripherals
	clock.t = clock.t.Add(time.Second)
	tick(t, b, 1) // skip, first zone names block

	log := mock.TxLog()
	if len(log) != 4 {
		t.Fatalf("expected 4 requests, got %d", len(log))
	}
	if got := kyo.CommandFromBytes(log[3][1:5]); got != kyo.ZoneNamesCommand(0) {
		t.Errorf("expected zone names after skip, got %s", got)
	}
	if s := b.Poller.Stats(); s.Skipped != 1 || s.Timeouts != 2 {
		t.Errorf("unexpected poller stats %+v", s)
	}
}

func TestBridge_EndToEndOverStream(t *testing.T) {
	p := panel.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opener := transport.OpenerFunc(func() (transport.Conn, error) {
		host, panelEnd := net.Pipe()
		go p.Serve(ctx, panelEnd)
		return host, nil
	})

	b := New(transport.New(opener, transport.DefaultConfig()), Options{
		PollInterval: 2 * time.Millisecond,
		Poller:       poller.Options{ResponseTimeout: 500 * time.Millisecond},
	})
	if err := b.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer b.Stop()
	go b.Run(ctx)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		st := b.Store.Snapshot()
		if st.Model == "KYO32" && st.Partitions[1].Name == "Area 2" {
			s := b.Stats()
			if s.Transport == nil || s.Transport.BytesOut == 0 {
				t.Errorf("expected transport stats, got %+v", s.Transport)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("store not filled in time: %+v", b.Stats())
}

func TestBridge_SplitDeliveryMatchesWholeFrame(t *testing.T) {
	msgs := []kyo.Message{
		&kyo.Model{Name: "KYO32", FwMajor: 2, FwMinor: 12},
		&kyo.ZoneNames{Block: 1, Names: [kyo.NamesPerBlock]string{"Hall", "Kitchen"}},
		&kyo.StatusAndFaults{ZoneAlarm: [kyo.ZoneCount]bool{4: true}, Faults: kyo.Faults{Fuse: true}},
		&kyo.ArmedPartitions{ArmedPartial: [kyo.PartitionCount]bool{2: true}, Siren: true},
	}

	for _, msg := range msgs {
		frame, err := kyo.Marshal(msg)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}

		whole := New(transport.NewMock(), Options{})
		whole.Start()
		whole.Link.(*transport.Mock).Inject(frame)
		expected := whole.Store.Snapshot()

		for split := 1; split < len(frame); split++ {
			b := New(transport.NewMock(), Options{})
			b.Start()
			mock := b.Link.(*transport.Mock)
			mock.Inject(frame[:split])
			mock.Inject(frame[split:])

			if got := b.Store.Snapshot(); got != expected {
				t.Errorf("%s split %d: store differs from whole-frame delivery", msg.Command(), split)
			}
			b.Stop()
		}
		whole.Stop()
	}
}
