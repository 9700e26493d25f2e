// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package panel

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/Thermoquad/kyobridge/pkg/kyo"
	"github.com/pkg/errors"
)

func decode(t *testing.T, frame []byte) kyo.Message {
	t.Helper()
	msg, n, err := kyo.Decode(frame)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if n != len(frame) {
		t.Fatalf("expected %d bytes consumed, got %d", len(frame), n)
	}
	return msg
}

func TestRespond_Model(t *testing.T) {
	p := New()
	frame, err := p.Respond(kyo.CmdModel)
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	m := decode(t, frame).(*kyo.Model)
	if m.Name != "KYO32" || m.FwMajor != 2 || m.FwMinor != 12 {
		t.Errorf("unexpected model %+v", m)
	}
}

func TestRespond_NameBlocks(t *testing.T) {
	p := New()
	p.SetZoneName(9, "Hallway")

	z := decode(t, mustRespond(t, p, kyo.ZoneNamesCommand(2))).(*kyo.ZoneNames)
	if z.Names[1] != "Hallway" || z.Names[0] != "Zone 9" {
		t.Errorf("unexpected block %q", z.Names)
	}

	w := decode(t, mustRespond(t, p, kyo.CmdWidePartitionNames)).(*kyo.WidePartitionNames)
	if w.Names[7] != "Area 8" {
		t.Errorf("unexpected partition names %q", w.Names)
	}
}

func TestRespond_ScriptedState(t *testing.T) {
	p := New()
	p.SetZoneAlarm(4, true)
	p.SetArmMode(1, kyo.ArmPartial)
	p.SetSiren(true)

	s := decode(t, mustRespond(t, p, kyo.CmdStatus)).(*kyo.StatusAndFaults)
	if !s.ZoneAlarm[4] {
		t.Errorf("zone 5 alarm missing")
	}
	a := decode(t, mustRespond(t, p, kyo.CmdArmed)).(*kyo.ArmedPartitions)
	if a.Mode(1) != kyo.ArmPartial || a.Mode(0) != kyo.ArmDisarmed || !a.Siren || !a.ZoneAlarmMemory[4] {
		t.Errorf("unexpected armed response %+v", a)
	}
}

func TestRespond_MuteAndCorrupt(t *testing.T) {
	p := New()
	p.Mute(kyo.CmdStatus, true)
	if frame, _ := p.Respond(kyo.CmdStatus); frame != nil {
		t.Errorf("muted command answered")
	}

	p.Corrupt(kyo.CmdArmed, true)
	frame := mustRespond(t, p, kyo.CmdArmed)
	if _, _, err := kyo.Decode(frame); errors.Cause(err) != kyo.ErrPayloadChecksum {
		t.Errorf("expected payload checksum error, got %v", err)
	}
}

func TestHandleFrame(t *testing.T) {
	p := New()
	resp := p.HandleFrame(kyo.MustEncodeRequest(kyo.CmdModel))
	if _, ok := decode(t, resp).(*kyo.Model); !ok {
		t.Errorf("expected model response")
	}
	if resp := p.HandleFrame([]byte{0x00, 0x01}); resp != nil {
		t.Errorf("garbage answered with % X", resp)
	}
}

func TestServe_AnswersOverStream(t *testing.T) {
	p := New()
	host, panelEnd := net.Pipe()
	defer host.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Serve(ctx, panelEnd)

	// Noise, then a request split in two writes
	req := kyo.MustEncodeRequest(kyo.CmdStatus)
	go func() {
		host.Write([]byte{0x13, 0x37})
		host.Write(req[:3])
		host.Write(req[3:])
	}()

	host.SetReadDeadline(time.Now().Add(2 * time.Second))
	resp := make([]byte, 18)
	if _, err := io.ReadFull(host, resp); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	expected := mustRespond(t, p, kyo.CmdStatus)
	if !bytes.Equal(resp, expected) {
		t.Errorf("expected %s, got %s", kyo.FormatFrame(expected), kyo.FormatFrame(resp))
	}
	panelEnd.Close()
}

func mustRespond(t *testing.T, p *Panel, cmd kyo.Command) []byte {
	t.Helper()
	frame, err := p.Respond(cmd)
	if err != nil {
		t.Fatalf("Respond(%s) failed: %v", cmd, err)
	}
	return frame
}
