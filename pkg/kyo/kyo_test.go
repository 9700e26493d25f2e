// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package kyo

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

// ============================================================
// Test Helpers
// ============================================================

// modelFrame is the model response of a KYO32 running firmware 2.12
var modelFrame = []byte{
	0xF0, 0x00, 0x00, 0x0B, 0x00, 0xFB,
	'K', 'Y', 'O', '3', '2', ' ', ' ', ' ', '2', '.', '1', '2',
	0x7B,
}

func mustMarshal(t *testing.T, msg Message) []byte {
	t.Helper()
	frame, err := Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal(%T) failed: %v", msg, err)
	}
	return frame
}

// ============================================================
// Checksum Tests
// ============================================================

func TestChecksum(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected byte
	}{
		{"empty", []byte{}, 0x00},
		{"model request header", []byte{0xF0, 0x00, 0x00, 0x0B, 0x00}, 0xFB},
		{"status request header", []byte{0xF0, 0x04, 0xF0, 0x0A, 0x00}, 0xEE},
		{"wraps modulo 256", []byte{0xFF, 0x02}, 0x01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Checksum(tt.data); got != tt.expected {
				t.Errorf("expected 0x%02X, got 0x%02X", tt.expected, got)
			}
		})
	}
}

// ============================================================
// Command Table Tests
// ============================================================

func TestTable_Size(t *testing.T) {
	// model, peripherals, 8 zone blocks, 2 partition blocks, status, armed,
	// 28 logger pages, 2 wide name commands
	expected := 2 + ZoneNameBlocks + PartitionNameBlocks + 2 + LoggerPages + 2
	if got := len(Commands()); got != expected {
		t.Errorf("expected %d commands, got %d", expected, got)
	}
	if len(byCommand) != len(table) {
		t.Errorf("duplicate command IDs in table: %d unique of %d", len(byCommand), len(table))
	}
}

func TestTable_FrameLengths(t *testing.T) {
	tests := []struct {
		cmd      Command
		frameLen int
	}{
		{CmdModel, 19},
		{CmdStatus, 18},
		{CmdArmed, 26},
		{CmdPeripherals, 16},
		{ZoneNamesCommand(7), 71},
		{PartitionNamesCommand(1), 71},
		{LoggerCommand(27), 71},
		{CmdWideZoneNames, MaxFrameSize},
		{CmdWidePartitionNames, 135},
	}

	for _, tt := range tests {
		t.Run(tt.cmd.String(), func(t *testing.T) {
			e, ok := Lookup(tt.cmd)
			if !ok {
				t.Fatalf("command 0x%08X not in table", uint32(tt.cmd))
			}
			if e.FrameLen() != tt.frameLen {
				t.Errorf("expected frame length %d, got %d", tt.frameLen, e.FrameLen())
			}
		})
	}
}

func TestCommand_String(t *testing.T) {
	if s := ZoneNamesCommand(3).String(); s != "ZONE_NAMES[3]" {
		t.Errorf("expected ZONE_NAMES[3], got %s", s)
	}
	if s := CmdModel.String(); s != "MODEL" {
		t.Errorf("expected MODEL, got %s", s)
	}
	if s := Command(0xDEADBEEF).String(); !strings.HasPrefix(s, "UNKNOWN") {
		t.Errorf("expected UNKNOWN prefix, got %s", s)
	}
}

// ============================================================
// Encoder Tests
// ============================================================

func TestEncodeRequest_KnownFrames(t *testing.T) {
	tests := []struct {
		name     string
		cmd      Command
		expected []byte
	}{
		{"model", CmdModel, []byte{0xF0, 0x00, 0x00, 0x0B, 0x00, 0xFB}},
		{"status", CmdStatus, []byte{0xF0, 0x04, 0xF0, 0x0A, 0x00, 0xEE}},
		{"armed", CmdArmed, []byte{0xF0, 0x02, 0x15, 0x12, 0x00, 0x19}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := EncodeRequest(tt.cmd)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !bytes.Equal(frame[:], tt.expected) {
				t.Errorf("expected %s, got %s", FormatFrame(tt.expected), FormatFrame(frame[:]))
			}
		})
	}
}

func TestEncodeRequest_HeaderChecksumInvariant(t *testing.T) {
	for _, cmd := range Commands() {
		frame, err := EncodeRequest(cmd)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", cmd, err)
		}
		if frame[5] != Checksum(frame[:5]) {
			t.Errorf("%s: checksum1 0x%02X does not cover header", cmd, frame[5])
		}
		if frame[0] != SyncByte || frame[4] != 0x00 {
			t.Errorf("%s: bad framing %s", cmd, FormatFrame(frame[:]))
		}
	}
}

func TestEncodeRequest_Unknown(t *testing.T) {
	_, err := EncodeRequest(Command(0x12345600))
	if errors.Cause(err) != ErrUnknownCommand {
		t.Errorf("expected ErrUnknownCommand, got %v", err)
	}
}

func TestMarshal_Model(t *testing.T) {
	frame := mustMarshal(t, &Model{Name: "KYO32", FwMajor: 2, FwMinor: 12})
	if !bytes.Equal(frame, modelFrame) {
		t.Errorf("expected %s, got %s", FormatFrame(modelFrame), FormatFrame(frame))
	}
}

func TestMarshal_ResponseChecksumInvariant(t *testing.T) {
	frame := mustMarshal(t, &ArmedPartitions{Siren: true, Outputs: [OutputCount]bool{0: true, 15: true}})
	payload := frame[HeaderSize : len(frame)-1]
	if frame[len(frame)-1] != Checksum(payload) {
		t.Errorf("checksum2 0x%02X does not cover payload", frame[len(frame)-1])
	}
}

// ============================================================
// Decoder Tests
// ============================================================

func TestDecode_Model(t *testing.T) {
	msg, n, err := Decode(modelFrame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 19 {
		t.Errorf("expected 19 bytes consumed, got %d", n)
	}
	m, ok := msg.(*Model)
	if !ok {
		t.Fatalf("expected *Model, got %T", msg)
	}
	if m.Name != "KYO32" {
		t.Errorf("expected name KYO32, got %q", m.Name)
	}
	if m.FwMajor != 2 || m.FwMinor != 12 {
		t.Errorf("expected firmware 2.12, got %d.%02d", m.FwMajor, m.FwMinor)
	}
}

func TestDecode_IgnoresTrailingBytes(t *testing.T) {
	buf := append(append([]byte{}, modelFrame...), 0xF0, 0x04)
	_, n, err := Decode(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != len(modelFrame) {
		t.Errorf("expected %d bytes consumed, got %d", len(modelFrame), n)
	}
}

func TestDecode_IncompleteAtEverySplit(t *testing.T) {
	for i := 0; i < len(modelFrame); i++ {
		msg, n, err := Decode(modelFrame[:i])
		if msg != nil || n != 0 || err != nil {
			t.Errorf("prefix %d: expected incomplete, got (%v, %d, %v)", i, msg, n, err)
		}
	}
}

func TestDecode_Errors(t *testing.T) {
	corrupt := func(i int, v byte) []byte {
		b := append([]byte{}, modelFrame...)
		b[i] = v
		return b
	}

	tests := []struct {
		name     string
		frame    []byte
		expected error
	}{
		{"sync", corrupt(0, 0x55), ErrSync},
		{"unknown command", []byte{0xF0, 0x01, 0x02, 0x03, 0x00, 0xF6}, ErrUnknownCommand},
		{"header checksum", corrupt(5, 0xFC), ErrHeaderChecksum},
		{"payload checksum", corrupt(18, 0x7C), ErrPayloadChecksum},
		{"payload byte", corrupt(6, 'k'), ErrPayloadChecksum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, n, err := Decode(tt.frame)
			if errors.Cause(err) != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, err)
			}
			if msg != nil || n != 0 {
				t.Errorf("expected no message and nothing consumed, got (%v, %d)", msg, n)
			}
			if !IsProtocolError(err) {
				t.Errorf("IsProtocolError(%v) = false", err)
			}
		})
	}
}

func TestDecode_HeaderByteMutations(t *testing.T) {
	// Zone name blocks differ in one command byte, so some mutations
	// land on another known command.
	frame := mustMarshal(t, &ZoneNames{Block: 0})
	var unknown, renamed int

	for i := 0; i < HeaderSize; i++ {
		for x := 1; x < 256; x++ {
			b := append([]byte{}, frame...)
			b[i] ^= byte(x)

			var expected error
			switch {
			case i == 0:
				expected = ErrSync
			case i < 5:
				if _, ok := Lookup(CommandFromBytes(b[1:5])); ok {
					expected = ErrHeaderChecksum
					renamed++
				} else {
					expected = ErrUnknownCommand
					unknown++
				}
			default:
				expected = ErrHeaderChecksum
			}

			msg, n, err := Decode(b)
			if errors.Cause(err) != expected || msg != nil || n != 0 {
				t.Fatalf("byte %d ^ 0x%02X: expected %v, got (%v, %d, %v)", i, x, expected, msg, n, err)
			}
		}
	}

	if unknown == 0 || renamed == 0 {
		t.Errorf("expected both unknown and known mutated commands, got %d and %d", unknown, renamed)
	}
}

func TestDecode_UnknownBeforeHeaderComplete(t *testing.T) {
	// The command is known after 5 bytes, before checksum1 arrives
	_, _, err := Decode([]byte{0xF0, 0x01, 0x02, 0x03, 0x00})
	if errors.Cause(err) != ErrUnknownCommand {
		t.Errorf("expected ErrUnknownCommand, got %v", err)
	}
}

func TestDecode_HeaderCheckedBeforeLength(t *testing.T) {
	// Bad checksum1 is reported even though the payload has not arrived
	_, _, err := Decode([]byte{0xF0, 0x00, 0x00, 0x0B, 0x00, 0x00, 'K'})
	if errors.Cause(err) != ErrHeaderChecksum {
		t.Errorf("expected ErrHeaderChecksum, got %v", err)
	}
}

func TestDecode_StatusBitOrder(t *testing.T) {
	payload := make([]byte, StatusPayloadSize)
	payload[3] = 0x01 // zone 1 alarm
	payload[0] = 0x80 // zone 32 alarm
	payload[6] = 0x02 // zone 10 sabotage
	payload[8] = 0x09 // power, battery low
	payload[9] = 0x84 // partitions 3 and 8
	payload[10] = 0x10

	frame := append(MustEncodeRequest(CmdStatus), payload...)
	frame = append(frame, Checksum(payload))

	msg, _, err := Decode(frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := msg.(*StatusAndFaults)

	if !s.ZoneAlarm[0] || !s.ZoneAlarm[31] {
		t.Errorf("expected zone 1 and 32 alarm, got %s", formatBits(s.ZoneAlarm[:]))
	}
	for i, set := range s.ZoneAlarm {
		if set && i != 0 && i != 31 {
			t.Errorf("unexpected alarm on zone %d", i+1)
		}
	}
	if !s.ZoneSabotage[9] {
		t.Errorf("expected zone 10 sabotage, got %s", formatBits(s.ZoneSabotage[:]))
	}
	if !s.Faults.Power || !s.Faults.BatteryLow || s.Faults.Fuse {
		t.Errorf("unexpected faults %+v", s.Faults)
	}
	if !s.PartitionAlarm[2] || !s.PartitionAlarm[7] || s.PartitionAlarm[0] {
		t.Errorf("unexpected partition alarm %s", formatBits(s.PartitionAlarm[:]))
	}
	if !s.Sabotage.Jam || s.Sabotage.System {
		t.Errorf("unexpected sabotage %+v", s.Sabotage)
	}
}

func TestDecode_NamesAreTrimmed(t *testing.T) {
	payload := make([]byte, NamesPayloadSize)
	copy(payload[0:16], "Front door      ")
	copy(payload[16:32], "Garage\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00")
	copy(payload[32:48], "                ")
	copy(payload[48:64], "Kitchen window  ")

	frame := append(MustEncodeRequest(ZoneNamesCommand(2)), payload...)
	frame = append(frame, Checksum(payload))

	msg, _, err := Decode(frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	z := msg.(*ZoneNames)
	expected := [NamesPerBlock]string{"Front door", "Garage", "", "Kitchen window"}
	if z.Block != 2 {
		t.Errorf("expected block 2, got %d", z.Block)
	}
	if z.Names != expected {
		t.Errorf("expected %q, got %q", expected, z.Names)
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	var logger LoggerPage
	logger.Page = 27
	for i := range logger.Data {
		logger.Data[i] = byte(i * 3)
	}

	wide := &WideZoneNames{}
	for i := range wide.Names {
		wide.Names[i] = strings.Repeat("z", i%NameSize+1)
	}

	messages := []Message{
		&Model{Name: "KYO8W", FwMajor: 3, FwMinor: 5},
		&Peripherals{
			Readers:   [ReaderCount]Peripheral{0: {Present: true, Alive: true}, 15: {Present: true, Sabotage: true}},
			Keyboards: [KeyboardCount]Peripheral{7: {Present: true, Alive: true}},
		},
		&ZoneNames{Block: 5, Names: [NamesPerBlock]string{"a", "b", "", "Hall"}},
		&PartitionNames{Block: 1, Names: [NamesPerBlock]string{"Ground floor"}},
		&WidePartitionNames{Names: [PartitionCount]string{"House", "", "", "", "", "", "", "Shed"}},
		wide,
		&StatusAndFaults{
			ZoneAlarm:      [ZoneCount]bool{4: true, 17: true},
			Faults:         Faults{TelephoneLine: true, Wireless: true},
			PartitionAlarm: [PartitionCount]bool{1: true},
			Sabotage:       SabotageFlags{FakeKey: true},
		},
		&ArmedPartitions{
			ArmedTotal:         [PartitionCount]bool{0: true},
			ArmedPartial:       [PartitionCount]bool{1: true},
			Disarmed:           [PartitionCount]bool{2: true, 3: true},
			Siren:              true,
			Outputs:            [OutputCount]bool{8: true},
			ZoneInclusion:      [ZoneCount]bool{0: true, 1: true, 31: true},
			ZoneSabotageMemory: [ZoneCount]bool{20: true},
		},
		&logger,
	}

	for _, want := range messages {
		t.Run(want.Command().String(), func(t *testing.T) {
			frame := mustMarshal(t, want)
			got, n, err := Decode(frame)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if n != len(frame) {
				t.Errorf("expected %d bytes consumed, got %d", len(frame), n)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("round trip mismatch:\nexpected %+v\ngot      %+v", want, got)
			}
		})
	}
}

func TestDecodeRequest(t *testing.T) {
	req, n, err := DecodeRequest([]byte{0xF0, 0x02, 0x15, 0x12, 0x00, 0x19})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != RequestSize || req.Cmd != CmdArmed {
		t.Errorf("expected ARMED/6, got %s/%d", req.Cmd, n)
	}

	_, _, err = DecodeRequest([]byte{0xF0, 0x02, 0x15, 0x12, 0x01, 0x1A})
	if errors.Cause(err) != ErrNotRequest {
		t.Errorf("expected ErrNotRequest, got %v", err)
	}
}

// ============================================================
// Message Tests
// ============================================================

func TestArmedPartitions_Mode(t *testing.T) {
	a := &ArmedPartitions{
		ArmedTotal:          [PartitionCount]bool{0: true},
		ArmedPartial:        [PartitionCount]bool{1: true},
		ArmedPartialInstant: [PartitionCount]bool{2: true},
		Disarmed:            [PartitionCount]bool{3: true},
	}
	expected := []ArmMode{ArmTotal, ArmPartial, ArmPartialInstant, ArmDisarmed, ArmUnknown}
	for p, mode := range expected {
		if got := a.Mode(p); got != mode {
			t.Errorf("partition %d: expected %s, got %s", p+1, mode, got)
		}
	}
	if !a.Armed(1) || a.Armed(3) {
		t.Errorf("Armed() disagrees with Mode()")
	}
}

func TestArmMode_Text(t *testing.T) {
	for _, mode := range []ArmMode{ArmUnknown, ArmDisarmed, ArmTotal, ArmPartial, ArmPartialInstant} {
		text, err := mode.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%d) failed: %v", mode, err)
		}
		var back ArmMode
		if err := back.UnmarshalText(text); err != nil || back != mode {
			t.Errorf("expected %s back, got %s (%v)", mode, back, err)
		}
	}

	var m ArmMode
	if err := m.UnmarshalText([]byte("half")); err == nil {
		t.Error("expected error for unknown mode name")
	}
}

// ============================================================
// Validator Tests
// ============================================================

func TestValidateMessage(t *testing.T) {
	tests := []struct {
		name     string
		msg      Message
		expected []AnomalyType
	}{
		{"clean model", &Model{Name: "KYO32", FwMajor: 2, FwMinor: 12}, nil},
		{"zero firmware", &Model{Name: "KYO32"}, []AnomalyType{AnomalyInvalidFirmware}},
		{"binary name", &ZoneNames{Names: [NamesPerBlock]string{"ok", "b\x01d"}}, []AnomalyType{AnomalyNonPrintableName}},
		{
			"armed and disarmed",
			&ArmedPartitions{ArmedTotal: [PartitionCount]bool{4: true}, Disarmed: [PartitionCount]bool{4: true}},
			[]AnomalyType{AnomalyInconsistentArm},
		},
		{
			"ghost reader",
			&Peripherals{Readers: [ReaderCount]Peripheral{2: {Alive: true}}},
			[]AnomalyType{AnomalyPeripheralState},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateMessage(tt.msg)
			if len(got) != len(tt.expected) {
				t.Fatalf("expected %d anomalies, got %d: %v", len(tt.expected), len(got), got)
			}
			for i, v := range got {
				if v.Type != tt.expected[i] {
					t.Errorf("anomaly %d: expected type %d, got %d (%s)", i, tt.expected[i], v.Type, v.Message)
				}
			}
		})
	}
}
