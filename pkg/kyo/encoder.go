// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package kyo

import (
	"fmt"

	"github.com/pkg/errors"
)

func putHeader(dst []byte, c Command) {
	cb := c.Bytes()
	dst[0] = SyncByte
	copy(dst[1:5], cb[:])
	dst[5] = Checksum(dst[:5])
}

// EncodeRequest builds the 6-byte request frame for a known command.
func EncodeRequest(c Command) ([RequestSize]byte, error) {
	var frame [RequestSize]byte
	if _, ok := Lookup(c); !ok {
		return frame, errors.Wrapf(ErrUnknownCommand, "command 0x%08X", uint32(c))
	}
	putHeader(frame[:], c)
	return frame, nil
}

// MustEncodeRequest is like EncodeRequest but panics on unknown commands.
// Intended for tests and static tables.
func MustEncodeRequest(c Command) []byte {
	frame, err := EncodeRequest(c)
	if err != nil {
		panic(err)
	}
	return frame[:]
}

// Marshal encodes msg the way it appears on the wire. A *Request becomes a
// request frame, every other message a full response frame.
func Marshal(msg Message) ([]byte, error) {
	if req, ok := msg.(*Request); ok {
		frame, err := EncodeRequest(req.Cmd)
		if err != nil {
			return nil, err
		}
		return frame[:], nil
	}

	e, ok := Lookup(msg.Command())
	if !ok {
		return nil, errors.Wrapf(ErrUnknownCommand, "command 0x%08X", uint32(msg.Command()))
	}

	frame := make([]byte, e.FrameLen())
	putHeader(frame, e.Cmd)
	payload := frame[HeaderSize : HeaderSize+e.PayloadLen]

	switch m := msg.(type) {
	case *Model:
		marshalModel(m, payload)
	case *Peripherals:
		marshalPeripherals(m, payload)
	case *ZoneNames:
		marshalNames(m.Names[:], payload)
	case *PartitionNames:
		marshalNames(m.Names[:], payload)
	case *WideZoneNames:
		marshalNames(m.Names[:], payload)
	case *WidePartitionNames:
		marshalNames(m.Names[:], payload)
	case *StatusAndFaults:
		marshalStatus(m, payload)
	case *ArmedPartitions:
		marshalArmed(m, payload)
	case *LoggerPage:
		copy(payload, m.Data[:])
	default:
		return nil, fmt.Errorf("cannot marshal %T", msg)
	}

	frame[len(frame)-1] = Checksum(payload)
	return frame, nil
}

func marshalModel(m *Model, p []byte) {
	padName(p[:ModelNameSize], m.Name)
	p[8] = '0' + m.FwMajor%10
	p[9] = '.'
	p[10] = '0' + (m.FwMinor/10)%10
	p[11] = '0' + m.FwMinor%10
}

func marshalPeripherals(m *Peripherals, p []byte) {
	var present, sabotage, alive [ReaderCount]bool
	for i, r := range m.Readers {
		present[i], sabotage[i], alive[i] = r.Present, r.Sabotage, r.Alive
	}
	packBits(present[:], p[0:2])
	packBits(sabotage[:], p[2:4])
	packBits(alive[:], p[4:6])

	var kp, ks, ka [KeyboardCount]bool
	for i, k := range m.Keyboards {
		kp[i], ks[i], ka[i] = k.Present, k.Sabotage, k.Alive
	}
	packBits(kp[:], p[6:7])
	packBits(ks[:], p[7:8])
	packBits(ka[:], p[8:9])
}

func marshalNames(names []string, p []byte) {
	for i, name := range names {
		padName(p[i*NameSize:(i+1)*NameSize], name)
	}
}

func marshalStatus(m *StatusAndFaults, p []byte) {
	packBits(m.ZoneAlarm[:], p[0:4])
	packBits(m.ZoneSabotage[:], p[4:8])

	f := m.Faults
	setFlag(&p[8], faultPower, f.Power)
	setFlag(&p[8], faultBPI, f.BPI)
	setFlag(&p[8], faultFuse, f.Fuse)
	setFlag(&p[8], faultBatteryLow, f.BatteryLow)
	setFlag(&p[8], faultTelephoneLine, f.TelephoneLine)
	setFlag(&p[8], faultDefaultCodes, f.DefaultCodes)
	setFlag(&p[8], faultWireless, f.Wireless)

	packBits(m.PartitionAlarm[:], p[9:10])

	s := m.Sabotage
	setFlag(&p[10], sabotagePartition, s.Partition)
	setFlag(&p[10], sabotageFakeKey, s.FakeKey)
	setFlag(&p[10], sabotageBPI, s.BPI)
	setFlag(&p[10], sabotageSystem, s.System)
	setFlag(&p[10], sabotageJam, s.Jam)
	setFlag(&p[10], sabotageWireless, s.Wireless)
}

func marshalArmed(m *ArmedPartitions, p []byte) {
	packBits(m.ArmedTotal[:], p[0:1])
	packBits(m.ArmedPartial[:], p[1:2])
	packBits(m.ArmedPartialInstant[:], p[2:3])
	packBits(m.Disarmed[:], p[3:4])
	if m.Siren {
		p[4] = 1
	}
	packBits(m.Outputs[:], p[5:7])
	packBits(m.ZoneInclusion[:], p[7:11])
	packBits(m.ZoneAlarmMemory[:], p[11:15])
	packBits(m.ZoneSabotageMemory[:], p[15:19])
}
