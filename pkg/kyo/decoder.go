// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package kyo

import "github.com/pkg/errors"

// Decode parses the response frame at the start of buf.
//
// It returns the message and the number of bytes the frame occupies. When buf
// holds only part of a frame it returns (nil, 0, nil) and the caller should
// retry once more bytes have arrived. Errors wrap ErrSync, ErrUnknownCommand,
// ErrHeaderChecksum or ErrPayloadChecksum and consume nothing; discarding
// input is up to the caller.
func Decode(buf []byte) (Message, int, error) {
	if len(buf) == 0 {
		return nil, 0, nil
	}
	if buf[0] != SyncByte {
		return nil, 0, errors.Wrapf(ErrSync, "got 0x%02X", buf[0])
	}
	if len(buf) < 5 {
		return nil, 0, nil
	}

	cmd := CommandFromBytes(buf[1:5])
	e, ok := Lookup(cmd)
	if !ok {
		return nil, 0, errors.Wrapf(ErrUnknownCommand, "command 0x%08X", uint32(cmd))
	}
	if len(buf) < HeaderSize {
		return nil, 0, nil
	}
	if want := Checksum(buf[:5]); buf[5] != want {
		return nil, 0, errors.Wrapf(ErrHeaderChecksum, "%s: got 0x%02X, expected 0x%02X", cmd, buf[5], want)
	}

	total := e.FrameLen()
	if len(buf) < total {
		return nil, 0, nil
	}

	payload := buf[HeaderSize : HeaderSize+e.PayloadLen]
	if want := Checksum(payload); buf[total-1] != want {
		return nil, 0, errors.Wrapf(ErrPayloadChecksum, "%s: got 0x%02X, expected 0x%02X", cmd, buf[total-1], want)
	}

	return unpack(e, payload), total, nil
}

// DecodeRequest parses the 6-byte request frame at the start of buf. It is
// the panel side of the exchange and shares Decode's incomplete convention.
func DecodeRequest(buf []byte) (*Request, int, error) {
	if len(buf) == 0 {
		return nil, 0, nil
	}
	if buf[0] != SyncByte {
		return nil, 0, errors.Wrapf(ErrSync, "got 0x%02X", buf[0])
	}
	if len(buf) < RequestSize {
		return nil, 0, nil
	}
	if buf[4] != reservedByte {
		return nil, 0, errors.Wrapf(ErrNotRequest, "reserved byte 0x%02X", buf[4])
	}
	cmd := CommandFromBytes(buf[1:5])
	if _, ok := Lookup(cmd); !ok {
		return nil, 0, errors.Wrapf(ErrUnknownCommand, "command 0x%08X", uint32(cmd))
	}
	if want := Checksum(buf[:5]); buf[5] != want {
		return nil, 0, errors.Wrapf(ErrHeaderChecksum, "%s: got 0x%02X, expected 0x%02X", cmd, buf[5], want)
	}
	return &Request{Cmd: cmd}, RequestSize, nil
}

func unpack(e Entry, p []byte) Message {
	switch e.Kind {
	case KindModel:
		return &Model{
			Name:    trimName(p[:ModelNameSize]),
			FwMajor: digit(p[8]),
			FwMinor: digit(p[10])*10 + digit(p[11]),
		}
	case KindPeripherals:
		return unpackPeripherals(p)
	case KindZoneNames:
		m := &ZoneNames{Block: e.Index}
		unpackNames(p, m.Names[:])
		return m
	case KindPartitionNames:
		m := &PartitionNames{Block: e.Index}
		unpackNames(p, m.Names[:])
		return m
	case KindWideZoneNames:
		m := &WideZoneNames{}
		unpackNames(p, m.Names[:])
		return m
	case KindWidePartitionNames:
		m := &WidePartitionNames{}
		unpackNames(p, m.Names[:])
		return m
	case KindStatus:
		return unpackStatus(p)
	case KindArmed:
		return unpackArmed(p)
	case KindLogger:
		m := &LoggerPage{Page: e.Index}
		copy(m.Data[:], p)
		return m
	}
	panic("kyo: table entry without unpacker: " + e.Kind.String())
}

func unpackNames(p []byte, names []string) {
	for i := range names {
		names[i] = trimName(p[i*NameSize : (i+1)*NameSize])
	}
}

func unpackPeripherals(p []byte) *Peripherals {
	m := &Peripherals{}
	var present, sabotage, alive [ReaderCount]bool
	unpackBits(p[0:2], present[:])
	unpackBits(p[2:4], sabotage[:])
	unpackBits(p[4:6], alive[:])
	for i := range m.Readers {
		m.Readers[i] = Peripheral{Present: present[i], Sabotage: sabotage[i], Alive: alive[i]}
	}

	var kp, ks, ka [KeyboardCount]bool
	unpackBits(p[6:7], kp[:])
	unpackBits(p[7:8], ks[:])
	unpackBits(p[8:9], ka[:])
	for i := range m.Keyboards {
		m.Keyboards[i] = Peripheral{Present: kp[i], Sabotage: ks[i], Alive: ka[i]}
	}
	return m
}

func unpackStatus(p []byte) *StatusAndFaults {
	m := &StatusAndFaults{}
	unpackBits(p[0:4], m.ZoneAlarm[:])
	unpackBits(p[4:8], m.ZoneSabotage[:])
	m.Faults = Faults{
		Power:         flag(p[8], faultPower),
		BPI:           flag(p[8], faultBPI),
		Fuse:          flag(p[8], faultFuse),
		BatteryLow:    flag(p[8], faultBatteryLow),
		TelephoneLine: flag(p[8], faultTelephoneLine),
		DefaultCodes:  flag(p[8], faultDefaultCodes),
		Wireless:      flag(p[8], faultWireless),
	}
	unpackBits(p[9:10], m.PartitionAlarm[:])
	m.Sabotage = SabotageFlags{
		Partition: flag(p[10], sabotagePartition),
		FakeKey:   flag(p[10], sabotageFakeKey),
		BPI:       flag(p[10], sabotageBPI),
		System:    flag(p[10], sabotageSystem),
		Jam:       flag(p[10], sabotageJam),
		Wireless:  flag(p[10], sabotageWireless),
	}
	return m
}

func unpackArmed(p []byte) *ArmedPartitions {
	m := &ArmedPartitions{Siren: p[4] != 0}
	unpackBits(p[0:1], m.ArmedTotal[:])
	unpackBits(p[1:2], m.ArmedPartial[:])
	unpackBits(p[2:3], m.ArmedPartialInstant[:])
	unpackBits(p[3:4], m.Disarmed[:])
	unpackBits(p[5:7], m.Outputs[:])
	unpackBits(p[7:11], m.ZoneInclusion[:])
	unpackBits(p[11:15], m.ZoneAlarmMemory[:])
	unpackBits(p[15:19], m.ZoneSabotageMemory[:])
	return m
}
