// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package kyo

import "fmt"

// Command is the 32-bit identifier formed by frame bytes 1..4, big-endian.
type Command uint32

// Kind groups commands that share a payload layout.
type Kind uint8

const (
	KindModel Kind = iota
	KindPeripherals
	KindZoneNames
	KindPartitionNames
	KindStatus
	KindArmed
	KindLogger
	KindWideZoneNames
	KindWidePartitionNames
)

var kindNames = map[Kind]string{
	KindModel:              "MODEL",
	KindPeripherals:        "PERIPHERALS",
	KindZoneNames:          "ZONE_NAMES",
	KindPartitionNames:     "PARTITION_NAMES",
	KindStatus:             "STATUS",
	KindArmed:              "ARMED",
	KindLogger:             "LOGGER",
	KindWideZoneNames:      "WIDE_ZONE_NAMES",
	KindWidePartitionNames: "WIDE_PARTITION_NAMES",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("KIND_%d", uint8(k))
}

// Bytes returns the four command bytes as they appear on the wire.
func (c Command) Bytes() [4]byte {
	return [4]byte{byte(c >> 24), byte(c >> 16), byte(c >> 8), byte(c)}
}

// CommandFromBytes packs frame bytes 1..4 into a Command.
func CommandFromBytes(b []byte) Command {
	return Command(uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]))
}

// String names the command by its table entry, e.g. ZONE_NAMES[2].
func (c Command) String() string {
	e, ok := Lookup(c)
	if !ok {
		return fmt.Sprintf("UNKNOWN(0x%08X)", uint32(c))
	}
	switch e.Kind {
	case KindZoneNames, KindPartitionNames, KindLogger:
		return fmt.Sprintf("%s[%d]", e.Kind, e.Index)
	}
	return e.Kind.String()
}

func makeCommand(addr uint16, payloadLen int) Command {
	return Command(uint32(addr)<<16 | uint32(payloadLen-1)<<8 | reservedByte)
}

// ZoneNamesCommand returns the command reading zone names 4*block..4*block+3.
func ZoneNamesCommand(block int) Command {
	return makeCommand(addrZoneNames+uint16(block)*blockStride, NamesPayloadSize)
}

// PartitionNamesCommand returns the command reading partition names 4*block..4*block+3.
func PartitionNamesCommand(block int) Command {
	return makeCommand(addrPartitionNames+uint16(block)*blockStride, NamesPayloadSize)
}

// LoggerCommand returns the command reading event logger page.
func LoggerCommand(page int) Command {
	return makeCommand(addrLogger+uint16(page)*blockStride, LoggerPayloadSize)
}
