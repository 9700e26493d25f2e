// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package kyo implements the serial protocol spoken by Bentel KYO alarm panels.
//
// Every exchange is started by the host with a 6-byte request frame. The panel
// answers with the same 6-byte header followed by a fixed-length payload and a
// payload checksum. This package provides the command table, typed messages,
// frame encoding and decoding, and payload formatting.
package kyo

// Protocol framing
const (
	SyncByte     = 0xF0
	HeaderSize   = 6 // sync + 3 command bytes + reserved + checksum1
	RequestSize  = HeaderSize
	TrailerSize  = 1 // checksum2
	reservedByte = 0x00
)

// Frame size limits
const (
	MaxPayloadSize = WideZoneNamesPayloadSize
	MaxFrameSize   = HeaderSize + MaxPayloadSize + TrailerSize // 519
)

// Panel dimensions
const (
	ZoneCount      = 32
	PartitionCount = 8
	ReaderCount    = 16
	KeyboardCount  = 8
	OutputCount    = 16
)

// Names
const (
	NameSize            = 16
	NamesPerBlock       = 4
	ZoneNameBlocks      = ZoneCount / NamesPerBlock      // 8
	PartitionNameBlocks = PartitionCount / NamesPerBlock // 2
	ModelNameSize       = 8
)

// Event logger
const (
	LoggerPageSize = 64
	LoggerPages    = 28
	LoggerSize     = LoggerPageSize * LoggerPages // 1792
)

// Payload sizes per response kind
const (
	ModelPayloadSize              = 12
	PeripheralsPayloadSize        = 9
	NamesPayloadSize              = NameSize * NamesPerBlock // 64
	StatusPayloadSize             = 11
	ArmedPayloadSize              = 19
	LoggerPayloadSize             = LoggerPageSize
	WideZoneNamesPayloadSize      = NameSize * ZoneCount      // 512
	WidePartitionNamesPayloadSize = NameSize * PartitionCount // 128
)

// Panel memory addresses. The first two command bytes carry the address,
// the third carries the payload length minus one.
const (
	addrModel          = 0x0000
	addrPeripherals    = 0x04D0
	addrStatus         = 0x04F0
	addrArmed          = 0x0215
	addrZoneNames      = 0x6000
	addrPartitionNames = 0x6200
	addrLogger         = 0x3000
	addrWideZones      = 0x6800
	addrWidePartitions = 0x6820
	blockStride        = 0x40
)

// Fixed commands
const (
	CmdModel              Command = 0x00000B00
	CmdPeripherals        Command = 0x04D00800
	CmdStatus             Command = 0x04F00A00
	CmdArmed              Command = 0x02151200
	CmdWideZoneNames      Command = 0x68001F00 // name count - 1 in the third byte
	CmdWidePartitionNames Command = 0x68200700
)

// Status fault bits (payload byte 8)
const (
	faultPower = 1 << iota
	faultBPI
	faultFuse
	faultBatteryLow
	faultTelephoneLine
	faultDefaultCodes
	faultWireless
)

// Status sabotage bits (payload byte 10)
const (
	sabotagePartition = 1 << iota
	sabotageFakeKey
	sabotageBPI
	sabotageSystem
	sabotageJam
	sabotageWireless
)
