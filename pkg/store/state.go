// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package store

import "github.com/Thermoquad/kyobridge/pkg/kyo"

// Zone is the mirrored state of one detection zone.
type Zone struct {
	Name           string `json:"name" cbor:"name"`
	Alarm          bool   `json:"alarm" cbor:"alarm"`
	Sabotage       bool   `json:"sabotage" cbor:"sabotage"`
	Included       bool   `json:"included" cbor:"included"`
	AlarmMemory    bool   `json:"alarm_memory" cbor:"alarm_memory"`
	SabotageMemory bool   `json:"sabotage_memory" cbor:"sabotage_memory"`
}

// Partition is the mirrored state of one partition.
type Partition struct {
	Name  string      `json:"name" cbor:"name"`
	Alarm bool        `json:"alarm" cbor:"alarm"`
	Armed bool        `json:"armed" cbor:"armed"`
	Mode  kyo.ArmMode `json:"mode" cbor:"mode"`
}

// State mirrors everything the panel has reported. Each field group is
// written by exactly one response kind.
type State struct {
	// model
	Model   string `json:"model" cbor:"model"`
	FwMajor uint8  `json:"fw_major" cbor:"fw_major"`
	FwMinor uint8  `json:"fw_minor" cbor:"fw_minor"`

	// peripherals
	Readers   [kyo.ReaderCount]kyo.Peripheral   `json:"readers" cbor:"readers"`
	Keyboards [kyo.KeyboardCount]kyo.Peripheral `json:"keyboards" cbor:"keyboards"`

	// names, status and armed share the per-zone and per-partition records
	Zones      [kyo.ZoneCount]Zone           `json:"zones" cbor:"zones"`
	Partitions [kyo.PartitionCount]Partition `json:"partitions" cbor:"partitions"`

	// status
	Faults   kyo.Faults        `json:"faults" cbor:"faults"`
	Sabotage kyo.SabotageFlags `json:"sabotage" cbor:"sabotage"`

	// armed
	Siren   bool                  `json:"siren" cbor:"siren"`
	Outputs [kyo.OutputCount]bool `json:"outputs" cbor:"outputs"`

	// logger pages
	Logger [kyo.LoggerSize]byte `json:"-" cbor:"-"`
}

// Firmware formats the firmware version as major.minor.
func (s *State) Firmware() string {
	return string([]byte{'0' + s.FwMajor%10, '.', '0' + (s.FwMinor/10)%10, '0' + s.FwMinor%10})
}
