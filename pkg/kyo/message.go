// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package kyo

import "fmt"

// Message is a decoded frame or a request to be sent. The concrete type
// identifies the kind; use a type switch to inspect it.
type Message interface {
	Command() Command
	isMessage()
}

// Request asks the panel for the data behind Cmd.
type Request struct {
	Cmd Command
}

// Model identifies the panel.
type Model struct {
	Name    string
	FwMajor uint8
	FwMinor uint8
}

// Peripheral is the supervision state of a reader or keyboard.
type Peripheral struct {
	Present  bool `json:"present" cbor:"present"`
	Sabotage bool `json:"sabotage" cbor:"sabotage"`
	Alive    bool `json:"alive" cbor:"alive"`
}

// Peripherals is the supervision state of every reader and keyboard.
type Peripherals struct {
	Readers   [ReaderCount]Peripheral
	Keyboards [KeyboardCount]Peripheral
}

// ZoneNames carries zones 4*Block .. 4*Block+3.
type ZoneNames struct {
	Block int
	Names [NamesPerBlock]string
}

// PartitionNames carries partitions 4*Block .. 4*Block+3.
type PartitionNames struct {
	Block int
	Names [NamesPerBlock]string
}

// WideZoneNames carries all zone names in one response. Only larger panels
// answer it.
type WideZoneNames struct {
	Names [ZoneCount]string
}

// WidePartitionNames carries all partition names in one response.
type WidePartitionNames struct {
	Names [PartitionCount]string
}

// Faults are the system fault flags reported with the status response.
type Faults struct {
	Power         bool `json:"power" cbor:"power"`
	BPI           bool `json:"bpi" cbor:"bpi"`
	Fuse          bool `json:"fuse" cbor:"fuse"`
	BatteryLow    bool `json:"battery_low" cbor:"battery_low"`
	TelephoneLine bool `json:"telephone_line" cbor:"telephone_line"`
	DefaultCodes  bool `json:"default_codes" cbor:"default_codes"`
	Wireless      bool `json:"wireless" cbor:"wireless"`
}

// SabotageFlags are the system-wide tamper flags.
type SabotageFlags struct {
	Partition bool `json:"partition" cbor:"partition"`
	FakeKey   bool `json:"fake_key" cbor:"fake_key"`
	BPI       bool `json:"bpi" cbor:"bpi"`
	System    bool `json:"system" cbor:"system"`
	Jam       bool `json:"jam" cbor:"jam"`
	Wireless  bool `json:"wireless" cbor:"wireless"`
}

// StatusAndFaults is the live alarm and tamper state of zones and partitions
// together with the system-wide flags.
type StatusAndFaults struct {
	ZoneAlarm      [ZoneCount]bool
	ZoneSabotage   [ZoneCount]bool
	Faults         Faults
	PartitionAlarm [PartitionCount]bool
	Sabotage       SabotageFlags
}

// ArmMode is how a partition is armed.
type ArmMode uint8

const (
	ArmUnknown ArmMode = iota
	ArmDisarmed
	ArmTotal
	ArmPartial
	ArmPartialInstant
)

var armModeNames = map[ArmMode]string{
	ArmUnknown:        "unknown",
	ArmDisarmed:       "disarmed",
	ArmTotal:          "total",
	ArmPartial:        "partial",
	ArmPartialInstant: "partial_instant",
}

func (m ArmMode) String() string {
	if name, ok := armModeNames[m]; ok {
		return name
	}
	return "invalid"
}

// MarshalText renders the mode by name in JSON and CBOR documents.
func (m ArmMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (m *ArmMode) UnmarshalText(text []byte) error {
	for mode, name := range armModeNames {
		if name == string(text) {
			*m = mode
			return nil
		}
	}
	return fmt.Errorf("unknown arm mode %q", text)
}

// ArmedPartitions reports how each partition is armed. The same response
// carries the siren, the outputs and the per-zone memories.
type ArmedPartitions struct {
	ArmedTotal          [PartitionCount]bool
	ArmedPartial        [PartitionCount]bool
	ArmedPartialInstant [PartitionCount]bool
	Disarmed            [PartitionCount]bool
	Siren               bool
	Outputs             [OutputCount]bool
	ZoneInclusion       [ZoneCount]bool
	ZoneAlarmMemory     [ZoneCount]bool
	ZoneSabotageMemory  [ZoneCount]bool
}

// Armed reports whether partition p is armed in any mode.
func (a *ArmedPartitions) Armed(p int) bool {
	return a.ArmedTotal[p] || a.ArmedPartial[p] || a.ArmedPartialInstant[p]
}

// Mode reports the arm mode of partition p. Total wins over the partial modes.
func (a *ArmedPartitions) Mode(p int) ArmMode {
	switch {
	case a.ArmedTotal[p]:
		return ArmTotal
	case a.ArmedPartialInstant[p]:
		return ArmPartialInstant
	case a.ArmedPartial[p]:
		return ArmPartial
	case a.Disarmed[p]:
		return ArmDisarmed
	}
	return ArmUnknown
}

// LoggerPage is one raw 64-byte page of the panel event log.
type LoggerPage struct {
	Page int
	Data [LoggerPageSize]byte
}

func (m *Request) Command() Command            { return m.Cmd }
func (m *Model) Command() Command              { return CmdModel }
func (m *Peripherals) Command() Command        { return CmdPeripherals }
func (m *ZoneNames) Command() Command          { return ZoneNamesCommand(m.Block) }
func (m *PartitionNames) Command() Command     { return PartitionNamesCommand(m.Block) }
func (m *WideZoneNames) Command() Command      { return CmdWideZoneNames }
func (m *WidePartitionNames) Command() Command { return CmdWidePartitionNames }
func (m *StatusAndFaults) Command() Command    { return CmdStatus }
func (m *ArmedPartitions) Command() Command    { return CmdArmed }
func (m *LoggerPage) Command() Command         { return LoggerCommand(m.Page) }

func (*Request) isMessage()            {}
func (*Model) isMessage()              {}
func (*Peripherals) isMessage()        {}
func (*ZoneNames) isMessage()          {}
func (*PartitionNames) isMessage()     {}
func (*WideZoneNames) isMessage()      {}
func (*WidePartitionNames) isMessage() {}
func (*StatusAndFaults) isMessage()    {}
func (*ArmedPartitions) isMessage()    {}
func (*LoggerPage) isMessage()         {}
