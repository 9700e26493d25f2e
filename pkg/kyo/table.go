// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package kyo

// Entry describes one request/response pair.
type Entry struct {
	Cmd        Command
	Kind       Kind
	Index      int // block or page number for indexed kinds
	PayloadLen int
}

// FrameLen is the total length of the response frame.
func (e Entry) FrameLen() int {
	return HeaderSize + e.PayloadLen + TrailerSize
}

var (
	table     []Entry
	byCommand map[Command]Entry
)

func init() {
	table = append(table,
		Entry{Cmd: CmdModel, Kind: KindModel, PayloadLen: ModelPayloadSize},
		Entry{Cmd: CmdPeripherals, Kind: KindPeripherals, PayloadLen: PeripheralsPayloadSize},
	)
	for b := 0; b < ZoneNameBlocks; b++ {
		table = append(table, Entry{Cmd: ZoneNamesCommand(b), Kind: KindZoneNames, Index: b, PayloadLen: NamesPayloadSize})
	}
	for b := 0; b < PartitionNameBlocks; b++ {
		table = append(table, Entry{Cmd: PartitionNamesCommand(b), Kind: KindPartitionNames, Index: b, PayloadLen: NamesPayloadSize})
	}
	table = append(table,
		Entry{Cmd: CmdStatus, Kind: KindStatus, PayloadLen: StatusPayloadSize},
		Entry{Cmd: CmdArmed, Kind: KindArmed, PayloadLen: ArmedPayloadSize},
	)
	for p := 0; p < LoggerPages; p++ {
		table = append(table, Entry{Cmd: LoggerCommand(p), Kind: KindLogger, Index: p, PayloadLen: LoggerPayloadSize})
	}
	table = append(table,
		Entry{Cmd: CmdWideZoneNames, Kind: KindWideZoneNames, PayloadLen: WideZoneNamesPayloadSize},
		Entry{Cmd: CmdWidePartitionNames, Kind: KindWidePartitionNames, PayloadLen: WidePartitionNamesPayloadSize},
	)

	byCommand = make(map[Command]Entry, len(table))
	for _, e := range table {
		byCommand[e.Cmd] = e
	}
}

// Lookup finds the table entry for a command.
func Lookup(c Command) (Entry, bool) {
	e, ok := byCommand[c]
	return e, ok
}

// Commands returns every known command in table order.
func Commands() []Command {
	cmds := make([]Command, len(table))
	for i, e := range table {
		cmds[i] = e.Cmd
	}
	return cmds
}
