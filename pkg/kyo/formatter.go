// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package kyo

import (
	"fmt"
	"strings"
	"time"
)

// FormatFrame renders raw frame bytes as space separated hex.
func FormatFrame(frame []byte) string {
	var sb strings.Builder
	for i, b := range frame {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}

// FormatMessage formats a decoded message into a human-readable block
func FormatMessage(ts time.Time, msg Message) string {
	header := fmt.Sprintf("[%s] %s (0x%08X)\n", ts.Format("15:04:05.000"), msg.Command(), uint32(msg.Command()))
	return header + FormatPayload(msg)
}

// FormatPayload formats the fields of a message, one per line.
func FormatPayload(msg Message) string {
	var sb strings.Builder

	switch m := msg.(type) {
	case *Request:
		sb.WriteString("  request\n")
	case *Model:
		fmt.Fprintf(&sb, "  model=%q firmware=%d.%02d\n", m.Name, m.FwMajor, m.FwMinor)
	case *Peripherals:
		fmt.Fprintf(&sb, "  readers:   %s\n", formatPeripherals(m.Readers[:]))
		fmt.Fprintf(&sb, "  keyboards: %s\n", formatPeripherals(m.Keyboards[:]))
	case *ZoneNames:
		formatNames(&sb, "zone", m.Block*NamesPerBlock, m.Names[:])
	case *PartitionNames:
		formatNames(&sb, "partition", m.Block*NamesPerBlock, m.Names[:])
	case *WideZoneNames:
		formatNames(&sb, "zone", 0, m.Names[:])
	case *WidePartitionNames:
		formatNames(&sb, "partition", 0, m.Names[:])
	case *StatusAndFaults:
		fmt.Fprintf(&sb, "  zone alarm:      %s\n", formatBits(m.ZoneAlarm[:]))
		fmt.Fprintf(&sb, "  zone sabotage:   %s\n", formatBits(m.ZoneSabotage[:]))
		fmt.Fprintf(&sb, "  partition alarm: %s\n", formatBits(m.PartitionAlarm[:]))
		fmt.Fprintf(&sb, "  faults:   %+v\n", m.Faults)
		fmt.Fprintf(&sb, "  sabotage: %+v\n", m.Sabotage)
	case *ArmedPartitions:
		modes := make([]string, PartitionCount)
		for p := range modes {
			modes[p] = m.Mode(p).String()
		}
		fmt.Fprintf(&sb, "  partitions: %s\n", strings.Join(modes, " "))
		fmt.Fprintf(&sb, "  siren=%t outputs=%s\n", m.Siren, formatBits(m.Outputs[:]))
		fmt.Fprintf(&sb, "  inclusion:  %s\n", formatBits(m.ZoneInclusion[:]))
		fmt.Fprintf(&sb, "  alarm mem:  %s\n", formatBits(m.ZoneAlarmMemory[:]))
		fmt.Fprintf(&sb, "  tamper mem: %s\n", formatBits(m.ZoneSabotageMemory[:]))
	case *LoggerPage:
		fmt.Fprintf(&sb, "  page %d: %s\n", m.Page, FormatFrame(m.Data[:]))
	default:
		fmt.Fprintf(&sb, "  %T\n", msg)
	}

	return sb.String()
}

// formatBits prints item 0 first, one character per item.
func formatBits(bits []bool) string {
	b := make([]byte, len(bits))
	for i, set := range bits {
		if set {
			b[i] = '1'
		} else {
			b[i] = '.'
		}
	}
	return string(b)
}

func formatPeripherals(ps []Peripheral) string {
	b := make([]byte, len(ps))
	for i, p := range ps {
		switch {
		case !p.Present:
			b[i] = '.'
		case p.Sabotage:
			b[i] = 'S'
		case !p.Alive:
			b[i] = 'x'
		default:
			b[i] = 'o'
		}
	}
	return string(b)
}

func formatNames(sb *strings.Builder, label string, first int, names []string) {
	for i, name := range names {
		fmt.Fprintf(sb, "  %s %2d: %q\n", label, first+i+1, name)
	}
}
