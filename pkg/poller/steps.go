// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package poller

import (
	"fmt"

	"github.com/Thermoquad/kyobridge/pkg/kyo"
)

// State is the position of the polling cycle.
type State int

const (
	StateStart State = iota
	StateModel
	StatePeripherals
	StateZoneNames
	StatePartitionNames
	StateStatus
	StateArmed
	StateLogger
)

var stateNames = map[State]string{
	StateStart:          "START",
	StateModel:          "MODEL",
	StatePeripherals:    "PERIPHERALS",
	StateZoneNames:      "ZONE_NAMES",
	StatePartitionNames: "PARTITION_NAMES",
	StateStatus:         "STATUS",
	StateArmed:          "ARMED",
	StateLogger:         "LOGGER",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STATE_%d", int(s))
}

// Step is one request of the cycle.
type Step struct {
	State State
	Cmd   kyo.Command
}

// Cycle builds the request sequence: model, peripherals, zone names,
// partition names, status, armed, then optionally the logger pages.
func Cycle(wideNames, logger bool) []Step {
	steps := []Step{
		{StateModel, kyo.CmdModel},
		{StatePeripherals, kyo.CmdPeripherals},
	}

	if wideNames {
		steps = append(steps,
			Step{StateZoneNames, kyo.CmdWideZoneNames},
			Step{StatePartitionNames, kyo.CmdWidePartitionNames},
		)
	} else {
		for b := 0; b < kyo.ZoneNameBlocks; b++ {
			steps = append(steps, Step{StateZoneNames, kyo.ZoneNamesCommand(b)})
		}
		for b := 0; b < kyo.PartitionNameBlocks; b++ {
			steps = append(steps, Step{StatePartitionNames, kyo.PartitionNamesCommand(b)})
		}
	}

	steps = append(steps,
		Step{StateStatus, kyo.CmdStatus},
		Step{StateArmed, kyo.CmdArmed},
	)

	if logger {
		for p := 0; p < kyo.LoggerPages; p++ {
			steps = append(steps, Step{StateLogger, kyo.LoggerCommand(p)})
		}
	}
	return steps
}
