// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package panel

import (
	"math/rand"

	"github.com/Thermoquad/kyobridge/pkg/kyo"
)

// SetModel changes the identification response.
func (p *Panel) SetModel(m kyo.Model) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.model = m
}

// SetZoneName names zone (0-based).
func (p *Panel) SetZoneName(zone int, name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.zones[zone] = name
}

// SetPartitionName names partition (0-based).
func (p *Panel) SetPartitionName(partition int, name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.partitions[partition] = name
}

// SetZoneAlarm raises or clears a zone alarm. Raising also latches the
// alarm memory like the real panel does.
func (p *Panel) SetZoneAlarm(zone int, on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.ZoneAlarm[zone] = on
	if on {
		p.armed.ZoneAlarmMemory[zone] = true
	}
}

// SetZoneSabotage raises or clears a zone tamper.
func (p *Panel) SetZoneSabotage(zone int, on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.ZoneSabotage[zone] = on
	if on {
		p.armed.ZoneSabotageMemory[zone] = true
	}
}

// SetFaults replaces the system fault flags.
func (p *Panel) SetFaults(f kyo.Faults) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.Faults = f
}

// SetArmMode arms or disarms a partition (0-based).
func (p *Panel) SetArmMode(partition int, mode kyo.ArmMode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.armed.ArmedTotal[partition] = mode == kyo.ArmTotal
	p.armed.ArmedPartial[partition] = mode == kyo.ArmPartial
	p.armed.ArmedPartialInstant[partition] = mode == kyo.ArmPartialInstant
	p.armed.Disarmed[partition] = mode == kyo.ArmDisarmed
}

// SetSiren switches the siren.
func (p *Panel) SetSiren(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.armed.Siren = on
}

// WriteLogger stores raw event log bytes at offset.
func (p *Panel) WriteLogger(offset int, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	copy(p.logger[offset:], data)
}

// Mute stops (or resumes) answering cmd.
func (p *Panel) Mute(cmd kyo.Command, muted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.muted[cmd] = muted
}

// Corrupt makes responses to cmd carry a bad payload checksum.
func (p *Panel) Corrupt(cmd kyo.Command, corrupt bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.corrupt[cmd] = corrupt
}

// Wander applies one random change: a zone alarm toggles, a partition
// changes mode, or the siren follows the alarms.
func (p *Panel) Wander(rng *rand.Rand) {
	switch rng.Intn(3) {
	case 0:
		zone := rng.Intn(kyo.ZoneCount)
		p.mu.Lock()
		on := !p.status.ZoneAlarm[zone]
		p.mu.Unlock()
		p.SetZoneAlarm(zone, on)
	case 1:
		modes := []kyo.ArmMode{kyo.ArmDisarmed, kyo.ArmTotal, kyo.ArmPartial, kyo.ArmPartialInstant}
		p.SetArmMode(rng.Intn(kyo.PartitionCount), modes[rng.Intn(len(modes))])
	default:
		p.mu.Lock()
		alarm := false
		for _, a := range p.status.ZoneAlarm {
			alarm = alarm || a
		}
		p.armed.Siren = alarm
		p.mu.Unlock()
	}
}
