// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package kyo

import "fmt"

// AnomalyType represents different types of payload anomalies
type AnomalyType int

const (
	AnomalyNonPrintableName AnomalyType = iota
	AnomalyInvalidFirmware
	AnomalyInconsistentArm
	AnomalyPeripheralState
)

// ValidationError describes a frame that passed its checksums but carries
// values a healthy panel would not send.
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateMessage returns the anomalies found in msg (empty if none).
func ValidateMessage(msg Message) []ValidationError {
	errors := []ValidationError{}

	switch m := msg.(type) {
	case *Model:
		errors = append(errors, validateName("model", m.Name)...)
		if m.FwMajor == 0 && m.FwMinor == 0 {
			errors = append(errors, ValidationError{
				Type:    AnomalyInvalidFirmware,
				Message: "MODEL firmware version is 0.00",
			})
		}
	case *ZoneNames:
		for i, n := range m.Names {
			errors = append(errors, validateName(fmt.Sprintf("zone %d", m.Block*NamesPerBlock+i+1), n)...)
		}
	case *PartitionNames:
		for i, n := range m.Names {
			errors = append(errors, validateName(fmt.Sprintf("partition %d", m.Block*NamesPerBlock+i+1), n)...)
		}
	case *WideZoneNames:
		for i, n := range m.Names {
			errors = append(errors, validateName(fmt.Sprintf("zone %d", i+1), n)...)
		}
	case *WidePartitionNames:
		for i, n := range m.Names {
			errors = append(errors, validateName(fmt.Sprintf("partition %d", i+1), n)...)
		}
	case *ArmedPartitions:
		for p := 0; p < PartitionCount; p++ {
			if m.Armed(p) && m.Disarmed[p] {
				errors = append(errors, ValidationError{
					Type:    AnomalyInconsistentArm,
					Message: fmt.Sprintf("ARMED partition %d reported both armed and disarmed", p+1),
					Details: map[string]interface{}{"partition": p + 1},
				})
			}
		}
	case *Peripherals:
		for i, r := range m.Readers {
			if !r.Present && (r.Alive || r.Sabotage) {
				errors = append(errors, peripheralAnomaly("reader", i, r))
			}
		}
		for i, k := range m.Keyboards {
			if !k.Present && (k.Alive || k.Sabotage) {
				errors = append(errors, peripheralAnomaly("keyboard", i, k))
			}
		}
	}

	return errors
}

func validateName(label, name string) []ValidationError {
	for i := 0; i < len(name); i++ {
		if c := name[i]; c < 0x20 || c > 0x7E {
			return []ValidationError{{
				Type:    AnomalyNonPrintableName,
				Message: fmt.Sprintf("%s name has non-printable byte 0x%02X at %d", label, c, i),
				Details: map[string]interface{}{"name": name, "offset": i},
			}}
		}
	}
	return nil
}

func peripheralAnomaly(kind string, i int, p Peripheral) ValidationError {
	return ValidationError{
		Type:    AnomalyPeripheralState,
		Message: fmt.Sprintf("%s %d reported without being present", kind, i+1),
		Details: map[string]interface{}{"alive": p.Alive, "sabotage": p.Sabotage},
	}
}
