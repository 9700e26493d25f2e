// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package protocol

import (
	"fmt"
	"time"

	"github.com/Thermoquad/kyobridge/pkg/kyo"
	"github.com/pkg/errors"
)

// Statistics tracks frame statistics and error rates
type Statistics struct {
	StartTime     time.Time `json:"start_time" cbor:"start_time"`
	LastFrameTime time.Time `json:"last_frame_time" cbor:"last_frame_time"`

	// Counters
	ValidFrames           uint64 `json:"valid_frames" cbor:"valid_frames"`
	SyncErrors            uint64 `json:"sync_errors" cbor:"sync_errors"`
	HeaderChecksumErrors  uint64 `json:"header_checksum_errors" cbor:"header_checksum_errors"`
	PayloadChecksumErrors uint64 `json:"payload_checksum_errors" cbor:"payload_checksum_errors"`
	UnknownCommands       uint64 `json:"unknown_commands" cbor:"unknown_commands"`
	Overflows             uint64 `json:"overflows" cbor:"overflows"`
	DiscardedBytes        uint64 `json:"discarded_bytes" cbor:"discarded_bytes"`
	Anomalies             uint64 `json:"anomalies" cbor:"anomalies"`

	// Rates (calculated)
	FrameRate float64 `json:"frame_rate" cbor:"frame_rate"` // frames/sec
	ErrorRate float64 `json:"error_rate" cbor:"error_rate"` // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	return &Statistics{StartTime: time.Now()}
}

// Errors is the total of all decode failures.
func (s *Statistics) Errors() uint64 {
	return s.SyncErrors + s.HeaderChecksumErrors + s.PayloadChecksumErrors + s.UnknownCommands
}

// Update records one decode outcome. Incomplete frames are not recorded.
func (s *Statistics) Update(err error, validationErrors []kyo.ValidationError) {
	if err != nil {
		switch errors.Cause(err) {
		case kyo.ErrSync:
			s.SyncErrors++
		case kyo.ErrHeaderChecksum:
			s.HeaderChecksumErrors++
		case kyo.ErrPayloadChecksum:
			s.PayloadChecksumErrors++
		case kyo.ErrUnknownCommand:
			s.UnknownCommands++
		}
		return
	}

	s.ValidFrames++
	s.Anomalies += uint64(len(validationErrors))
	s.LastFrameTime = time.Now()
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.ValidFrames) / elapsed
		s.ErrorRate = float64(s.Errors()) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	total := s.ValidFrames + s.Errors()
	var validPercent float64
	if total > 0 {
		validPercent = float64(s.ValidFrames) * 100.0 / float64(total)
	}

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", time.Since(s.StartTime).Seconds())
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", s.ValidFrames, validPercent)

	if s.SyncErrors > 0 {
		result += fmt.Sprintf("Sync Errors:     %8d\n", s.SyncErrors)
	}
	if s.HeaderChecksumErrors > 0 {
		result += fmt.Sprintf("Header Checksum: %8d\n", s.HeaderChecksumErrors)
	}
	if s.PayloadChecksumErrors > 0 {
		result += fmt.Sprintf("Payload Checksum:%8d\n", s.PayloadChecksumErrors)
	}
	if s.UnknownCommands > 0 {
		result += fmt.Sprintf("Unknown Command: %8d\n", s.UnknownCommands)
	}
	if s.Overflows > 0 {
		result += fmt.Sprintf("Overflows:       %8d\n", s.Overflows)
	}
	if s.DiscardedBytes > 0 {
		result += fmt.Sprintf("Discarded Bytes: %8d\n", s.DiscardedBytes)
	}
	if s.Anomalies > 0 {
		result += fmt.Sprintf("Anomalies:       %8d\n", s.Anomalies)
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = Statistics{StartTime: time.Now()}
}
