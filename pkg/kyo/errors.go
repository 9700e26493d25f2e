// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package kyo

import "github.com/pkg/errors"

// Decode failures. Returned errors wrap one of these; compare with errors.Cause.
var (
	ErrSync            = errors.New("frame does not start with sync byte")
	ErrHeaderChecksum  = errors.New("header checksum mismatch")
	ErrPayloadChecksum = errors.New("payload checksum mismatch")
	ErrUnknownCommand  = errors.New("unknown command")
	ErrNotRequest      = errors.New("frame is not a request")
)

// IsProtocolError reports whether err is one of the decode failures above.
func IsProtocolError(err error) bool {
	switch errors.Cause(err) {
	case ErrSync, ErrHeaderChecksum, ErrPayloadChecksum, ErrUnknownCommand, ErrNotRequest:
		return true
	}
	return false
}
