// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package transport owns the byte channel to the panel. It forwards every
// received chunk to the layer above and writes outgoing frames whole.
package transport

import (
	"io"

	"github.com/pkg/errors"
)

// Conn provides a common interface for reading/writing bytes from serial or WebSocket
type Conn interface {
	io.Reader
	io.Writer
	io.Closer
}

// Opener creates a fresh connection. It is called again after the
// connection is lost.
type Opener interface {
	Open() (Conn, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func() (Conn, error)

func (f OpenerFunc) Open() (Conn, error) {
	return f()
}

var (
	// ErrWrite is wrapped around every failed Send.
	ErrWrite = errors.New("transport write failed")

	// ErrNotStarted is returned by Send before Start or after Stop.
	ErrNotStarted = errors.New("transport not started")

	// ErrConnectionClosed is returned when reading from a closed WebSocket connection
	ErrConnectionClosed = errors.New("websocket connection closed")
)

// describe returns a printable name for an opener.
func describe(o Opener) string {
	if s, ok := o.(interface{ String() string }); ok {
		return s.String()
	}
	return "custom"
}
