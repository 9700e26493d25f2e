// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
)

// DefaultBaudRate is the only rate KYO panels speak.
const DefaultBaudRate = 9600

// SerialOpener opens a UART at 8N1 without hardware flow control.
type SerialOpener struct {
	Port        string
	BaudRate    int
	RTS         bool          // level driven on RTS after open
	ReadTimeout time.Duration // bounds each Read so Stop is observed
}

func (o SerialOpener) String() string {
	return fmt.Sprintf("Serial: %s @ %d baud", o.Port, o.BaudRate)
}

// Open opens and configures the serial port.
func (o SerialOpener) Open() (Conn, error) {
	baud := o.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(o.Port, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open serial port %s", o.Port)
	}

	if err := port.SetRTS(o.RTS); err != nil {
		port.Close()
		return nil, errors.Wrapf(err, "failed to set RTS on %s", o.Port)
	}
	if o.ReadTimeout > 0 {
		if err := port.SetReadTimeout(o.ReadTimeout); err != nil {
			port.Close()
			return nil, errors.Wrapf(err, "failed to set read timeout on %s", o.Port)
		}
	}

	return &serialConn{port: port}, nil
}

// serialConn wraps a serial port
type serialConn struct {
	port serial.Port
}

func (s *serialConn) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *serialConn) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *serialConn) Close() error {
	return s.port.Close()
}

// ListPorts returns the serial ports present on the host.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list serial ports")
	}
	return ports, nil
}
