// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package panel simulates the panel side of the KYO protocol. It answers
// request frames from a scripted state and is used by the simulate command
// and by tests of the bridge.
package panel

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/Thermoquad/kyobridge/pkg/kyo"
	"github.com/Thermoquad/kyobridge/pkg/protocol"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Panel is a simulated KYO control panel.
type Panel struct {
	mu          sync.Mutex
	model       kyo.Model
	peripherals kyo.Peripherals
	zones       [kyo.ZoneCount]string
	partitions  [kyo.PartitionCount]string
	status      kyo.StatusAndFaults
	armed       kyo.ArmedPartitions
	logger      [kyo.LoggerSize]byte
	muted       map[kyo.Command]bool
	corrupt     map[kyo.Command]bool
	answered    uint64
}

// New creates a KYO32 with default names, all partitions disarmed and one
// keyboard present.
func New() *Panel {
	p := &Panel{
		model:   kyo.Model{Name: "KYO32", FwMajor: 2, FwMinor: 12},
		muted:   make(map[kyo.Command]bool),
		corrupt: make(map[kyo.Command]bool),
	}
	for i := range p.zones {
		p.zones[i] = fmt.Sprintf("Zone %d", i+1)
		p.armed.ZoneInclusion[i] = true
	}
	for i := range p.partitions {
		p.partitions[i] = fmt.Sprintf("Area %d", i+1)
		p.armed.Disarmed[i] = true
	}
	p.peripherals.Keyboards[0] = kyo.Peripheral{Present: true, Alive: true}
	return p
}

// Respond returns the response frame for cmd, or nil if the panel is muted
// for it.
func (p *Panel) Respond(cmd kyo.Command) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.muted[cmd] {
		return nil, nil
	}
	msg, err := p.message(cmd)
	if err != nil {
		return nil, err
	}
	frame, err := kyo.Marshal(msg)
	if err != nil {
		return nil, err
	}
	if p.corrupt[cmd] {
		frame[len(frame)-1] ^= 0xFF
	}
	p.answered++
	return frame, nil
}

func (p *Panel) message(cmd kyo.Command) (kyo.Message, error) {
	e, ok := kyo.Lookup(cmd)
	if !ok {
		return nil, errors.Wrapf(kyo.ErrUnknownCommand, "command 0x%08X", uint32(cmd))
	}

	switch e.Kind {
	case kyo.KindModel:
		m := p.model
		return &m, nil
	case kyo.KindPeripherals:
		m := p.peripherals
		return &m, nil
	case kyo.KindZoneNames:
		m := &kyo.ZoneNames{Block: e.Index}
		copy(m.Names[:], p.zones[e.Index*kyo.NamesPerBlock:])
		return m, nil
	case kyo.KindPartitionNames:
		m := &kyo.PartitionNames{Block: e.Index}
		copy(m.Names[:], p.partitions[e.Index*kyo.NamesPerBlock:])
		return m, nil
	case kyo.KindWideZoneNames:
		return &kyo.WideZoneNames{Names: p.zones}, nil
	case kyo.KindWidePartitionNames:
		return &kyo.WidePartitionNames{Names: p.partitions}, nil
	case kyo.KindStatus:
		m := p.status
		return &m, nil
	case kyo.KindArmed:
		m := p.armed
		return &m, nil
	case kyo.KindLogger:
		m := &kyo.LoggerPage{Page: e.Index}
		copy(m.Data[:], p.logger[e.Index*kyo.LoggerPageSize:])
		return m, nil
	}
	return nil, errors.Errorf("no response for %s", cmd)
}

// HandleFrame answers one request frame. It fits transport.Mock.Responder.
func (p *Panel) HandleFrame(frame []byte) []byte {
	req, _, err := kyo.DecodeRequest(frame)
	if err != nil || req == nil {
		return nil
	}
	resp, err := p.Respond(req.Cmd)
	if err != nil {
		return nil
	}
	return resp
}

// Serve answers requests read from rw until ctx is cancelled or rw fails.
func (p *Panel) Serve(ctx context.Context, rw io.ReadWriter) error {
	logger := log.WithField("component", "panel")
	buf := protocol.NewBuffer(256)
	chunk := make([]byte, 64)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := rw.Read(chunk)
		if err != nil {
			return err
		}

		for data := chunk[:n]; len(data) > 0; {
			taken := buf.Append(data)
			data = data[taken:]
			if taken == 0 {
				buf.Reset()
				continue
			}

			for buf.Len() > 0 {
				if i := buf.Find(kyo.SyncByte); i != 0 {
					if i < 0 {
						buf.Reset()
						break
					}
					buf.Consume(i)
				}

				req, used, err := kyo.DecodeRequest(buf.Bytes())
				if err != nil {
					logger.WithError(err).Debug("bad request")
					buf.Consume(1)
					continue
				}
				if req == nil {
					break
				}
				buf.Consume(used)

				resp, err := p.Respond(req.Cmd)
				if err != nil || resp == nil {
					continue
				}
				if _, err := rw.Write(resp); err != nil {
					return err
				}
				logger.WithField("cmd", req.Cmd).Debug("answered")
			}
		}
	}
}

// Answered reports how many requests got a response.
func (p *Panel) Answered() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.answered
}
