// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"sync"

	"github.com/Thermoquad/kyobridge/pkg/layer"
	"github.com/pkg/errors"
)

// Mock is an in-memory transport for host-side testing. Sent frames are
// logged; Inject and Responder feed bytes to the upper layer synchronously.
type Mock struct {
	mu         sync.Mutex
	upper      layer.Upper[[]byte]
	started    bool
	txLog      [][]byte
	failWrites error

	// Responder, when set, is called for every sent frame. A non-nil
	// result is delivered upward as if the panel had answered.
	Responder func(frame []byte) []byte
}

var _ layer.Lower[[]byte] = (*Mock)(nil)

// NewMock creates a stopped mock with no responder.
func NewMock() *Mock { return &Mock{} }

func (m *Mock) SetUpper(u layer.Upper[[]byte]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upper = u
}

func (m *Mock) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = true
	return nil
}

func (m *Mock) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = false
}

// Send records data and hands it to the responder, whose reply is
// delivered before Send returns.
func (m *Mock) Send(data []byte) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return errors.Wrap(ErrWrite, ErrNotStarted.Error())
	}
	if m.failWrites != nil {
		err := m.failWrites
		m.mu.Unlock()
		return errors.Wrap(ErrWrite, err.Error())
	}
	frame := make([]byte, len(data))
	copy(frame, data)
	m.txLog = append(m.txLog, frame)
	responder := m.Responder
	m.mu.Unlock()

	if responder != nil {
		if resp := responder(frame); resp != nil {
			m.Inject(resp)
		}
	}
	return nil
}

// Inject delivers data to the upper layer as received bytes.
func (m *Mock) Inject(data []byte) error {
	m.mu.Lock()
	upper := m.upper
	m.mu.Unlock()
	if upper == nil {
		return nil
	}
	chunk := make([]byte, len(data))
	copy(chunk, data)
	return upper.Deliver(chunk)
}

// FailWrites makes every following Send fail with err; nil restores writes.
func (m *Mock) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrites = err
}

// TxLog returns copies of every frame sent so far.
func (m *Mock) TxLog() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.txLog))
	for i, f := range m.txLog {
		out[i] = append([]byte(nil), f...)
	}
	return out
}

// ResetTxLog forgets the frames sent so far.
func (m *Mock) ResetTxLog() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txLog = nil
}
