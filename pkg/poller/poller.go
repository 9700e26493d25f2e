// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package poller drives the request cycle that keeps the panel mirror fresh.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/Thermoquad/kyobridge/pkg/kyo"
	log "github.com/sirupsen/logrus"
)

// Sender is the layer requests are written to.
type Sender interface {
	Send(kyo.Message) error
}

// Options configure a Machine.
type Options struct {
	// ResponseTimeout is how long to wait for the answer to a request.
	// Zero sends one request per tick without waiting.
	ResponseTimeout time.Duration
	// Retries is how often a timed out request is resent before it is skipped.
	Retries   int
	WideNames bool
	Logger    bool
	// Now overrides the clock.
	Now func() time.Time
}

// Stats counts poller activity.
type Stats struct {
	State     string `json:"state" cbor:"state"`
	Cycles    uint64 `json:"cycles" cbor:"cycles"`
	Sent      uint64 `json:"sent" cbor:"sent"`
	Completed uint64 `json:"completed" cbor:"completed"`
	Timeouts  uint64 `json:"timeouts" cbor:"timeouts"`
	Skipped   uint64 `json:"skipped" cbor:"skipped"`
	SendFails uint64 `json:"send_failures" cbor:"send_failures"`
}

type inflight struct {
	cmd      kyo.Command
	sentAt   time.Time
	attempts int
}

// Machine is the polling state machine. Advance is called once per tick
// from a single goroutine; Complete may be called from any goroutine.
type Machine struct {
	out   Sender
	opts  Options
	steps []Step
	log   *log.Entry

	mu      sync.Mutex
	started bool
	pos     int
	pending *inflight
	stats   Stats

	answers chan kyo.Command
}

// New creates a machine in StateStart.
func New(out Sender, opts Options) *Machine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	return &Machine{
		out:     out,
		opts:    opts,
		steps:   Cycle(opts.WideNames, opts.Logger),
		answers: make(chan kyo.Command, 16),
		log:     log.WithField("component", "poller"),
	}
}

// Init returns the machine to StateStart.
func (m *Machine) Init() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = false
	m.pos = 0
	m.pending = nil
	for len(m.answers) > 0 {
		<-m.answers
	}
}

// State reports the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state()
}

func (m *Machine) state() State {
	if !m.started {
		return StateStart
	}
	return m.steps[m.pos].State
}

// Stats returns a copy of the counters.
func (m *Machine) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats
	s.State = m.state().String()
	return s
}

// Complete reports that a response for cmd arrived. It never blocks.
func (m *Machine) Complete(cmd kyo.Command) {
	select {
	case m.answers <- cmd:
	default:
	}
}

// Advance performs one tick: the first tick only leaves StateStart, later
// ticks send the request of the current state and move on.
//
// With a response timeout the machine moves on only once the answer has been
// reported through Complete, or after the request has timed out Retries+1
// times. A send error is returned and the state does not change; a failed
// resend counts as an attempt.
func (m *Machine) Advance() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.collectAnswers()

	if !m.started {
		m.started = true
		return nil
	}

	if m.pending != nil {
		now := m.opts.Now()
		if now.Sub(m.pending.sentAt) < m.opts.ResponseTimeout {
			return nil
		}

		m.stats.Timeouts++
		fields := log.Fields{"cmd": m.pending.cmd, "attempt": m.pending.attempts}
		if m.pending.attempts <= m.opts.Retries {
			m.log.WithFields(fields).Warn("response timeout, retrying")
			return m.send(m.pending.attempts + 1)
		}

		m.log.WithFields(fields).Warn("response timeout, skipping")
		m.stats.Skipped++
		m.pending = nil
		m.next()
	}

	return m.send(1)
}

// send writes the request of the current step.
func (m *Machine) send(attempt int) error {
	cmd := m.steps[m.pos].Cmd
	if err := m.out.Send(&kyo.Request{Cmd: cmd}); err != nil {
		m.stats.SendFails++
		m.log.WithError(err).WithField("cmd", cmd).Warn("request failed")
		if m.pending != nil {
			// A failed resend still uses up the attempt and its timeout.
			m.pending.sentAt = m.opts.Now()
			m.pending.attempts = attempt
		}
		return err
	}
	m.stats.Sent++

	if m.opts.ResponseTimeout <= 0 {
		m.next()
		return nil
	}
	m.pending = &inflight{cmd: cmd, sentAt: m.opts.Now(), attempts: attempt}
	return nil
}

func (m *Machine) collectAnswers() {
	for {
		select {
		case cmd := <-m.answers:
			if m.pending != nil && m.pending.cmd == cmd {
				m.stats.Completed++
				m.pending = nil
				m.next()
			} else if m.opts.ResponseTimeout <= 0 {
				m.stats.Completed++
			}
		default:
			return
		}
	}
}

func (m *Machine) next() {
	m.pos++
	if m.pos == len(m.steps) {
		m.pos = 0
		m.stats.Cycles++
	}
}

// Run calls Advance every interval until ctx is cancelled.
func (m *Machine) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Advance()
		}
	}
}
