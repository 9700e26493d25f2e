// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package protocol turns the raw byte stream from the transport into
// validated KYO messages and turns outgoing messages into frames.
package protocol

import (
	"sync"

	"github.com/Thermoquad/kyobridge/pkg/kyo"
	"github.com/Thermoquad/kyobridge/pkg/layer"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultBufferSize leaves room for a maximum frame plus the start of the next.
const DefaultBufferSize = 1024

// Tap observes every decode outcome. frame holds the bytes the outcome
// covers: the whole frame on success, the discarded bytes on error.
type Tap func(frame []byte, msg kyo.Message, err error)

// Layer reassembles frames from transport bytes. It implements
// layer.Upper[[]byte] towards the transport and layer.Lower[kyo.Message]
// towards the application.
type Layer struct {
	lower layer.Lower[[]byte]
	upper layer.Upper[kyo.Message]
	log   *log.Entry

	// deliverMu keeps callbacks in stream order across Deliver calls.
	// mu guards the buffer and counters and is never held during a
	// callback, so Stats may be called from inside the tap or upper layer.
	deliverMu sync.Mutex

	mu      sync.Mutex
	buf     *Buffer
	stats   *Statistics
	tap     Tap
	pending []outcome
}

// outcome is one decode result waiting to be handed to the tap and the
// upper layer.
type outcome struct {
	frame []byte
	msg   kyo.Message
	err   error
}

var (
	_ layer.Upper[[]byte]      = (*Layer)(nil)
	_ layer.Lower[kyo.Message] = (*Layer)(nil)
)

// New creates a protocol layer on top of lower. bufferSize is raised to the
// largest frame if smaller; zero selects DefaultBufferSize.
func New(lower layer.Lower[[]byte], bufferSize int) *Layer {
	if bufferSize == 0 {
		bufferSize = DefaultBufferSize
	}
	if bufferSize < kyo.MaxFrameSize {
		bufferSize = kyo.MaxFrameSize
	}
	return &Layer{
		lower: lower,
		buf:   NewBuffer(bufferSize),
		stats: NewStatistics(),
		log:   log.WithField("layer", "protocol"),
	}
}

// SetUpper installs the receiver of decoded messages. Call before Start.
func (l *Layer) SetUpper(u layer.Upper[kyo.Message]) {
	l.upper = u
}

// SetTap installs an observer of decode outcomes.
func (l *Layer) SetTap(t Tap) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tap = t
}

// Start clears the reassembly buffer and starts the layer below.
func (l *Layer) Start() error {
	l.mu.Lock()
	l.buf.Reset()
	l.mu.Unlock()
	return l.lower.Start()
}

// Stop stops the layer below and drops any partial frame.
func (l *Layer) Stop() {
	l.lower.Stop()
	l.mu.Lock()
	l.buf.Reset()
	l.mu.Unlock()
}

// Send encodes msg and hands the frame to the layer below.
func (l *Layer) Send(msg kyo.Message) error {
	if req, ok := msg.(*kyo.Request); ok {
		frame, err := kyo.EncodeRequest(req.Cmd)
		if err != nil {
			return err
		}
		return l.lower.Send(frame[:])
	}

	frame, err := kyo.Marshal(msg)
	if err != nil {
		return err
	}
	return l.lower.Send(frame)
}

// Stats returns a copy of the decode statistics with rates filled in.
func (l *Layer) Stats() Statistics {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := *l.stats
	s.CalculateRates()
	return s
}

// ResetStats zeroes the decode statistics.
func (l *Layer) ResetStats() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stats.Reset()
}

// Deliver accepts received bytes from the transport. Decoding happens under
// the layer lock; the tap and the upper layer are called after it is
// released.
func (l *Layer) Deliver(data []byte) error {
	l.deliverMu.Lock()
	defer l.deliverMu.Unlock()

	l.mu.Lock()
	for len(data) > 0 {
		n := l.buf.Append(data)
		if n == 0 {
			// Not reachable with a buffer of at least kyo.MaxFrameSize:
			// after process it holds less than one frame.
			l.stats.Overflows++
			l.stats.DiscardedBytes += uint64(l.buf.Len())
			l.log.WithField("bytes", l.buf.Len()).Warn("reassembly buffer overflow, discarding")
			l.buf.Reset()
			continue
		}
		data = data[n:]
		l.process()
	}
	results := l.pending
	l.pending = nil
	tap := l.tap
	l.mu.Unlock()

	for _, r := range results {
		if tap != nil {
			tap(r.frame, r.msg, r.err)
		}
		if r.msg == nil || l.upper == nil {
			continue
		}
		if err := l.upper.Deliver(r.msg); err != nil {
			l.log.WithError(err).WithField("cmd", r.msg.Command()).Warn("delivery failed")
		}
	}
	return nil
}

// process decodes as many frames as the buffer holds.
func (l *Layer) process() {
	for l.buf.Len() > 0 {
		i := l.buf.Find(kyo.SyncByte)
		if i < 0 {
			l.discard(l.buf.Len())
			return
		}
		if i > 0 {
			l.discard(i)
		}

		msg, n, err := kyo.Decode(l.buf.Bytes())
		switch {
		case err != nil:
			l.handleError(err)
		case msg == nil:
			return
		default:
			l.stats.Update(nil, kyo.ValidateMessage(msg))
			l.observe(l.buf.Bytes()[:n], msg, nil)
			l.buf.Consume(n)
		}
	}
}

// handleError recovers from a decode failure. An unknown command costs only
// its sync byte so a real frame starting inside it is still found; a
// checksum failure empties the buffer.
func (l *Layer) handleError(err error) {
	l.stats.Update(err, nil)
	fields := log.Fields{"buffered": l.buf.Len(), "head": kyo.FormatFrame(head(l.buf.Bytes()))}

	if errors.Cause(err) == kyo.ErrUnknownCommand {
		l.log.WithFields(fields).WithError(err).Warn("skipping unknown command")
		l.observe(l.buf.Bytes()[:1], nil, err)
		l.buf.Consume(1)
		l.stats.DiscardedBytes++
		return
	}

	l.log.WithFields(fields).WithError(err).Warn("discarding corrupt frame")
	l.observe(l.buf.Bytes(), nil, err)
	l.stats.DiscardedBytes += uint64(l.buf.Len())
	l.buf.Reset()
}

// discard drops n leading bytes that cannot start a frame.
func (l *Layer) discard(n int) {
	l.stats.DiscardedBytes += uint64(n)
	l.log.WithField("bytes", n).Debug("discarding noise before sync")
	l.buf.Consume(n)
}

// observe queues an outcome for delivery once the lock is released. The
// frame bytes are copied because the buffer is reused.
func (l *Layer) observe(frame []byte, msg kyo.Message, err error) {
	if l.tap == nil && msg == nil {
		return
	}
	l.pending = append(l.pending, outcome{frame: append([]byte(nil), frame...), msg: msg, err: err})
}

func head(b []byte) []byte {
	if len(b) > kyo.HeaderSize {
		return b[:kyo.HeaderSize]
	}
	return b
}
