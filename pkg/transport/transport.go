// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/Thermoquad/kyobridge/pkg/layer"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Config tunes the receive path and reconnection.
type Config struct {
	QueueSize      int           // chunks buffered between reader and upper layer
	ReadBufferSize int           // bytes requested per Read
	Reconnect      bool          // reopen the connection after it is lost
	MinBackoff     time.Duration // first reconnect delay
	MaxBackoff     time.Duration // reconnect delay cap
}

// DefaultConfig returns the settings used by the bridge.
func DefaultConfig() Config {
	return Config{
		QueueSize:      64,
		ReadBufferSize: 128,
		Reconnect:      true,
		MinBackoff:     1 * time.Second,
		MaxBackoff:     30 * time.Second,
	}
}

// Stats counts traffic through the transport.
type Stats struct {
	BytesIn    uint64 `json:"bytes_in" cbor:"bytes_in"`
	BytesOut   uint64 `json:"bytes_out" cbor:"bytes_out"`
	Dropped    uint64 `json:"dropped" cbor:"dropped"` // chunks lost to a full queue
	Reconnects uint64 `json:"reconnects" cbor:"reconnects"`
	Connected  bool   `json:"connected" cbor:"connected"`
}

// Layer is the bottom of the stack. A reader goroutine hands received chunks
// over a bounded queue to a delivery goroutine, which calls the upper layer.
type Layer struct {
	opener Opener
	cfg    Config
	upper  layer.Upper[[]byte]
	log    *log.Entry

	mu      sync.RWMutex
	conn    Conn
	done    chan struct{}
	queue   chan []byte
	wg      sync.WaitGroup
	writeMu sync.Mutex

	bytesIn    atomic.Uint64
	bytesOut   atomic.Uint64
	dropped    atomic.Uint64
	reconnects atomic.Uint64
}

var _ layer.Lower[[]byte] = (*Layer)(nil)

// New creates a transport that opens connections with opener.
func New(opener Opener, cfg Config) *Layer {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = DefaultConfig().ReadBufferSize
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = DefaultConfig().MinBackoff
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = cfg.MinBackoff
	}
	return &Layer{
		opener: opener,
		cfg:    cfg,
		log:    log.WithFields(log.Fields{"layer": "transport", "conn": describe(opener)}),
	}
}

// SetUpper installs the layer that receives incoming bytes. Call before Start.
func (l *Layer) SetUpper(u layer.Upper[[]byte]) {
	l.upper = u
}

// Start opens the connection and begins receiving. It does nothing while a
// session is running. Without Reconnect a lost connection ends the session
// and Start may be called again.
func (l *Layer) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.done != nil {
		return nil
	}

	conn, err := l.opener.Open()
	if err != nil {
		return err
	}

	l.conn = conn
	l.done = make(chan struct{})
	l.queue = make(chan []byte, l.cfg.QueueSize)

	l.wg.Add(2)
	go l.readLoop(l.done, l.queue)
	go l.deliverLoop(l.done, l.queue)

	l.log.Info("connected")
	return nil
}

// Stop closes the connection and waits for the goroutines to exit.
func (l *Layer) Stop() {
	l.mu.Lock()
	if l.done == nil {
		l.mu.Unlock()
		return
	}
	close(l.done)
	l.done = nil
	if l.conn != nil {
		l.conn.Close()
		l.conn = nil
	}
	l.mu.Unlock()

	l.wg.Wait()
	l.log.Info("stopped")
}

// Send writes the whole frame or fails with an error wrapping ErrWrite.
func (l *Layer) Send(data []byte) error {
	conn := l.getConn()
	if conn == nil {
		return errors.Wrap(ErrWrite, ErrNotStarted.Error())
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	for written := 0; written < len(data); {
		n, err := conn.Write(data[written:])
		if err != nil {
			return errors.Wrapf(ErrWrite, "%d of %d bytes written: %v", written, len(data), err)
		}
		if n == 0 {
			return errors.Wrapf(ErrWrite, "%d of %d bytes written: short write", written, len(data))
		}
		written += n
	}
	l.bytesOut.Add(uint64(len(data)))
	return nil
}

// Stats returns a snapshot of the traffic counters.
func (l *Layer) Stats() Stats {
	return Stats{
		BytesIn:    l.bytesIn.Load(),
		BytesOut:   l.bytesOut.Load(),
		Dropped:    l.dropped.Load(),
		Reconnects: l.reconnects.Load(),
		Connected:  l.getConn() != nil,
	}
}

func (l *Layer) getConn() Conn {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.conn
}

func (l *Layer) setConn(conn Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.conn = conn
}

// readLoop reads until the connection fails, then reconnects or exits.
func (l *Layer) readLoop(done <-chan struct{}, queue chan<- []byte) {
	defer l.wg.Done()

	buf := make([]byte, l.cfg.ReadBufferSize)
	for {
		select {
		case <-done:
			return
		default:
		}

		conn := l.getConn()
		if conn == nil {
			if !l.reconnect(done) {
				return
			}
			continue
		}

		n, err := conn.Read(buf)
		if n > 0 {
			l.bytesIn.Add(uint64(n))
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case queue <- chunk:
			default:
				l.dropped.Add(1)
				l.log.WithField("bytes", n).Warn("receive queue full, dropping chunk")
			}
		}
		if err == nil {
			continue
		}

		select {
		case <-done:
			return
		default:
		}

		l.log.WithError(err).Warn("connection lost")
		conn.Close()
		l.setConn(nil)
		if !l.cfg.Reconnect {
			l.release(done)
			return
		}
	}
}

// release ends the session started with done so that a later Start opens a
// new connection. It does nothing once Stop has run.
func (l *Layer) release(done <-chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done != nil && l.done == done {
		close(l.done)
		l.done = nil
		l.log.Info("disconnected")
	}
}

// reconnect attempts to reconnect with exponential backoff
// Returns false if shutdown was requested during reconnection
func (l *Layer) reconnect(done <-chan struct{}) bool {
	backoff := l.cfg.MinBackoff

	for {
		select {
		case <-done:
			return false
		case <-time.After(backoff):
		}

		conn, err := l.opener.Open()
		if err == nil {
			l.mu.Lock()
			select {
			case <-done:
				l.mu.Unlock()
				conn.Close()
				return false
			default:
			}
			l.conn = conn
			l.mu.Unlock()

			l.reconnects.Add(1)
			l.log.Info("reconnected")
			return true
		}

		l.log.WithError(err).WithField("backoff", backoff).Debug("reconnect failed")
		backoff *= 2
		if backoff > l.cfg.MaxBackoff {
			backoff = l.cfg.MaxBackoff
		}
	}
}

// deliverLoop hands queued chunks to the upper layer in arrival order.
func (l *Layer) deliverLoop(done <-chan struct{}, queue <-chan []byte) {
	defer l.wg.Done()

	for {
		select {
		case <-done:
			return
		case chunk := <-queue:
			if l.upper == nil {
				continue
			}
			if err := l.upper.Deliver(chunk); err != nil {
				l.log.WithError(err).Debug("upper layer rejected chunk")
			}
		}
	}
}
