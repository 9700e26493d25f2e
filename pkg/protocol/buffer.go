// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package protocol

import "bytes"

// Buffer is a fixed-capacity reassembly buffer. Bytes are appended at the
// end and consumed from the front.
type Buffer struct {
	data []byte
	n    int
}

// NewBuffer allocates a buffer holding up to capacity bytes.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{data: make([]byte, capacity)}
}

// Append copies as much of p as fits and returns the number of bytes taken.
func (b *Buffer) Append(p []byte) int {
	n := copy(b.data[b.n:], p)
	b.n += n
	return n
}

// Bytes returns the buffered bytes. The slice is valid until the next
// Append, Consume or Reset.
func (b *Buffer) Bytes() []byte {
	return b.data[:b.n]
}

// Consume removes the first n bytes.
func (b *Buffer) Consume(n int) {
	if n >= b.n {
		b.n = 0
		return
	}
	copy(b.data, b.data[n:b.n])
	b.n -= n
}

// Find returns the index of the first v, or -1.
func (b *Buffer) Find(v byte) int {
	return bytes.IndexByte(b.data[:b.n], v)
}

func (b *Buffer) Len() int  { return b.n }
func (b *Buffer) Cap() int  { return len(b.data) }
func (b *Buffer) Free() int { return len(b.data) - b.n }

// Reset empties the buffer.
func (b *Buffer) Reset() {
	b.n = 0
}
