// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package kyo

import "strings"

// Multi-byte bitmaps are sent highest byte first; inside a byte the lowest
// bit is the lowest item. Item i therefore lives in src[len(src)-1-i/8], bit i%8.

func unpackBits(src []byte, dst []bool) {
	n := len(src)
	for i := range dst {
		dst[i] = src[n-1-i/8]&(1<<(i%8)) != 0
	}
}

func packBits(src []bool, dst []byte) {
	n := len(dst)
	for i := range dst {
		dst[i] = 0
	}
	for i, set := range src {
		if set {
			dst[n-1-i/8] |= 1 << (i % 8)
		}
	}
}

func flag(b byte, mask byte) bool {
	return b&mask != 0
}

func setFlag(b *byte, mask byte, set bool) {
	if set {
		*b |= mask
	}
}

// trimName strips the space and NUL padding the panel uses for text fields.
func trimName(b []byte) string {
	return strings.TrimRight(string(b), " \x00")
}

// padName writes s into dst, space padded and truncated to len(dst).
func padName(dst []byte, s string) {
	n := copy(dst, s)
	for i := n; i < len(dst); i++ {
		dst[i] = ' '
	}
}

func digit(b byte) uint8 {
	if b < '0' || b > '9' {
		return 0
	}
	return b - '0'
}
