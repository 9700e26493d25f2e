// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package layer defines how the stacked layers of the bridge talk to each
// other. A layer sees its neighbours only through these capabilities: it
// starts, stops and sends through the layer below, and delivers to the layer
// above.
package layer

// Lower is the capability a layer exposes to the layer above it.
type Lower[T any] interface {
	Start() error
	Stop()
	Send(T) error
}

// Upper is the capability a layer exposes to the layer below it.
type Upper[T any] interface {
	Deliver(T) error
}

// UpperFunc adapts a function to Upper.
type UpperFunc[T any] func(T) error

func (f UpperFunc[T]) Deliver(v T) error {
	return f(v)
}
