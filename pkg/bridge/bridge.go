// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package bridge assembles the layer stack: transport, protocol, and the
// dispatcher that feeds the store and the poller. The Bridge value is the
// only owner of these parts.
package bridge

import (
	"context"
	"time"

	"github.com/Thermoquad/kyobridge/pkg/kyo"
	"github.com/Thermoquad/kyobridge/pkg/layer"
	"github.com/Thermoquad/kyobridge/pkg/poller"
	"github.com/Thermoquad/kyobridge/pkg/protocol"
	"github.com/Thermoquad/kyobridge/pkg/store"
	"github.com/Thermoquad/kyobridge/pkg/transport"
	log "github.com/sirupsen/logrus"
)

// Link is a bottom layer the bridge can stack on.
type Link interface {
	layer.Lower[[]byte]
	SetUpper(layer.Upper[[]byte])
}

// Options configure a Bridge.
type Options struct {
	BufferSize   int
	PollInterval time.Duration
	Poller       poller.Options
}

// Stats combines the counters of every layer.
type Stats struct {
	Transport *transport.Stats    `json:"transport,omitempty" cbor:"transport,omitempty"`
	Protocol  protocol.Statistics `json:"protocol" cbor:"protocol"`
	Poller    poller.Stats        `json:"poller" cbor:"poller"`
	Store     store.Meta          `json:"store" cbor:"store"`
}

// Bridge is the composition root.
type Bridge struct {
	Link     Link
	Protocol *protocol.Layer
	Poller   *poller.Machine
	Store    *store.Store

	interval time.Duration
}

// dispatcher is the top of the stack. Every validated message is merged into
// the store and reported to the poller.
type dispatcher struct {
	store  *store.Store
	poller *poller.Machine
}

func (d *dispatcher) Deliver(msg kyo.Message) error {
	d.store.Apply(msg)
	d.poller.Complete(msg.Command())
	return nil
}

// New stacks the protocol layer, store and poller on link.
func New(link Link, opts Options) *Bridge {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 100 * time.Millisecond
	}

	proto := protocol.New(link, opts.BufferSize)
	link.SetUpper(proto)

	b := &Bridge{
		Link:     link,
		Protocol: proto,
		Poller:   poller.New(proto, opts.Poller),
		Store:    store.New(),
		interval: opts.PollInterval,
	}
	proto.SetUpper(&dispatcher{store: b.Store, poller: b.Poller})
	return b
}

// Start brings the layers up from the bottom.
func (b *Bridge) Start() error {
	b.Poller.Init()
	return b.Protocol.Start()
}

// Stop takes the layers down.
func (b *Bridge) Stop() {
	b.Protocol.Stop()
}

// Run polls the panel until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	log.WithField("interval", b.interval).Info("polling started")
	err := b.Poller.Run(ctx, b.interval)
	log.Info("polling stopped")
	return err
}

// Stats collects counters from every layer.
func (b *Bridge) Stats() Stats {
	s := Stats{
		Protocol: b.Protocol.Stats(),
		Poller:   b.Poller.Stats(),
		Store:    b.Store.Meta(),
	}
	if t, ok := b.Link.(*transport.Layer); ok {
		ts := t.Stats()
		s.Transport = &ts
	}
	return s
}
