// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"github.com/Thermoquad/kyobridge/pkg/config"
	"github.com/Thermoquad/kyobridge/pkg/poller"
	"github.com/Thermoquad/kyobridge/pkg/transport"
	"github.com/pkg/errors"
)

// OpenerFromConfig selects a WebSocket bridge when a URL is configured and a
// serial port otherwise.
func OpenerFromConfig(c *config.Config, password string) (transport.Opener, error) {
	if c.WebSocket.URL != "" {
		return transport.WebSocketOpener{
			URL:           c.WebSocket.URL,
			Username:      c.WebSocket.Username,
			Password:      password,
			SkipSSLVerify: c.WebSocket.SkipSSLVerify,
		}, nil
	}
	if c.Serial.Port != "" {
		return transport.SerialOpener{
			Port:        c.Serial.Port,
			BaudRate:    c.Serial.BaudRate,
			RTS:         c.Serial.RTS,
			ReadTimeout: c.Serial.ReadTimeout,
		}, nil
	}
	return nil, errors.New("either a serial port or a WebSocket URL must be configured")
}

// TransportConfig maps the [transport] section.
func TransportConfig(c *config.Config) transport.Config {
	tc := transport.DefaultConfig()
	tc.QueueSize = c.Transport.QueueSize
	tc.Reconnect = c.Transport.Reconnect
	tc.MinBackoff = c.Transport.MinBackoff
	tc.MaxBackoff = c.Transport.MaxBackoff
	return tc
}

// OptionsFromConfig maps the [protocol] and [poller] sections.
func OptionsFromConfig(c *config.Config) Options {
	return Options{
		BufferSize:   c.Protocol.BufferSize,
		PollInterval: c.Poller.Interval,
		Poller: poller.Options{
			ResponseTimeout: c.Poller.ResponseTimeout,
			Retries:         c.Poller.Retries,
			WideNames:       c.Poller.WideNames,
			Logger:          c.Poller.Logger,
		},
	}
}

// FromConfig builds a bridge over a real transport.
func FromConfig(c *config.Config, password string) (*Bridge, error) {
	opener, err := OpenerFromConfig(c, password)
	if err != nil {
		return nil, err
	}
	return New(transport.New(opener, TransportConfig(c)), OptionsFromConfig(c)), nil
}
