// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads kyobridge settings from an INI file on top of
// built-in defaults.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"
)

type SerialConfig struct {
	Port        string        `ini:"port"`
	BaudRate    int           `ini:"baud_rate"`
	RTS         bool          `ini:"rts"`
	ReadTimeout time.Duration `ini:"read_timeout"`
}

// WebSocketConfig selects a remote serial bridge instead of a local port.
// The password is never read from the file.
type WebSocketConfig struct {
	URL           string `ini:"url"`
	Username      string `ini:"username"`
	SkipSSLVerify bool   `ini:"no_ssl_verify"`
}

type TransportConfig struct {
	QueueSize  int           `ini:"queue_size"`
	Reconnect  bool          `ini:"reconnect"`
	MinBackoff time.Duration `ini:"min_backoff"`
	MaxBackoff time.Duration `ini:"max_backoff"`
}

type ProtocolConfig struct {
	BufferSize int `ini:"buffer_size"`
}

type PollerConfig struct {
	Interval        time.Duration `ini:"interval"`
	ResponseTimeout time.Duration `ini:"response_timeout"`
	Retries         int           `ini:"retries"`
	WideNames       bool          `ini:"wide_names"`
	Logger          bool          `ini:"logger"`
}

type HTTPConfig struct {
	Listen       string        `ini:"listen"`
	PushInterval time.Duration `ini:"push_interval"`
}

// JournalConfig enables the SQLite event journal when Path is set.
type JournalConfig struct {
	Path string `ini:"path"`
}

type LogConfig struct {
	Level string `ini:"level"`
	JSON  bool   `ini:"json"`
}

// Config is the complete bridge configuration.
type Config struct {
	Serial    SerialConfig    `ini:"serial"`
	WebSocket WebSocketConfig `ini:"websocket"`
	Transport TransportConfig `ini:"transport"`
	Protocol  ProtocolConfig  `ini:"protocol"`
	Poller    PollerConfig    `ini:"poller"`
	HTTP      HTTPConfig      `ini:"http"`
	Journal   JournalConfig   `ini:"journal"`
	Log       LogConfig       `ini:"log"`
}

// Default returns the settings used when no file is given.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			BaudRate:    9600,
			ReadTimeout: 100 * time.Millisecond,
		},
		Transport: TransportConfig{
			QueueSize:  64,
			Reconnect:  true,
			MinBackoff: 1 * time.Second,
			MaxBackoff: 30 * time.Second,
		},
		Protocol: ProtocolConfig{
			BufferSize: 1024,
		},
		Poller: PollerConfig{
			Interval:        100 * time.Millisecond,
			ResponseTimeout: 2 * time.Second,
			Retries:         2,
			Logger:          true,
		},
		HTTP: HTTPConfig{
			Listen:       ":8080",
			PushInterval: 1 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}

	f, err := ini.Load(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load ini")
	}
	if err := f.MapTo(c); err != nil {
		return nil, errors.Wrap(err, "failed to map ini struct")
	}
	if err := c.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %s", path)
	}

	log.WithFields(log.Fields{"path": path}).Debug("read and parse ini file")
	return c, nil
}

// Validate checks values that would stall or break the bridge.
func (c *Config) Validate() error {
	if c.Serial.BaudRate <= 0 {
		return errors.Errorf("serial.baud_rate must be positive, got %d", c.Serial.BaudRate)
	}
	if c.Poller.Interval <= 0 {
		return errors.Errorf("poller.interval must be positive, got %s", c.Poller.Interval)
	}
	if c.Poller.ResponseTimeout < 0 {
		return errors.Errorf("poller.response_timeout must not be negative, got %s", c.Poller.ResponseTimeout)
	}
	if c.Poller.Retries < 0 {
		return errors.Errorf("poller.retries must not be negative, got %d", c.Poller.Retries)
	}
	if c.Transport.QueueSize <= 0 {
		return errors.Errorf("transport.queue_size must be positive, got %d", c.Transport.QueueSize)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "failed to parse log level")
	}
	return nil
}

// SetupLogging applies the [log] section to the standard logger.
func (c *Config) SetupLogging() error {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return errors.Wrap(err, "failed to parse log level")
	}
	log.SetLevel(level)

	if c.Log.JSON {
		log.SetFormatter(&log.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	} else {
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339Nano,
		})
	}
	log.SetOutput(os.Stderr)
	return nil
}
