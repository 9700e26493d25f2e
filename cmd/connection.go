// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Thermoquad/kyobridge/pkg/bridge"
	"github.com/Thermoquad/kyobridge/pkg/transport"
	"github.com/pkg/errors"
	"golang.org/x/term"
)

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	if pw := os.Getenv("KYOBRIDGE_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Not a terminal, read a plain line
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", errors.Wrap(err, "failed to read password")
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// openConnection picks the transport from the merged configuration. The
// password is only asked for when a WebSocket username is set.
func openConnection() (transport.Opener, error) {
	password := ""
	if cfg.WebSocket.URL != "" && cfg.WebSocket.Username != "" {
		var err error
		password, err = GetPassword()
		if err != nil {
			return nil, err
		}
	}
	return bridge.OpenerFromConfig(cfg, password)
}

// newBridge stacks a bridge on the configured transport.
func newBridge() (*bridge.Bridge, transport.Opener, error) {
	opener, err := openConnection()
	if err != nil {
		return nil, nil, err
	}
	link := transport.New(opener, bridge.TransportConfig(cfg))
	return bridge.New(link, bridge.OptionsFromConfig(cfg)), opener, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
