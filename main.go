// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// kyobridge - KYO alarm panel serial bridge
//
// Polls a KYO panel over its serial protocol, mirrors the panel state and
// serves it over HTTP and WebSocket.

package main

import (
	"os"

	"github.com/Thermoquad/kyobridge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
