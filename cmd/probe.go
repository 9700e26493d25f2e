// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/kyobridge/pkg/bridge"
	"github.com/Thermoquad/kyobridge/pkg/kyo"
	"github.com/Thermoquad/kyobridge/pkg/layer"
	"github.com/Thermoquad/kyobridge/pkg/protocol"
	"github.com/Thermoquad/kyobridge/pkg/transport"
	"github.com/spf13/cobra"
)

var probeTimeout int

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test the connection by asking the panel for its model",
	Long: `Send a model request and wait for a valid answer until timeout.

Garbage and frames that fail their checksum are ignored; only a complete,
valid model response counts.

Exit codes:
  0 - Panel answered before timeout
  1 - Timeout reached without a valid answer
  2 - Connection error`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeTimeout, "timeout", 10, "Timeout in seconds to wait for an answer")
}

func runProbe(cmd *cobra.Command, args []string) error {
	opener, err := openConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}

	tc := bridge.TransportConfig(cfg)
	tc.Reconnect = false
	link := transport.New(opener, tc)
	proto := protocol.New(link, cfg.Protocol.BufferSize)
	link.SetUpper(proto)

	models := make(chan *kyo.Model, 1)
	proto.SetUpper(layer.UpperFunc[kyo.Message](func(msg kyo.Message) error {
		if m, ok := msg.(*kyo.Model); ok {
			select {
			case models <- m:
			default:
			}
		}
		return nil
	}))

	fmt.Printf("kyobridge - Probe\n")
	fmt.Printf("Connection: %v\n", opener)
	fmt.Printf("Timeout: %d seconds\n\n", probeTimeout)

	if err := proto.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer proto.Stop()

	deadline := time.After(time.Duration(probeTimeout) * time.Second)
	retry := time.NewTicker(time.Second)
	defer retry.Stop()

	for {
		if err := proto.Send(&kyo.Request{Cmd: kyo.CmdModel}); err != nil {
			fmt.Fprintf(os.Stderr, "Write error: %v\n", err)
			proto.Stop()
			os.Exit(2)
		}

		select {
		case m := <-models:
			stats := proto.Stats()
			fmt.Printf("SUCCESS: Panel answered\n")
			fmt.Printf("  Model: %s\n", m.Name)
			fmt.Printf("  Firmware: %d.%02d\n", m.FwMajor, m.FwMinor)
			if stats.DiscardedBytes > 0 {
				fmt.Printf("  (discarded %d bytes before the answer)\n", stats.DiscardedBytes)
			}
			proto.Stop()
			os.Exit(0)

		case <-deadline:
			fmt.Fprintf(os.Stderr, "TIMEOUT: No valid answer within %d seconds\n", probeTimeout)
			proto.Stop()
			os.Exit(1)

		case <-retry.C:
		}
	}
}
