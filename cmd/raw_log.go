// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/Thermoquad/kyobridge/pkg/kyo"
	"github.com/spf13/cobra"
)

var (
	rawHex     bool
	rawPassive bool
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display decoded frames in human-readable format",
	Long: `Poll the panel and print every frame as it is decoded, with its timestamp,
command and payload fields. Discarded bytes and checksum failures are printed
as they happen, followed by anomalies found in otherwise valid frames.

With --passive no requests are sent; use this to watch a bus that another
master is already polling.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawHex, "hex", false, "Also print the raw frame bytes")
	rawLogCmd.Flags().BoolVar(&rawPassive, "passive", false, "Only listen, never send requests")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	b, opener, err := newBridge()
	if err != nil {
		return err
	}

	fmt.Printf("kyobridge - Raw Frame Log\n")
	fmt.Printf("Connection: %v\n", opener)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	b.Protocol.SetTap(func(frame []byte, msg kyo.Message, err error) {
		now := time.Now()
		if err != nil {
			fmt.Printf("[%s] \033[1;31mERROR:\033[0m %v\n", now.Format("15:04:05.000"), err)
			fmt.Printf("  discarded: %s\n\n", kyo.FormatFrame(frame))
			return
		}

		fmt.Print(kyo.FormatMessage(now, msg))
		if rawHex {
			fmt.Printf("  raw: %s\n", kyo.FormatFrame(frame))
		}
		for _, v := range kyo.ValidateMessage(msg) {
			fmt.Printf("  \033[1;33mANOMALY:\033[0m %s\n", v.Message)
		}
		fmt.Println()
	})

	ctx, stop := signalContext()
	defer stop()

	if err := b.Start(); err != nil {
		return err
	}
	defer b.Stop()

	if rawPassive {
		<-ctx.Done()
	} else {
		b.Run(ctx)
	}

	stats := b.Protocol.Stats()
	fmt.Print("\n" + stats.String())
	return nil
}
