// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Thermoquad/kyobridge/pkg/bridge"
	"github.com/Thermoquad/kyobridge/pkg/transport"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	statsServer    string
	statsListPorts bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show counters of a running bridge",
	Long: `Fetch /stats from a running "kyobridge serve" and print the transport,
protocol and poller counters.

With --list-ports the serial ports of this machine are listed instead.`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().StringVar(&statsServer, "server", "http://localhost:8080", "Base URL of the bridge")
	statsCmd.Flags().BoolVar(&statsListPorts, "list-ports", false, "List serial ports and exit")
}

func runStats(cmd *cobra.Command, args []string) error {
	if statsListPorts {
		ports, err := transport.ListPorts()
		if err != nil {
			return err
		}
		if len(ports) == 0 {
			fmt.Println("No serial ports found")
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return nil
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(statsServer + "/stats")
	if err != nil {
		return errors.Wrap(err, "failed to reach bridge")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("bridge answered %s", resp.Status)
	}

	var s bridge.Stats
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return errors.Wrap(err, "bad stats document")
	}

	fmt.Print(s.Protocol.String())
	fmt.Printf("Poller:  state=%s cycles=%d sent=%d completed=%d timeouts=%d skipped=%d send_failures=%d\n",
		s.Poller.State, s.Poller.Cycles, s.Poller.Sent, s.Poller.Completed, s.Poller.Timeouts, s.Poller.Skipped, s.Poller.SendFails)
	if t := s.Transport; t != nil {
		fmt.Printf("Link:    connected=%t in=%d out=%d dropped=%d reconnects=%d\n",
			t.Connected, t.BytesIn, t.BytesOut, t.Dropped, t.Reconnects)
	}
	fmt.Printf("Store:   version=%d\n", s.Store.Version)
	return nil
}
