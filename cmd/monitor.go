// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/Thermoquad/kyobridge/pkg/kyo"
	"github.com/Thermoquad/kyobridge/pkg/protocol"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var monitorShowAll bool

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live terminal view of the panel",
	Long: `Poll the panel and show its mirrored state in a terminal UI: zones,
partitions, faults, link statistics and a scrolling log of state changes
and protocol errors.

Use the arrow keys or PgUp/PgDn to scroll the log, 'q' to quit.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&monitorShowAll, "show-all", false, "Log every valid frame, not only changes and errors")
}

// monitorTap forwards decode outcomes to the UI. p.Send blocks until the
// event loop takes the message.
func monitorTap(p *tea.Program) protocol.Tap {
	return func(frame []byte, msg kyo.Message, err error) {
		switch {
		case err != nil:
			p.Send(frameErrorMsg{err: err, discarded: len(frame)})
			return
		case monitorShowAll:
			p.Send(frameMsg{cmd: msg.Command()})
		}
		for _, v := range kyo.ValidateMessage(msg) {
			p.Send(anomalyMsg(v))
		}
	}
}

func runMonitor(cmd *cobra.Command, args []string) error {
	b, opener, err := newBridge()
	if err != nil {
		return err
	}

	// The UI owns the terminal
	log.SetLevel(log.ErrorLevel)

	m := newMonitorModel(fmt.Sprint(opener), b)
	p := tea.NewProgram(m, tea.WithAltScreen())

	b.Protocol.SetTap(monitorTap(p))

	events, cancel := b.Store.Subscribe(64)
	defer cancel()
	go func() {
		for ev := range events {
			p.Send(storeEventMsg(ev))
		}
	}()

	ctx, stop := signalContext()
	defer stop()

	if err := b.Start(); err != nil {
		return errors.Wrapf(err, "failed to connect to %v", opener)
	}
	defer b.Stop()
	go b.Run(ctx)

	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		return errors.Wrap(err, "TUI error")
	}
	stop()
	return nil
}
