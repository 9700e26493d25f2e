// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"math/rand"
	"time"

	"github.com/Thermoquad/kyobridge/pkg/kyo"
	"github.com/Thermoquad/kyobridge/pkg/panel"
	"github.com/Thermoquad/kyobridge/pkg/transport"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	simWander  time.Duration
	simSeed    int64
	simMute    []string
	simCorrupt bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Act as a panel on a serial port",
	Long: `Answer KYO requests on --port as a simulated KYO32 panel would.

Connect the port to a bridge through a null-modem cable or a virtual pair
(socat) to exercise the bridge without hardware. With --wander the simulated
state changes at random: zone alarms toggle, partitions change mode and the
siren follows the alarms.

Commands listed in --mute are never answered, which lets the poller's
timeout and retry handling be observed.`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().DurationVar(&simWander, "wander", 0, "Interval between random state changes (0 disables)")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 0, "Random seed (0 uses the clock)")
	simulateCmd.Flags().StringSliceVar(&simMute, "mute", nil, "Commands to leave unanswered (model, status, armed, peripherals)")
	simulateCmd.Flags().BoolVar(&simCorrupt, "corrupt-armed", false, "Answer armed requests with a bad payload checksum")
}

var mutableCommands = map[string]kyo.Command{
	"model":       kyo.CmdModel,
	"status":      kyo.CmdStatus,
	"armed":       kyo.CmdArmed,
	"peripherals": kyo.CmdPeripherals,
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if cfg.Serial.Port == "" {
		return errors.New("simulate needs --port")
	}

	p := panel.New()
	for _, name := range simMute {
		c, ok := mutableCommands[name]
		if !ok {
			return errors.Errorf("unknown command %q", name)
		}
		p.Mute(c, true)
	}
	p.Corrupt(kyo.CmdArmed, simCorrupt)

	opener := transport.SerialOpener{
		Port:        cfg.Serial.Port,
		BaudRate:    cfg.Serial.BaudRate,
		RTS:         cfg.Serial.RTS,
		ReadTimeout: cfg.Serial.ReadTimeout,
	}
	conn, err := opener.Open()
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, stop := signalContext()
	defer stop()

	if simWander > 0 {
		seed := simSeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		go wander(ctx, p, rand.New(rand.NewSource(seed)), simWander)
	}

	log.WithField("port", opener).Info("simulated panel ready")
	err = p.Serve(ctx, conn)
	log.WithField("answered", p.Answered()).Info("simulated panel stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func wander(ctx context.Context, p *panel.Panel, rng *rand.Rand, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Wander(rng)
		}
	}
}
