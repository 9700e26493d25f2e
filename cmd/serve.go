// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/Thermoquad/kyobridge/pkg/api"
	"github.com/Thermoquad/kyobridge/pkg/journal"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	listenAddr  string
	journalPath string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll the panel and serve its state over HTTP",
	Long: `Run the bridge: poll the panel continuously, mirror its state and serve it.

Endpoints:
  GET /status              full state (JSON, or CBOR with ?format=cbor)
  GET /status/zones        zone records
  GET /status/partitions   partition records
  GET /logger              raw event logger buffer
  GET /stats               transport, protocol and poller counters
  GET /events?limit=N      journalled transitions (needs --journal)
  GET /ws                  WebSocket push of the full state

With --journal every state transition is appended to a SQLite database.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "HTTP listen address (overrides http.listen)")
	serveCmd.Flags().StringVar(&journalPath, "journal", "", "SQLite journal path (overrides journal.path)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if listenAddr != "" {
		cfg.HTTP.Listen = listenAddr
	}
	if journalPath != "" {
		cfg.Journal.Path = journalPath
	}

	b, opener, err := newBridge()
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	var (
		wg     sync.WaitGroup
		events api.EventLog
	)
	if cfg.Journal.Path != "" {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer j.Close()

		ch, cancel := b.Store.Subscribe(256)
		defer cancel()

		wg.Add(1)
		go j.Run(ctx, &wg, ch)
		events = j
	}

	if err := b.Start(); err != nil {
		return errors.Wrapf(err, "failed to connect to %v", opener)
	}
	defer b.Stop()

	server := &http.Server{
		Addr:              cfg.HTTP.Listen,
		Handler:           api.New(b.Store, func() interface{} { return b.Stats() }, events, cfg.HTTP.PushInterval).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.WithField("listen", server.Addr).Info("http server started")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("http server failed")
			stop()
		}
	}()

	b.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}

	wg.Wait()
	log.WithField("dropped_events", b.Store.Dropped()).Info("bridge stopped")
	return nil
}
