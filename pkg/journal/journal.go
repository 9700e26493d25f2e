// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package journal records panel state transitions and event logger
// snapshots in a SQLite database.
package journal

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/Thermoquad/kyobridge/pkg/kyo"
	"github.com/Thermoquad/kyobridge/pkg/store"
	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

const timeFormat = "2006-01-02 15:04:05.000"

const createEventsSQL = `
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp TEXT NOT NULL,
    event_type TEXT NOT NULL,
    idx INTEGER NOT NULL DEFAULT 0,
    name TEXT,
    value TEXT
);`

const createLoggerSQL = `
CREATE TABLE IF NOT EXISTS logger_snapshots (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp TEXT NOT NULL,
    pages BLOB NOT NULL
);`

// loggerSnapshot is the CBOR document stored per logger snapshot.
type loggerSnapshot struct {
	Pages [][]byte `cbor:"1,keyasint"`
}

// Journal is an open event database.
type Journal struct {
	db  *sql.DB
	log *log.Entry
}

// Open opens or creates the database at path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open database %s", path)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{createEventsSQL, createLoggerSQL} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "could not create tables in %s", path)
		}
	}

	return &Journal{db: db, log: log.WithField("journal", path)}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Write stores one event.
func (j *Journal) Write(ev store.Event) error {
	_, err := j.db.Exec(
		"INSERT INTO events(timestamp, event_type, idx, name, value) VALUES(?, ?, ?, ?, ?)",
		ev.Time.UTC().Format(timeFormat), string(ev.Type), ev.Index, ev.Name, ev.Value,
	)
	return errors.Wrap(err, "failed to insert event")
}

// Recent returns up to limit events, newest first.
func (j *Journal) Recent(limit int) ([]store.Event, error) {
	rows, err := j.db.Query(
		"SELECT timestamp, event_type, idx, name, value FROM events ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query events")
	}
	defer rows.Close()

	var events []store.Event
	for rows.Next() {
		var ts, typ string
		var ev store.Event
		var name, value sql.NullString
		if err := rows.Scan(&ts, &typ, &ev.Index, &name, &value); err != nil {
			return nil, errors.Wrap(err, "failed to scan event")
		}
		ev.Time, _ = time.Parse(timeFormat, ts)
		ev.Type = store.EventType(typ)
		ev.Name = name.String
		ev.Value = value.String
		events = append(events, ev)
	}
	return events, errors.Wrap(rows.Err(), "failed to read events")
}

// SaveLogger stores the event logger buffer split into its pages.
func (j *Journal) SaveLogger(ts time.Time, logger [kyo.LoggerSize]byte) error {
	snap := loggerSnapshot{Pages: make([][]byte, kyo.LoggerPages)}
	for p := range snap.Pages {
		snap.Pages[p] = logger[p*kyo.LoggerPageSize : (p+1)*kyo.LoggerPageSize]
	}
	blob, err := cbor.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "failed to encode logger snapshot")
	}
	_, err = j.db.Exec("INSERT INTO logger_snapshots(timestamp, pages) VALUES(?, ?)",
		ts.UTC().Format(timeFormat), blob)
	return errors.Wrap(err, "failed to insert logger snapshot")
}

// LatestLogger returns the newest logger snapshot. ok is false when none
// has been saved.
func (j *Journal) LatestLogger() (ts time.Time, logger [kyo.LoggerSize]byte, ok bool, err error) {
	var tsStr string
	var blob []byte
	err = j.db.QueryRow("SELECT timestamp, pages FROM logger_snapshots ORDER BY id DESC LIMIT 1").Scan(&tsStr, &blob)
	if err == sql.ErrNoRows {
		return ts, logger, false, nil
	}
	if err != nil {
		return ts, logger, false, errors.Wrap(err, "failed to query logger snapshot")
	}

	var snap loggerSnapshot
	if err = cbor.Unmarshal(blob, &snap); err != nil {
		return ts, logger, false, errors.Wrap(err, "failed to decode logger snapshot")
	}
	for p, page := range snap.Pages {
		if p < kyo.LoggerPages {
			copy(logger[p*kyo.LoggerPageSize:], page)
		}
	}
	ts, _ = time.Parse(timeFormat, tsStr)
	return ts, logger, true, nil
}

// Run writes events from the channel until it is closed or ctx is done.
// A completed logger sweep is also saved as one snapshot.
func (j *Journal) Run(ctx context.Context, wg *sync.WaitGroup, events <-chan store.Event) {
	defer wg.Done()
	j.log.Info("journal writer started")
	defer j.log.Info("journal writer shutting down")

	write := func(ev store.Event) {
		if err := j.Write(ev); err != nil {
			j.log.WithError(err).Error("write failed")
		}
		if ev.Type == store.EventLoggerSweep && ev.Logger != nil {
			if err := j.SaveLogger(ev.Time, *ev.Logger); err != nil {
				j.log.WithError(err).Error("logger snapshot failed")
			}
		}
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			write(ev)
		case <-ctx.Done():
			for len(events) > 0 {
				write(<-events)
			}
			return
		}
	}
}
