// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package store is the agent's durable local state: known devices, the
// event/alert outbox, and recorded DNS blocks.
//
// The store holds a single SQLite connection, so statements issued by the
// agent loops are serialized here and callers need no locking of their own.
package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"grimm.is/edgewatch/internal/clock"
	"grimm.is/edgewatch/internal/errors"
)

// timeLayout is fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store handles persistence of agent state to SQLite.
type Store struct {
	db    *sql.DB
	clock clock.Clock
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for first_seen, last_seen and
// outbox timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// Open opens or creates the agent database, creating its parent directory.
func Open(path string, opts ...Option) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, errors.Attr(errors.Wrap(err, errors.KindUnavailable, "failed to create database directory"), "path", dir)
		}
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindUnavailable, "failed to open agent db")
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, clock: clock.Real}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, errors.Attr(errors.Wrap(err, errors.KindUnavailable, "failed to initialize agent db"), "path", path)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS known_devices (
		mac TEXT PRIMARY KEY,
		ip TEXT NOT NULL,
		hostname TEXT,
		first_seen TEXT NOT NULL,
		last_seen TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS event_queue (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL DEFAULT 'event',
		event_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		dispatched INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_queue_dispatched ON event_queue(dispatched);

	CREATE TABLE IF NOT EXISTS dns_blocks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		domain TEXT NOT NULL,
		client_ip TEXT NOT NULL,
		client_mac TEXT,
		timestamp TEXT NOT NULL, -- raw dnsmasq log timestamp
		recorded_at TEXT NOT NULL,
		alerted INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_blocks_alerted ON dns_blocks(alerted);
	CREATE INDEX IF NOT EXISTS idx_blocks_recorded ON dns_blocks(recorded_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) now() string {
	return formatTime(s.clock.Now())
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) time.Time {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

// inTx runs fn in a transaction, committing on success.
func (s *Store) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrapf(err, errors.KindInternal, "%s: begin", op)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return errors.Wrap(err, errors.KindInternal, op)
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrapf(err, errors.KindInternal, "%s: commit", op)
	}
	return nil
}
