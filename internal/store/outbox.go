// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"grimm.is/edgewatch/internal/errors"
	"grimm.is/edgewatch/internal/events"
)

// PendingRecord is an undispatched outbox entry. Payload is the JSON exactly
// as enqueued, so retries resend the same bytes.
type PendingRecord struct {
	ID        string
	Kind      events.Kind
	Payload   json.RawMessage
	CreatedAt time.Time
}

// OutboxStats summarizes the outbox.
type OutboxStats struct {
	Pending       int64      `json:"pending"`
	Dispatched    int64      `json:"dispatched"`
	OldestPending *time.Time `json:"oldest_pending,omitempty"`
}

// Enqueue persists rec for later dispatch. Enqueueing an id that is already
// present is a no-op.
func (s *Store) Enqueue(ctx context.Context, rec events.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "encode outbox record")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO event_queue (id, kind, event_json, created_at) VALUES (?, ?, ?, ?)`,
		rec.RecordID(), string(rec.RecordKind()), string(payload), s.now())
	if err != nil {
		return errors.Attr(errors.Wrap(err, errors.KindInternal, "enqueue"), "id", rec.RecordID())
	}
	return nil
}

// PendingRecords returns up to limit undispatched records in the order they
// were enqueued.
func (s *Store) PendingRecords(ctx context.Context, limit int) ([]PendingRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, event_json, created_at
		FROM event_queue
		WHERE dispatched = 0
		ORDER BY rowid ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "pending records")
	}
	defer rows.Close()

	var out []PendingRecord
	for rows.Next() {
		var r PendingRecord
		var kind, payload, created string
		if err := rows.Scan(&r.ID, &kind, &payload, &created); err != nil {
			return nil, errors.Wrap(err, errors.KindInternal, "pending records")
		}
		r.Kind = events.Kind(kind)
		r.Payload = json.RawMessage(payload)
		r.CreatedAt = parseTime(created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// MarkDispatched flags the given ids as delivered. Unknown ids are ignored
// and a delivered record is never reset.
func (s *Store) MarkDispatched(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.inTx(ctx, "mark dispatched", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `UPDATE event_queue SET dispatched = 1 WHERE id = ? AND dispatched = 0`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, id := range ids {
			if _, err := stmt.ExecContext(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// OutboxStats counts pending and delivered records.
func (s *Store) OutboxStats(ctx context.Context) (OutboxStats, error) {
	var (
		st     OutboxStats
		oldest sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN dispatched = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN dispatched = 1 THEN 1 ELSE 0 END), 0),
			MIN(CASE WHEN dispatched = 0 THEN created_at END)
		FROM event_queue`).Scan(&st.Pending, &st.Dispatched, &oldest)
	if err != nil {
		return st, errors.Wrap(err, errors.KindInternal, "outbox stats")
	}
	if oldest.Valid {
		t := parseTime(oldest.String)
		st.OldestPending = &t
	}
	return st, nil
}
