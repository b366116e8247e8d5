// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"grimm.is/edgewatch/internal/errors"
)

// DNSBlock is one sinkholed lookup.
type DNSBlock struct {
	ID        int64  `json:"id"`
	Domain    string `json:"domain"`
	ClientIP  string `json:"client_ip"`
	ClientMAC string `json:"client_mac,omitempty"`
	// Timestamp is the dnsmasq log timestamp, verbatim.
	Timestamp string `json:"timestamp"`
	Alerted   bool   `json:"alerted"`
}

// BlockStats aggregates DNS blocks over a window.
type BlockStats struct {
	Since      time.Time `json:"since"`
	Total      int64     `json:"total"`
	TopDomains []Count   `json:"top_domains"`
	TopClients []Count   `json:"top_clients"`
}

// Count is a name and its occurrence count.
type Count struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// RecordDNSBlock stores a block and returns its row id.
func (s *Store) RecordDNSBlock(ctx context.Context, domain, clientIP, clientMAC, timestamp string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO dns_blocks (domain, client_ip, client_mac, timestamp, recorded_at)
		VALUES (?, ?, ?, ?, ?)`,
		domain, clientIP, nullString(clientMAC), timestamp, s.now())
	if err != nil {
		return 0, errors.Attr(errors.Wrap(err, errors.KindInternal, "record dns block"), "domain", domain)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, errors.KindInternal, "record dns block")
	}
	return id, nil
}

// UnalertedDNSBlocks returns up to limit blocks not yet marked alerted,
// oldest first.
func (s *Store) UnalertedDNSBlocks(ctx context.Context, limit int) ([]DNSBlock, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, domain, client_ip, client_mac, timestamp, alerted
		FROM dns_blocks
		WHERE alerted = 0
		ORDER BY id ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "unalerted dns blocks")
	}
	defer rows.Close()

	var out []DNSBlock
	for rows.Next() {
		var (
			b   DNSBlock
			mac sql.NullString
		)
		if err := rows.Scan(&b.ID, &b.Domain, &b.ClientIP, &mac, &b.Timestamp, &b.Alerted); err != nil {
			return nil, errors.Wrap(err, errors.KindInternal, "unalerted dns blocks")
		}
		b.ClientMAC = mac.String
		out = append(out, b)
	}
	return out, rows.Err()
}

// MarkDNSBlocksAlerted flags the given rows as alerted.
func (s *Store) MarkDNSBlocksAlerted(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := fmt.Sprintf(`UPDATE dns_blocks SET alerted = 1 WHERE id IN (%s)`, placeholders)
	return s.inTx(ctx, "mark dns blocks alerted", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, query, args...)
		return err
	})
}

// DNSBlockStats returns the block total and the top blocked domains and
// clients recorded since the given time.
func (s *Store) DNSBlockStats(ctx context.Context, since time.Time, top int) (*BlockStats, error) {
	stats := &BlockStats{Since: since.UTC(), TopDomains: []Count{}, TopClients: []Count{}}
	from := formatTime(since)

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM dns_blocks WHERE recorded_at >= ?`, from).Scan(&stats.Total)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "dns block stats")
	}

	stats.TopDomains, err = s.topCounts(ctx, "domain", from, top)
	if err != nil {
		return nil, err
	}
	stats.TopClients, err = s.topCounts(ctx, "client_ip", from, top)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// topCounts groups by column. column is always a constant from this package.
func (s *Store) topCounts(ctx context.Context, column, from string, limit int) ([]Count, error) {
	query := fmt.Sprintf(`
		SELECT %[1]s, COUNT(*) as count
		FROM dns_blocks
		WHERE recorded_at >= ?
		GROUP BY %[1]s
		ORDER BY count DESC, %[1]s ASC
		LIMIT ?`, column)
	rows, err := s.db.QueryContext(ctx, query, from, limit)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindInternal, "top blocked %s", column)
	}
	defer rows.Close()

	out := []Count{}
	for rows.Next() {
		var c Count
		if err := rows.Scan(&c.Name, &c.Count); err != nil {
			return nil, errors.Wrapf(err, errors.KindInternal, "top blocked %s", column)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
