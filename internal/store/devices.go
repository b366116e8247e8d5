// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"grimm.is/edgewatch/internal/errors"
)

// Device is a MAC address the agent has observed on the LAN.
type Device struct {
	MAC       string    `json:"mac_address"`
	IP        string    `json:"ip_address"`
	Hostname  string    `json:"hostname,omitempty"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// UpsertDevice records an observation of mac at ip and reports whether the
// MAC was previously unknown. An empty hostname keeps the stored one.
// last_seen never moves backwards.
func (s *Store) UpsertDevice(ctx context.Context, mac, ip, hostname string) (bool, error) {
	now := s.now()
	isNew := false

	err := s.inTx(ctx, "upsert device", func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM known_devices WHERE mac = ?`, mac).Scan(&exists)
		switch {
		case stderrors.Is(err, sql.ErrNoRows):
			isNew = true
			_, err = tx.ExecContext(ctx,
				`INSERT INTO known_devices (mac, ip, hostname, first_seen, last_seen) VALUES (?, ?, ?, ?, ?)`,
				mac, ip, nullString(hostname), now, now)
			return err
		case err != nil:
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE known_devices
			SET ip = ?,
				hostname = COALESCE(?, hostname),
				last_seen = MAX(last_seen, ?)
			WHERE mac = ?`,
			ip, nullString(hostname), now, mac)
		return err
	})
	if err != nil {
		return false, errors.Attr(err, "mac", mac)
	}
	return isNew, nil
}

// GetDevice returns the device with the given MAC, or nil if it is unknown.
func (s *Store) GetDevice(ctx context.Context, mac string) (*Device, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT mac, ip, hostname, first_seen, last_seen FROM known_devices WHERE mac = ?`, mac)
	d, err := scanDevice(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "get device")
	}
	return d, nil
}

// ListDevices returns every known device, most recently seen first.
func (s *Store) ListDevices(ctx context.Context) ([]Device, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT mac, ip, hostname, first_seen, last_seen FROM known_devices ORDER BY last_seen DESC, mac`)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "list devices")
	}
	defer rows.Close()

	devices := []Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.KindInternal, "list devices")
		}
		devices = append(devices, *d)
	}
	return devices, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDevice(row scanner) (*Device, error) {
	var d Device
	var hostname sql.NullString
	var firstSeen, lastSeen string
	if err := row.Scan(&d.MAC, &d.IP, &hostname, &firstSeen, &lastSeen); err != nil {
		return nil, err
	}
	d.Hostname = hostname.String
	d.FirstSeen = parseTime(firstSeen)
	d.LastSeen = parseTime(lastSeen)
	return &d, nil
}
