// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package discovery

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"grimm.is/edgewatch/internal/errors"
)

// RandomMAC is reported for locally administered addresses.
const RandomMAC = "Random MAC"

// VendorDB maps IEEE assignment prefixes to manufacturer names. Keys are
// upper-case hex: 6 digits (MA-L), 7 (MA-M) or 9 (MA-S).
type VendorDB struct {
	entries map[string]string
}

// NewVendorDB creates an empty database.
func NewVendorDB() *VendorDB {
	return &VendorDB{entries: make(map[string]string)}
}

// LoadVendorDB reads one or more IEEE registry CSV exports (oui.csv,
// mam.csv, oui36.csv).
func LoadVendorDB(paths ...string) (*VendorDB, error) {
	db := NewVendorDB()
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Attr(errors.Wrap(err, errors.KindNotFound, "open vendor registry"), "path", path)
		}
		err = db.ReadCSV(f)
		f.Close()
		if err != nil {
			return nil, errors.Attr(err, "path", path)
		}
	}
	return db, nil
}

// ReadCSV merges a registry export with the columns
// Registry,Assignment,Organization Name[,Organization Address].
func (db *VendorDB) ReadCSV(r io.Reader) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	first := true
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, errors.KindValidation, "parse vendor registry")
		}
		if first {
			first = false
			if len(rec) > 1 && strings.EqualFold(strings.TrimSpace(rec[1]), "Assignment") {
				continue
			}
		}
		if len(rec) < 3 {
			continue
		}
		db.Add(rec[1], rec[2])
	}
}

// Add registers a prefix. Prefixes of unsupported length are ignored.
func (db *VendorDB) Add(prefix, manufacturer string) {
	key := rawHex(prefix)
	switch len(key) {
	case 6, 7, 9:
		db.entries[key] = strings.TrimSpace(manufacturer)
	}
}

// Len returns the number of prefixes loaded.
func (db *VendorDB) Len() int {
	if db == nil {
		return 0
	}
	return len(db.entries)
}

// Lookup returns the manufacturer for mac using the longest matching
// prefix. Locally administered addresses return RandomMAC. A nil database
// returns "".
func (db *VendorDB) Lookup(mac string) string {
	if db == nil {
		return ""
	}
	raw := rawHex(mac)
	if len(raw) < 6 {
		return ""
	}

	// Bit 1 of the first octet marks a locally administered address.
	switch raw[1] {
	case '2', '6', 'A', 'E':
		return RandomMAC
	}

	for _, n := range []int{9, 7, 6} {
		if len(raw) < n {
			continue
		}
		if v, ok := db.entries[raw[:n]]; ok {
			return v
		}
	}
	return ""
}

func rawHex(s string) string {
	r := strings.NewReplacer(":", "", "-", "", ".", "", " ", "")
	return strings.ToUpper(r.Replace(strings.TrimSpace(s)))
}
