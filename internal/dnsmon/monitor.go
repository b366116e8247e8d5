// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package dnsmon tails the dnsmasq query log and turns sinkholed lookups
// into dns_blocked events and alerts.
//
// The monitor starts at the end of the log, so only lines written after the
// agent starts are reported. Log rotation (inode change) and truncation are
// detected before every read.
package dnsmon

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"grimm.is/edgewatch/internal/events"
	"grimm.is/edgewatch/internal/logging"
	"grimm.is/edgewatch/internal/metrics"
	"grimm.is/edgewatch/internal/store"
)

// UnknownClient is reported when a block cannot be attributed to a query.
const UnknownClient = "unknown"

const (
	// maxReadBytes bounds one poll; the remainder is read next time.
	maxReadBytes = 4 << 20
	// maxPartialLine is how much unterminated data is held back before it is
	// consumed as a line anyway.
	maxPartialLine = 64 << 10
)

// BlockStore is the subset of the store the monitor writes to.
type BlockStore interface {
	RecordDNSBlock(ctx context.Context, domain, clientIP, clientMAC, timestamp string) (int64, error)
	Enqueue(ctx context.Context, rec events.Record) error
}

var _ BlockStore = (*store.Store)(nil)

type fileState struct {
	size     int64
	inode    uint64
	hasInode bool
}

// Monitor tails one dnsmasq log file. It is not safe for concurrent Polls.
type Monitor struct {
	path     string
	offset   int64
	inode    uint64
	hasInode bool
	cache    *queryCache

	store   BlockStore
	factory *events.Factory
	metrics *metrics.Metrics
	logger  *logging.Logger
}

// NewMonitor positions a monitor at the current end of path. A missing file
// is not an error; it is read from the start once it appears.
func NewMonitor(path string, st BlockStore, factory *events.Factory, m *metrics.Metrics, logger *logging.Logger) *Monitor {
	if logger == nil {
		logger = logging.WithComponent("dnsmon")
	}
	mon := &Monitor{
		path:    path,
		cache:   newQueryCache(MaxCorrelationEntries),
		store:   st,
		factory: factory,
		metrics: m,
		logger:  logger,
	}

	fst, err := statFile(path)
	if err != nil {
		logger.Warn("DNS log file not found, will retry on next poll; dnsmasq must run with --log-queries",
			"path", path, "error", err)
		return mon
	}
	mon.offset = fst.size
	mon.inode = fst.inode
	mon.hasInode = fst.hasInode
	logger.Info("DNS monitor initialized", "path", path, "offset", mon.offset)
	return mon
}

// Path returns the monitored log path.
func (m *Monitor) Path() string { return m.path }

// Poll reads lines appended since the last poll and records every block.
// It returns the events and alerts it enqueued. A store failure stops the
// poll; the failing line is re-read on the next poll.
func (m *Monitor) Poll(ctx context.Context) ([]events.Record, error) {
	chunk := m.readNew()
	if len(chunk) == 0 {
		return nil, nil
	}

	var (
		out    []events.Record
		lines  int
		blocks int
	)
	for len(chunk) > 0 {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		var raw []byte
		if i := bytes.IndexByte(chunk, '\n'); i >= 0 {
			raw, chunk = chunk[:i+1], chunk[i+1:]
		} else {
			raw, chunk = chunk, nil
		}
		line := strings.TrimRight(string(raw), "\r\n")
		lines++

		recs, err := m.handleLine(ctx, line)
		out = append(out, recs...)
		if err != nil {
			return out, err
		}
		if len(recs) > 0 {
			blocks++
		}
		m.offset += int64(len(raw))
	}

	if blocks > 0 {
		m.logger.Info("DNS poll complete", "lines", lines, "blocks", blocks)
	}
	return out, nil
}

// handleLine processes one line. On error the correlation cache is left as
// it was before the line.
func (m *Monitor) handleLine(ctx context.Context, line string) ([]events.Record, error) {
	parsed := ParseLine(line)
	switch parsed.Kind {
	case LineQuery:
		m.metrics.DNSLine(metrics.LineQuery)
		m.cache.Put(parsed.Domain, parsed.ClientIP)
		return nil, nil
	case LineBlock:
		m.metrics.DNSLine(metrics.LineBlock)
	default:
		m.metrics.DNSLine(metrics.LineIgnored)
		return nil, nil
	}

	clientIP, cached := m.cache.Pop(parsed.Domain)
	if !cached {
		clientIP = UnknownClient
	}
	recs, err := m.recordBlock(ctx, parsed, clientIP)
	if err != nil && cached {
		m.cache.Put(parsed.Domain, clientIP)
	}
	return recs, err
}

func (m *Monitor) recordBlock(ctx context.Context, l Line, clientIP string) ([]events.Record, error) {
	if _, err := m.store.RecordDNSBlock(ctx, l.Domain, clientIP, "", l.Timestamp); err != nil {
		return nil, err
	}

	ev := m.factory.DNSBlocked(l.Domain, clientIP, "", "sinkhole", "")
	if err := m.store.Enqueue(ctx, ev); err != nil {
		return nil, err
	}

	alert, err := m.factory.Alert(events.AlertSpec{
		// MAC correlation is not available at the DNS layer.
		DeviceID: clientIP,
		Severity: events.SeverityMedium,
		Title:    "Blocked connection to " + l.Domain,
		Explanation: fmt.Sprintf(
			"A device at %s attempted to connect to %s, which is on the blocklist of known "+
				"malicious or unwanted domains. The connection was blocked by the DNS sinkhole.",
			clientIP, l.Domain),
		Evidence: map[string]any{
			"source_module":  events.SourceDNSMonitor,
			"blocked_domain": l.Domain,
			"details": map[string]any{
				"client_ip":       clientIP,
				"sinkhole_answer": l.Answer,
				"log_timestamp":   l.Timestamp,
			},
		},
		RecommendedAction: fmt.Sprintf(
			"Check the device at %s for malware or unwanted software. "+
				"If this is a false positive, you can whitelist the domain from the app.",
			clientIP),
		Confidence:      0.9,
		RelatedEventIDs: []string{ev.ID},
	})
	if err != nil {
		return []events.Record{ev}, err
	}
	if err := m.store.Enqueue(ctx, alert); err != nil {
		return []events.Record{ev}, err
	}

	m.logger.Info("DNS block detected", "client", clientIP, "domain", l.Domain, "answer", l.Answer)
	return []events.Record{ev, alert}, nil
}

// readNew returns the complete lines appended since the last read, without
// advancing the offset. An unterminated trailing line is held back.
func (m *Monitor) readNew() []byte {
	fst, err := statFile(m.path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			m.logger.Debug("DNS log file not present", "path", m.path)
		} else {
			m.logger.Warn("failed to stat DNS log", "path", m.path, "error", err)
		}
		return nil
	}
	m.checkRotation(fst)

	if fst.size <= m.offset {
		return nil
	}

	f, err := os.Open(m.path)
	if err != nil {
		m.logger.Warn("failed to open DNS log", "path", m.path, "error", err)
		return nil
	}
	defer f.Close()

	if _, err := f.Seek(m.offset, io.SeekStart); err != nil {
		m.logger.Warn("failed to seek DNS log", "path", m.path, "offset", m.offset, "error", err)
		return nil
	}
	data, err := io.ReadAll(io.LimitReader(f, maxReadBytes))
	if err != nil {
		m.logger.Warn("error reading DNS log", "path", m.path, "error", err)
		return nil
	}

	end := bytes.LastIndexByte(data, '\n')
	if end < 0 {
		if len(data) >= maxPartialLine {
			return data
		}
		return nil
	}
	return data[:end+1]
}

// checkRotation resets the offset when the file was replaced or truncated,
// and adopts the current inode.
func (m *Monitor) checkRotation(fst fileState) {
	switch {
	case m.hasInode && fst.hasInode && fst.inode != m.inode:
		m.logger.Info("DNS log file rotated, resetting position", "path", m.path)
		m.offset = 0
	case fst.size < m.offset:
		m.logger.Info("DNS log file truncated, resetting position", "path", m.path)
		m.offset = 0
	}
	if fst.hasInode {
		m.inode = fst.inode
		m.hasInode = true
	}
}
