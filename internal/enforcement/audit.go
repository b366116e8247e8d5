// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package enforcement

import (
	"context"
	"sync"
	"time"

	"grimm.is/edgewatch/internal/clock"
	"grimm.is/edgewatch/internal/logging"
)

// AuditEntry is one enforcement request.
type AuditEntry struct {
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	Action    Action    `json:"action"`
	Reason    string    `json:"reason,omitempty"`
	Outcome   string    `json:"outcome"`
	Applied   bool      `json:"applied"`
}

// Auditor records enforcement requests.
type Auditor interface {
	Record(ctx context.Context, e AuditEntry) error
	// History returns recent entries, newest first. An empty deviceID
	// returns entries for every device.
	History(ctx context.Context, deviceID string, limit int) ([]AuditEntry, error)
}

// NopAuditor records nothing.
type NopAuditor struct{}

func (NopAuditor) Record(context.Context, AuditEntry) error { return nil }

func (NopAuditor) History(context.Context, string, int) ([]AuditEntry, error) { return nil, nil }

// DefaultAuditCapacity is how many entries LogAuditor keeps.
const DefaultAuditCapacity = 256

// LogAuditor writes each entry to the structured log and keeps the most
// recent ones in memory.
type LogAuditor struct {
	logger   *logging.Logger
	clock    clock.Clock
	capacity int

	mu      sync.Mutex
	entries []AuditEntry
}

// NewLogAuditor creates an auditor retaining up to capacity entries.
func NewLogAuditor(logger *logging.Logger, capacity int) *LogAuditor {
	if logger == nil {
		logger = logging.WithComponent("audit")
	}
	if capacity <= 0 {
		capacity = DefaultAuditCapacity
	}
	return &LogAuditor{logger: logger, clock: clock.Real, capacity: capacity}
}

func (a *LogAuditor) Record(_ context.Context, e AuditEntry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = a.clock.Now().UTC()
	}

	a.logger.Info("enforcement audit",
		"device_id", e.DeviceID,
		"action", e.Action,
		"outcome", e.Outcome,
		"applied", e.Applied,
		"reason", e.Reason)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	if over := len(a.entries) - a.capacity; over > 0 {
		a.entries = append(a.entries[:0:0], a.entries[over:]...)
	}
	return nil
}

func (a *LogAuditor) History(_ context.Context, deviceID string, limit int) ([]AuditEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []AuditEntry
	for i := len(a.entries) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		if deviceID == "" || a.entries[i].DeviceID == deviceID {
			out = append(out, a.entries[i])
		}
	}
	return out, nil
}
