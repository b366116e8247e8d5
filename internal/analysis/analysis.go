// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package analysis defines the traffic analysis collaborators: flow
// summaries, per-device baselines, anomaly detection and IDS ingestion.
//
// The shipped implementations produce nothing. The Pipeline wires them so
// real implementations can be dropped in without touching the agent.
package analysis

import (
	"context"
	"time"

	"grimm.is/edgewatch/internal/events"
)

// FlowSummary aggregates one device's traffic over a window. It carries
// metadata only, never payloads.
type FlowSummary struct {
	DeviceMAC    string        `json:"device_mac"`
	Window       time.Duration `json:"window"`
	BytesIn      uint64        `json:"bytes_in"`
	BytesOut     uint64        `json:"bytes_out"`
	Connections  uint64        `json:"connections"`
	Destinations []string      `json:"destinations,omitempty"`
}

// Data renders the summary as an event payload.
func (s FlowSummary) Data() map[string]any {
	return map[string]any{
		"device_mac":     s.DeviceMAC,
		"window_seconds": int64(s.Window / time.Second),
		"bytes_in":       s.BytesIn,
		"bytes_out":      s.BytesOut,
		"connections":    s.Connections,
		"destinations":   s.Destinations,
	}
}

// Profile is a learned per-device traffic baseline.
type Profile struct {
	DeviceMAC string
	Samples   int
	Since     time.Time
}

// FlowCollector produces per-device summaries for the last window.
type FlowCollector interface {
	Collect(ctx context.Context) ([]FlowSummary, error)
}

// Baseline learns what normal traffic looks like for each device.
type Baseline interface {
	Update(ctx context.Context, mac string, s FlowSummary) error
	// Get returns the profile for mac, or nil if none exists.
	Get(ctx context.Context, mac string) (*Profile, error)
	// Stable reports whether learning for mac is complete.
	Stable(ctx context.Context, mac string) bool
}

// AnomalyDetector compares a summary against the device baseline and
// returns anomaly_detected events or alerts.
type AnomalyDetector interface {
	Check(ctx context.Context, mac string, s FlowSummary) ([]events.Record, error)
}

// IDSAdapter turns external IDS output (Suricata EVE JSON) into records.
type IDSAdapter interface {
	Poll(ctx context.Context) ([]events.Record, error)
}

// NopCollector collects nothing.
type NopCollector struct{}

func (NopCollector) Collect(context.Context) ([]FlowSummary, error) { return nil, nil }

// NopBaseline never learns. LearningPeriod is kept for when it does.
type NopBaseline struct {
	LearningPeriod time.Duration
}

func (NopBaseline) Update(context.Context, string, FlowSummary) error { return nil }
func (NopBaseline) Get(context.Context, string) (*Profile, error)     { return nil, nil }
func (NopBaseline) Stable(context.Context, string) bool               { return false }

// NopDetector never reports anomalies.
type NopDetector struct{}

func (NopDetector) Check(context.Context, string, FlowSummary) ([]events.Record, error) {
	return nil, nil
}

// NopIDS reads nothing from EVEPath.
type NopIDS struct {
	EVEPath string
}

func (NopIDS) Poll(context.Context) ([]events.Record, error) { return nil, nil }
