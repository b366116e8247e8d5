// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package events

import "time"

// Type enumerates event types.
type Type string

const (
	TypeDeviceSeen Type = "device_seen"
	TypeDNSBlocked Type = "dns_blocked"
	TypeDNSQuery   Type = "dns_query"

	// Produced only by the analysis collaborators.
	TypeFlowSummary     Type = "flow_summary"
	TypeAnomalyDetected Type = "anomaly_detected"
)

// Severity of an alert.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// Status is an alert lifecycle state. Detection only produces StatusActive.
type Status string

const (
	StatusActive     Status = "active"
	StatusRolledBack Status = "rolled_back"
)

// Source names the component that produced an event.
const (
	SourceDiscovery   = "discovery"
	SourceDNSMonitor  = "dns_monitor"
	SourceFlowSummary = "flow_summary"
	SourceAnomaly     = "anomaly"
)

// Kind distinguishes outbox records. It selects the backend endpoint.
type Kind string

const (
	KindEvent Kind = "event"
	KindAlert Kind = "alert"
)

// Record is anything that can sit in the outbox.
type Record interface {
	RecordID() string
	RecordKind() Kind
	RecordTime() time.Time
}

// Metadata travels with every event.
type Metadata struct {
	AgentVersion string `json:"agent_version"`
}

// Event is an immutable, typed, timestamped fact.
type Event struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Source    string         `json:"source"`
	DeviceID  *string        `json:"device_id"`
	Data      map[string]any `json:"data"`
	Metadata  Metadata       `json:"metadata"`
}

func (e *Event) RecordID() string      { return e.ID }
func (e *Event) RecordKind() Kind      { return KindEvent }
func (e *Event) RecordTime() time.Time { return e.Timestamp }

// Alert is the human-facing derivative of one or more events.
type Alert struct {
	ID                string         `json:"id"`
	DeviceID          string         `json:"device_id"`
	Severity          Severity       `json:"severity"`
	Title             string         `json:"title"`
	Explanation       string         `json:"explanation"`
	Evidence          map[string]any `json:"evidence"`
	RecommendedAction *string        `json:"recommended_action"`
	Confidence        float64        `json:"confidence"`
	Status            Status         `json:"status"`
	CreatedAt         time.Time      `json:"created_at"`
	RelatedEventIDs   []string       `json:"related_event_ids"`
}

func (a *Alert) RecordID() string      { return a.ID }
func (a *Alert) RecordKind() Kind      { return KindAlert }
func (a *Alert) RecordTime() time.Time { return a.CreatedAt }
