// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package events builds the event and alert records the agent ships to the
// backend. Builders are pure: they assign an id and a timestamp and never
// touch storage or the network.
package events

import (
	"strings"

	"github.com/google/uuid"

	"grimm.is/edgewatch/internal/clock"
	"grimm.is/edgewatch/internal/errors"
)

// DefaultConfidence is used when a producer does not supply one.
const DefaultConfidence = 0.8

// Factory stamps records with ids, timestamps, and the agent version.
type Factory struct {
	Version string
	Clock   clock.Clock
	NewID   func() string
}

// NewFactory returns a factory using the wall clock and random UUIDs.
func NewFactory(version string) *Factory {
	return &Factory{
		Version: version,
		Clock:   clock.Real,
		NewID:   func() string { return uuid.New().String() },
	}
}

func (f *Factory) base(t Type, source, deviceID string) *Event {
	return &Event{
		ID:        f.NewID(),
		Type:      t,
		Timestamp: f.Clock.Now().UTC(),
		Source:    source,
		DeviceID:  optional(deviceID),
		Data:      map[string]any{},
		Metadata:  Metadata{AgentVersion: f.Version},
	}
}

// DeviceSeen builds the discovery event for one neighbor observation.
func (f *Factory) DeviceSeen(mac, ip, hostname string, isNew bool) *Event {
	e := f.base(TypeDeviceSeen, SourceDiscovery, mac)
	e.Data = map[string]any{
		"mac_address": mac,
		"ip_address":  ip,
		"hostname":    optional(hostname),
		"is_new":      isNew,
	}
	return e
}

// DNSBlocked builds the event for a sinkholed answer. clientMAC may be empty
// until MAC correlation exists at the DNS layer.
func (f *Factory) DNSBlocked(domain, clientIP, clientMAC, reason, listSource string) *Event {
	if reason == "" {
		reason = "blocklist"
	}
	e := f.base(TypeDNSBlocked, SourceDNSMonitor, clientMAC)
	e.Data = map[string]any{
		"domain":       domain,
		"client_ip":    clientIP,
		"block_reason": reason,
		"list_source":  optional(listSource),
	}
	return e
}

// DNSQuery builds an informational query event. The DNS monitor does not
// currently emit these.
func (f *Factory) DNSQuery(domain, clientIP, queryType, clientMAC string) *Event {
	if queryType == "" {
		queryType = "A"
	}
	e := f.base(TypeDNSQuery, SourceDNSMonitor, clientMAC)
	e.Data = map[string]any{
		"domain":     domain,
		"client_ip":  clientIP,
		"query_type": queryType,
	}
	return e
}

// FlowSummary wraps a per-device traffic summary.
func (f *Factory) FlowSummary(deviceID string, data map[string]any) *Event {
	e := f.base(TypeFlowSummary, SourceFlowSummary, deviceID)
	if data != nil {
		e.Data = data
	}
	return e
}

// AnomalyDetected wraps a baseline deviation.
func (f *Factory) AnomalyDetected(deviceID string, data map[string]any) *Event {
	e := f.base(TypeAnomalyDetected, SourceAnomaly, deviceID)
	if data != nil {
		e.Data = data
	}
	return e
}

// AlertSpec is the producer-supplied part of an alert.
type AlertSpec struct {
	DeviceID          string
	Severity          Severity
	Title             string
	Explanation       string
	Evidence          map[string]any
	RecommendedAction string
	// Confidence in [0,1]. Zero means DefaultConfidence.
	Confidence      float64
	RelatedEventIDs []string
}

// Alert builds an active alert. Every alert must carry a plain-language
// explanation.
func (f *Factory) Alert(spec AlertSpec) (*Alert, error) {
	if strings.TrimSpace(spec.Explanation) == "" {
		return nil, errors.New(errors.KindValidation, "alert explanation is required")
	}
	if !spec.Severity.Valid() {
		return nil, errors.Errorf(errors.KindValidation, "unknown alert severity %q", spec.Severity)
	}

	confidence := spec.Confidence
	if confidence == 0 {
		confidence = DefaultConfidence
	}
	if confidence < 0 || confidence > 1 {
		return nil, errors.Errorf(errors.KindValidation, "alert confidence %v outside [0,1]", confidence)
	}

	evidence := spec.Evidence
	if evidence == nil {
		evidence = map[string]any{}
	}
	related := spec.RelatedEventIDs
	if related == nil {
		related = []string{}
	}

	return &Alert{
		ID:                f.NewID(),
		DeviceID:          spec.DeviceID,
		Severity:          spec.Severity,
		Title:             spec.Title,
		Explanation:       spec.Explanation,
		Evidence:          evidence,
		RecommendedAction: optional(spec.RecommendedAction),
		Confidence:        confidence,
		Status:            StatusActive,
		CreatedAt:         f.Clock.Now().UTC(),
		RelatedEventIDs:   related,
	}, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
