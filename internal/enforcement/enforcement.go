// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package enforcement is the boundary for acting on devices (quarantine).
//
// The agent currently only detects. Every request passes the safety gate
// and is audited, but no action is applied to the network.
package enforcement

import (
	"context"

	"grimm.is/edgewatch/internal/events"
	"grimm.is/edgewatch/internal/logging"
)

// Action is an enforcement action.
type Action string

const (
	ActionQuarantine   Action = "quarantine"
	ActionUnquarantine Action = "unquarantine"
)

// Enforcer applies or recommends enforcement actions.
type Enforcer interface {
	// Recommend suggests an action for alert. ok is false when none applies.
	Recommend(ctx context.Context, alert *events.Alert) (action Action, ok bool)
	// Quarantine isolates the device. It reports whether the action was
	// applied.
	Quarantine(ctx context.Context, mac, reason string) (bool, error)
	// Unquarantine lifts an isolation.
	Unquarantine(ctx context.Context, mac, reason string) (bool, error)
}

// Gate is the safety configuration consulted before any action.
type Gate interface {
	MonitorOnly() bool
	DryRun() bool
	EnforcementAllowed() bool
}

// Outcomes recorded in the audit trail.
const (
	OutcomeMonitorOnly    = "monitor_only"
	OutcomeDryRun         = "dry_run"
	OutcomeRefused        = "refused"
	OutcomeNotImplemented = "not_implemented"
)

// Gated is the shipped Enforcer. It never changes the network: requests
// are refused by the gate, logged as dry runs, or reported as not
// implemented.
type Gated struct {
	gate    Gate
	auditor Auditor
	logger  *logging.Logger
}

// NewGated creates a gated enforcer. A nil auditor records nothing.
func NewGated(gate Gate, auditor Auditor, logger *logging.Logger) *Gated {
	if auditor == nil {
		auditor = NopAuditor{}
	}
	if logger == nil {
		logger = logging.WithComponent("enforcement")
	}
	return &Gated{gate: gate, auditor: auditor, logger: logger}
}

// Recommend never recommends an action.
func (g *Gated) Recommend(context.Context, *events.Alert) (Action, bool) {
	return "", false
}

func (g *Gated) Quarantine(ctx context.Context, mac, reason string) (bool, error) {
	return g.request(ctx, ActionQuarantine, mac, reason)
}

func (g *Gated) Unquarantine(ctx context.Context, mac, reason string) (bool, error) {
	return g.request(ctx, ActionUnquarantine, mac, reason)
}

func (g *Gated) request(ctx context.Context, action Action, mac, reason string) (bool, error) {
	var outcome string
	switch {
	case g.gate.MonitorOnly():
		outcome = OutcomeMonitorOnly
		g.logger.Info("enforcement requested in monitor-only mode", "action", action, "mac", mac)
	case g.gate.DryRun():
		outcome = OutcomeDryRun
		g.logger.Info("[DRY RUN] would apply enforcement", "action", action, "mac", mac, "reason", reason)
	case !g.gate.EnforcementAllowed():
		outcome = OutcomeRefused
		g.logger.Info("enforcement requested but not allowed", "action", action, "mac", mac)
	default:
		outcome = OutcomeNotImplemented
		g.logger.Debug("enforcement action not implemented", "action", action, "mac", mac)
	}

	err := g.auditor.Record(ctx, AuditEntry{
		DeviceID: mac,
		Action:   action,
		Reason:   reason,
		Outcome:  outcome,
	})
	return false, err
}
