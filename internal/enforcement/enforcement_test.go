// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package enforcement

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/edgewatch/internal/config"
)

type fakeGate struct {
	monitorOnly, dryRun, allowed bool
}

func (g fakeGate) MonitorOnly() bool        { return g.monitorOnly }
func (g fakeGate) DryRun() bool             { return g.dryRun }
func (g fakeGate) EnforcementAllowed() bool { return g.allowed }

func TestGated_NeverApplies(t *testing.T) {
	tests := []struct {
		name    string
		gate    fakeGate
		outcome string
	}{
		{"monitor only", fakeGate{monitorOnly: true, dryRun: true}, OutcomeMonitorOnly},
		{"dry run", fakeGate{dryRun: true}, OutcomeDryRun},
		{"gate closed", fakeGate{}, OutcomeRefused},
		{"gate open", fakeGate{allowed: true}, OutcomeNotImplemented},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auditor := NewLogAuditor(nil, 10)
			g := NewGated(tt.gate, auditor, nil)
			ctx := context.Background()

			applied, err := g.Quarantine(ctx, "11:22:33:44:55:66", "suspicious")
			require.NoError(t, err)
			assert.False(t, applied)

			applied, err = g.Unquarantine(ctx, "11:22:33:44:55:66", "cleared")
			require.NoError(t, err)
			assert.False(t, applied)

			hist, err := auditor.History(ctx, "11:22:33:44:55:66", 0)
			require.NoError(t, err)
			require.Len(t, hist, 2)
			assert.Equal(t, ActionUnquarantine, hist[0].Action)
			assert.Equal(t, tt.outcome, hist[1].Outcome)
			assert.False(t, hist[1].Timestamp.IsZero())
		})
	}
}

func TestGated_DefaultConfigRefuses(t *testing.T) {
	auditor := NewLogAuditor(nil, 10)
	g := NewGated(config.Default(), auditor, nil)

	applied, err := g.Quarantine(context.Background(), "11:22:33:44:55:66", "x")
	require.NoError(t, err)
	assert.False(t, applied)

	hist, _ := auditor.History(context.Background(), "", 1)
	require.Len(t, hist, 1)
	assert.Equal(t, OutcomeMonitorOnly, hist[0].Outcome)

	_, ok := g.Recommend(context.Background(), nil)
	assert.False(t, ok)
}

func TestLogAuditor_Capacity(t *testing.T) {
	a := NewLogAuditor(nil, 3)
	ctx := context.Background()
	for _, mac := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, a.Record(ctx, AuditEntry{DeviceID: mac, Action: ActionQuarantine}))
	}

	hist, err := a.History(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, "e", hist[0].DeviceID)
	assert.Equal(t, "c", hist[2].DeviceID)

	hist, err = a.History(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, hist, 2)

	hist, err = NopAuditor{}.History(ctx, "", 0)
	assert.NoError(t, err)
	assert.Empty(t, hist)
}
