// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import "strings"

// MonitorOnly reports whether enforcement is disabled while detection runs.
func (c *Config) MonitorOnly() bool {
	return c.Safety == nil || c.Safety.MonitorOnly == nil || *c.Safety.MonitorOnly
}

// DryRun reports whether enforcement should only log what it would do.
func (c *Config) DryRun() bool {
	return c.Safety == nil || c.Safety.DryRun == nil || *c.Safety.DryRun
}

// EnforcementAllowed is the fail-closed gate in front of every enforcement
// action. Each condition must hold; any doubt denies.
func (c *Config) EnforcementAllowed() bool {
	if c.MonitorOnly() || c.DryRun() {
		return false
	}
	if c.Safety == nil || !c.Safety.AllowEnforcement {
		return false
	}

	lan := strings.TrimSpace(c.LANInterface)
	wan := strings.TrimSpace(c.WANInterface)
	if lan == "" || wan == "" {
		return false
	}
	if lan == Placeholder || wan == Placeholder {
		return false
	}
	return lan != wan
}
