// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package version

// Version is stamped at build time with -ldflags "-X grimm.is/edgewatch/internal/version.Version=...".
var Version = "0.1.0"

// Name is the agent name reported in logs and the status API.
const Name = "edgewatch"
