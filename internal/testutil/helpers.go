// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package testutil holds helpers shared by package tests.
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"grimm.is/edgewatch/internal/clock"
	"grimm.is/edgewatch/internal/store"
)

// RequireNetlink skips the test unless EDGEWATCH_NETLINK_TEST is set. Those
// tests read the host neighbor table and need a Linux kernel.
func RequireNetlink(t *testing.T) {
	t.Helper()
	if runtime.GOOS != "linux" {
		t.Skip("Skipping test: requires linux")
	}
	if os.Getenv("EDGEWATCH_NETLINK_TEST") == "" {
		t.Skip("Skipping test: requires EDGEWATCH_NETLINK_TEST environment")
	}
}

// OpenStore opens a store in a temp directory, closed when the test ends.
func OpenStore(t *testing.T, clk clock.Clock) *store.Store {
	t.Helper()
	opts := []store.Option{}
	if clk != nil {
		opts = append(opts, store.WithClock(clk))
	}
	s, err := store.Open(filepath.Join(t.TempDir(), "agent.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// WriteFile writes content to name under dir and returns the full path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
