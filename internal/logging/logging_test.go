// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		" WARN ":  LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"info":    LevelInfo,
		"verbose": LevelInfo,
		"":        LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "input %q", in)
	}
}

func TestLogger_JSONComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelInfo, Output: &buf, JSON: true})

	l.WithComponent("dns").WithError(errors.New("boom")).Info("poll failed", "path", "/var/log/dnsmasq.log")
	l.Debug("filtered out")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "poll failed", rec["msg"])
	assert.Equal(t, "dns", rec["component"])
	assert.Equal(t, "boom", rec["error"])
	assert.Equal(t, "/var/log/dnsmasq.log", rec["path"])
	assert.NotContains(t, buf.String(), "filtered out")
}

func TestSetDefault(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	var buf bytes.Buffer
	SetDefault(New(Config{Level: LevelDebug, Output: &buf}))
	SetDefault(nil)

	WithComponent("agent").Debug("hello")
	assert.Contains(t, buf.String(), "component=agent")
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestOpenFile_Tee(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "agent.log")
	var stderr bytes.Buffer

	w, closer, err := OpenFile(&stderr, path)
	require.NoError(t, err)
	New(Config{Level: LevelInfo, Output: w}).Info("started")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=started")
	assert.Contains(t, stderr.String(), "msg=started")
}

func TestOpenFile_Failure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	var stderr bytes.Buffer
	w, closer, err := OpenFile(&stderr, filepath.Join(blocker, "agent.log"))
	require.Error(t, err)
	assert.Same(t, &stderr, w)
	assert.NoError(t, closer.Close())

	w, _, err = OpenFile(&stderr, "")
	require.NoError(t, err)
	assert.Same(t, &stderr, w)
}
