// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package api

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/edgewatch/internal/events"
	"grimm.is/edgewatch/internal/metrics"
	"grimm.is/edgewatch/internal/testutil"
)

func newTestServer(t *testing.T) (*Server, *metrics.Metrics) {
	t.Helper()
	st := testutil.OpenStore(t, nil)
	ctx := context.Background()

	_, err := st.UpsertDevice(ctx, "11:22:33:44:55:66", "192.168.1.50", "laptop.lan")
	require.NoError(t, err)
	require.NoError(t, st.Enqueue(ctx, events.NewFactory("test").DeviceSeen("11:22:33:44:55:66", "192.168.1.50", "", true)))
	_, err = st.RecordDNSBlock(ctx, "malware.example.com", "10.0.0.5", "", "Feb 14 10:30:45")
	require.NoError(t, err)

	m := metrics.NewMetrics()
	reg, err := metrics.NewRegistry(m)
	require.NoError(t, err)
	return NewServer(st, reg, nil), m
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestStatusEndpoints(t *testing.T) {
	srv, m := newTestServer(t)
	h := srv.Handler()

	rec, body := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	rec, body = get(t, h, "/api/devices")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, body["count"])
	devices := body["devices"].([]any)
	assert.Equal(t, "laptop.lan", devices[0].(map[string]any)["hostname"])

	rec, body = get(t, h, "/api/outbox")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, body["pending"])

	rec, body = get(t, h, "/api/dns/stats?hours=1&top=5")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, body["total"])

	rec, _ = get(t, h, "/api/dns/stats?top=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	m.DNSLine(metrics.LineBlock)
	rec, _ = get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "edgewatch_dns_blocks_total 1")
}

func TestStatusReadOnly(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/devices", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	srv, _ := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://" + ln.Addr().String() + "/healthz")
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
