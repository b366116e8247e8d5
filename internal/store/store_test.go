// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/edgewatch/internal/clock"
	"grimm.is/edgewatch/internal/errors"
	"grimm.is/edgewatch/internal/events"
)

var epoch = time.Date(2026, 2, 14, 10, 30, 45, 0, time.UTC)

func openTestStore(t *testing.T) (*Store, *clock.MockClock) {
	t.Helper()
	clk := clock.NewMockClock(epoch)
	s, err := Open(filepath.Join(t.TempDir(), "agent.db"), WithClock(clk))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, clk
}

func testFactory(clk clock.Clock) *events.Factory {
	f := events.NewFactory("test")
	f.Clock = clk
	return f
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "agent.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestOpen_Unwritable(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	_, err := Open(filepath.Join(blocker, "agent.db"))
	require.Error(t, err)
	assert.Equal(t, errors.KindUnavailable, errors.GetKind(err))
}

func TestUpsertDevice(t *testing.T) {
	s, clk := openTestStore(t)
	ctx := context.Background()
	mac := "11:22:33:44:55:66"

	isNew, err := s.UpsertDevice(ctx, mac, "192.168.1.50", "")
	require.NoError(t, err)
	assert.True(t, isNew)

	d, err := s.GetDevice(ctx, mac)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "192.168.1.50", d.IP)
	assert.Empty(t, d.Hostname)
	assert.Equal(t, epoch, d.FirstSeen)
	assert.Equal(t, epoch, d.LastSeen)

	clk.Advance(time.Minute)
	isNew, err = s.UpsertDevice(ctx, mac, "192.168.1.51", "laptop.lan")
	require.NoError(t, err)
	assert.False(t, isNew)

	d, err = s.GetDevice(ctx, mac)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.51", d.IP)
	assert.Equal(t, "laptop.lan", d.Hostname)
	assert.Equal(t, epoch, d.FirstSeen)
	assert.Equal(t, epoch.Add(time.Minute), d.LastSeen)
}

func TestUpsertDevice_HostnameNeverDowngraded(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	mac := "aa:bb:cc:dd:ee:ff"

	_, err := s.UpsertDevice(ctx, mac, "10.0.0.2", "printer.lan")
	require.NoError(t, err)
	_, err = s.UpsertDevice(ctx, mac, "10.0.0.2", "")
	require.NoError(t, err)

	d, err := s.GetDevice(ctx, mac)
	require.NoError(t, err)
	assert.Equal(t, "printer.lan", d.Hostname)
}

func TestUpsertDevice_LastSeenMonotonic(t *testing.T) {
	s, clk := openTestStore(t)
	ctx := context.Background()
	mac := "aa:bb:cc:dd:ee:01"

	clk.Advance(time.Hour)
	_, err := s.UpsertDevice(ctx, mac, "10.0.0.3", "")
	require.NoError(t, err)

	// Wall clock stepped backwards.
	clk.Set(epoch)
	_, err = s.UpsertDevice(ctx, mac, "10.0.0.3", "")
	require.NoError(t, err)

	d, err := s.GetDevice(ctx, mac)
	require.NoError(t, err)
	assert.Equal(t, epoch.Add(time.Hour), d.LastSeen)
}

func TestGetDevice_Unknown(t *testing.T) {
	s, _ := openTestStore(t)
	d, err := s.GetDevice(context.Background(), "00:00:00:00:00:00")
	assert.NoError(t, err)
	assert.Nil(t, d)
}

func TestListDevices(t *testing.T) {
	s, clk := openTestStore(t)
	ctx := context.Background()

	devices, err := s.ListDevices(ctx)
	require.NoError(t, err)
	assert.Empty(t, devices)

	_, err = s.UpsertDevice(ctx, "aa:aa:aa:aa:aa:aa", "10.0.0.10", "")
	require.NoError(t, err)
	clk.Advance(time.Second)
	_, err = s.UpsertDevice(ctx, "bb:bb:bb:bb:bb:bb", "10.0.0.11", "tv.lan")
	require.NoError(t, err)

	devices, err = s.ListDevices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "bb:bb:bb:bb:bb:bb", devices[0].MAC)
	assert.Equal(t, "aa:aa:aa:aa:aa:aa", devices[1].MAC)
}

func TestEnqueue_Idempotent(t *testing.T) {
	s, clk := openTestStore(t)
	ctx := context.Background()
	ev := testFactory(clk).DeviceSeen("11:22:33:44:55:66", "192.168.1.50", "", true)

	require.NoError(t, s.Enqueue(ctx, ev))
	require.NoError(t, s.Enqueue(ctx, ev))

	pending, err := s.PendingRecords(ctx, 50)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, ev.ID, pending[0].ID)
	assert.Equal(t, events.KindEvent, pending[0].Kind)

	var decoded events.Event
	require.NoError(t, json.Unmarshal(pending[0].Payload, &decoded))
	assert.Equal(t, ev.ID, decoded.ID)
	assert.Equal(t, events.TypeDeviceSeen, decoded.Type)
}

func TestPendingRecords_OrderAndLimit(t *testing.T) {
	s, clk := openTestStore(t)
	ctx := context.Background()
	f := testFactory(clk)

	var ids []string
	for i := 0; i < 5; i++ {
		ev := f.DeviceSeen("11:22:33:44:55:66", "192.168.1.50", "", false)
		ids = append(ids, ev.ID)
		require.NoError(t, s.Enqueue(ctx, ev))
	}
	alert, err := f.Alert(events.AlertSpec{Severity: events.SeverityLow, Explanation: "x"})
	require.NoError(t, err)
	require.NoError(t, s.Enqueue(ctx, alert))
	ids = append(ids, alert.ID)

	pending, err := s.PendingRecords(ctx, 3)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	for i, p := range pending {
		assert.Equal(t, ids[i], p.ID)
	}

	pending, err = s.PendingRecords(ctx, 50)
	require.NoError(t, err)
	require.Len(t, pending, 6)
	assert.Equal(t, events.KindAlert, pending[5].Kind)
}

func TestMarkDispatched(t *testing.T) {
	s, clk := openTestStore(t)
	ctx := context.Background()
	f := testFactory(clk)

	a := f.DeviceSeen("11:22:33:44:55:66", "10.0.0.1", "", false)
	b := f.DeviceSeen("11:22:33:44:55:66", "10.0.0.1", "", false)
	require.NoError(t, s.Enqueue(ctx, a))
	require.NoError(t, s.Enqueue(ctx, b))

	require.NoError(t, s.MarkDispatched(ctx, []string{a.ID, "no-such-id"}))
	require.NoError(t, s.MarkDispatched(ctx, nil))

	pending, err := s.PendingRecords(ctx, 50)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, b.ID, pending[0].ID)

	// Re-enqueueing a dispatched record must not resurrect it.
	require.NoError(t, s.Enqueue(ctx, a))
	pending, err = s.PendingRecords(ctx, 50)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	stats, err := s.OutboxStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Pending)
	assert.Equal(t, int64(1), stats.Dispatched)
	require.NotNil(t, stats.OldestPending)
}

func TestOutboxStats_Empty(t *testing.T) {
	s, _ := openTestStore(t)
	stats, err := s.OutboxStats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Pending)
	assert.Zero(t, stats.Dispatched)
	assert.Nil(t, stats.OldestPending)
}

func TestDNSBlocks(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	id1, err := s.RecordDNSBlock(ctx, "malware.example.com", "10.0.0.5", "", "Feb 14 10:30:45")
	require.NoError(t, err)
	id2, err := s.RecordDNSBlock(ctx, "ads.example.com", "unknown", "aa:bb:cc:dd:ee:ff", "Feb 14 10:30:46")
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	blocks, err := s.UnalertedDNSBlocks(ctx, 100)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, "malware.example.com", blocks[0].Domain)
	assert.Empty(t, blocks[0].ClientMAC)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", blocks[1].ClientMAC)
	assert.Equal(t, "Feb 14 10:30:45", blocks[0].Timestamp)

	require.NoError(t, s.MarkDNSBlocksAlerted(ctx, []int64{id1}))
	blocks, err = s.UnalertedDNSBlocks(ctx, 100)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, id2, blocks[0].ID)
}

func TestDNSBlockStats(t *testing.T) {
	s, clk := openTestStore(t)
	ctx := context.Background()

	_, err := s.RecordDNSBlock(ctx, "old.example.com", "10.0.0.9", "", "Feb 13 09:00:00")
	require.NoError(t, err)

	clk.Advance(24 * time.Hour)
	since := clk.Now()
	for _, b := range []struct{ domain, ip string }{
		{"malware.example.com", "10.0.0.5"},
		{"malware.example.com", "10.0.0.6"},
		{"ads.example.com", "10.0.0.5"},
	} {
		_, err := s.RecordDNSBlock(ctx, b.domain, b.ip, "", "Feb 14 10:30:45")
		require.NoError(t, err)
	}

	stats, err := s.DNSBlockStats(ctx, since, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	require.Len(t, stats.TopDomains, 2)
	assert.Equal(t, Count{Name: "malware.example.com", Count: 2}, stats.TopDomains[0])
	require.Len(t, stats.TopClients, 2)
	assert.Equal(t, Count{Name: "10.0.0.5", Count: 2}, stats.TopClients[0])

	stats, err = s.DNSBlockStats(ctx, since, 1)
	require.NoError(t, err)
	assert.Len(t, stats.TopDomains, 1)
}
