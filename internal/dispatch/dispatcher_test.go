// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package dispatch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/edgewatch/internal/errors"
	"grimm.is/edgewatch/internal/events"
	"grimm.is/edgewatch/internal/store"
	"grimm.is/edgewatch/internal/testutil"
)

type received struct {
	path string
	auth string
	id   string
}

// backend records requests and answers with the status chosen per record id.
type backend struct {
	mu       sync.Mutex
	requests []received
	status   map[string]int
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var rec struct {
		ID string `json:"id"`
	}
	json.Unmarshal(body, &rec)

	b.mu.Lock()
	b.requests = append(b.requests, received{path: r.URL.Path, auth: r.Header.Get("Authorization"), id: rec.ID})
	code, ok := b.status[rec.ID]
	b.mu.Unlock()
	if !ok {
		code = http.StatusCreated
	}
	w.WriteHeader(code)
}

func (b *backend) ids() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, r := range b.requests {
		out = append(out, r.id)
	}
	return out
}

func setup(t *testing.T) (*store.Store, *backend, *Dispatcher, *events.Factory) {
	t.Helper()
	st := testutil.OpenStore(t, nil)
	be := &backend{status: map[string]int{}}
	srv := httptest.NewServer(be)
	t.Cleanup(srv.Close)
	d := NewDispatcher(st, NewHTTPSender(srv.URL+"/", "secret", time.Second), nil, nil)
	return st, be, d, events.NewFactory("test")
}

func pendingIDs(t *testing.T, st *store.Store) []string {
	t.Helper()
	pending, err := st.PendingRecords(context.Background(), 100)
	require.NoError(t, err)
	var ids []string
	for _, p := range pending {
		ids = append(ids, p.ID)
	}
	return ids
}

func TestDrainAndSend_NothingPending(t *testing.T) {
	_, be, d, _ := setup(t)
	res, err := d.DrainAndSend(context.Background(), 50)
	require.NoError(t, err)
	assert.Zero(t, res.Pending)
	assert.Empty(t, be.ids(), "no network call when the outbox is empty")
}

func TestDrainAndSend_AllDelivered(t *testing.T) {
	st, be, d, f := setup(t)
	ctx := context.Background()

	ev := f.DeviceSeen("11:22:33:44:55:66", "192.168.1.50", "", true)
	alert, err := f.Alert(events.AlertSpec{Severity: events.SeverityLow, Explanation: "new", RelatedEventIDs: []string{ev.ID}})
	require.NoError(t, err)
	require.NoError(t, st.Enqueue(ctx, ev))
	require.NoError(t, st.Enqueue(ctx, alert))

	res, err := d.DrainAndSend(ctx, 50)
	require.NoError(t, err)
	assert.NoError(t, res.SendErr)
	assert.Equal(t, []string{ev.ID, alert.ID}, res.Confirmed)
	assert.Empty(t, pendingIDs(t, st))

	require.Len(t, be.requests, 2)
	assert.Equal(t, "/events", be.requests[0].path)
	assert.Equal(t, "/alerts", be.requests[1].path)
	assert.Equal(t, "Bearer secret", be.requests[0].auth)
}

func TestDrainAndSend_FirstFailureStopsBatch(t *testing.T) {
	st, be, d, f := setup(t)
	ctx := context.Background()

	a := f.DeviceSeen("11:22:33:44:55:66", "10.0.0.1", "", false)
	b := f.DeviceSeen("11:22:33:44:55:66", "10.0.0.1", "", false)
	require.NoError(t, st.Enqueue(ctx, a))
	require.NoError(t, st.Enqueue(ctx, b))
	be.status[a.ID] = http.StatusInternalServerError

	res, err := d.DrainAndSend(ctx, 50)
	require.NoError(t, err)
	require.Error(t, res.SendErr)
	assert.Equal(t, errors.KindUnavailable, errors.GetKind(res.SendErr))
	assert.Empty(t, res.Confirmed)
	assert.Equal(t, []string{a.ID}, be.ids(), "B must not be sent after A fails")
	assert.Equal(t, []string{a.ID, b.ID}, pendingIDs(t, st))
}

func TestDrainAndSend_PartialSuccess(t *testing.T) {
	st, be, d, f := setup(t)
	ctx := context.Background()

	a := f.DeviceSeen("11:22:33:44:55:66", "10.0.0.1", "", false)
	b := f.DeviceSeen("11:22:33:44:55:66", "10.0.0.1", "", false)
	c := f.DeviceSeen("11:22:33:44:55:66", "10.0.0.1", "", false)
	for _, ev := range []*events.Event{a, b, c} {
		require.NoError(t, st.Enqueue(ctx, ev))
	}
	be.status[b.ID] = http.StatusBadGateway

	res, err := d.DrainAndSend(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, res.Confirmed)
	assert.Equal(t, []string{b.ID, c.ID}, pendingIDs(t, st))

	// Backend recovers: the retry resends B then C, never A.
	delete(be.status, b.ID)
	res, err = d.DrainAndSend(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID, c.ID}, res.Confirmed)
	assert.Equal(t, []string{a.ID, b.ID, b.ID, c.ID}, be.ids())
	assert.Empty(t, pendingIDs(t, st))
}

func TestDrainAndSend_RespectsLimit(t *testing.T) {
	st, be, d, f := setup(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, st.Enqueue(ctx, f.DeviceSeen("11:22:33:44:55:66", "10.0.0.1", "", false)))
	}

	res, err := d.DrainAndSend(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, res.Confirmed, 2)
	assert.Len(t, be.ids(), 2)
	assert.Len(t, pendingIDs(t, st), 3)
}

func TestDrainAndSend_BackendDown(t *testing.T) {
	st := testutil.OpenStore(t, nil)
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	d := NewDispatcher(st, NewHTTPSender(url, "", 200*time.Millisecond), nil, nil)
	ev := events.NewFactory("test").DeviceSeen("11:22:33:44:55:66", "10.0.0.1", "", false)
	require.NoError(t, st.Enqueue(context.Background(), ev))

	res, err := d.DrainAndSend(context.Background(), 50)
	require.NoError(t, err)
	require.Error(t, res.SendErr)
	assert.True(t, errors.IsTransient(res.SendErr))
	assert.Equal(t, []string{ev.ID}, pendingIDs(t, st))
}

func TestDrainAndSend_CancelledBeforeSend(t *testing.T) {
	st, be, d, f := setup(t)
	require.NoError(t, st.Enqueue(context.Background(), f.DeviceSeen("11:22:33:44:55:66", "10.0.0.1", "", false)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.DrainAndSend(ctx, 50)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, be.ids())
	assert.Len(t, pendingIDs(t, st), 1)
}

func TestHTTPSender_NoToken(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewHTTPSender(srv.URL, "", time.Second)
	err := s.Send(context.Background(), store.PendingRecord{ID: "x", Kind: events.KindEvent, Payload: []byte(`{"id":"x"}`)})
	require.NoError(t, err)
	assert.Empty(t, auth)
	assert.Equal(t, srv.URL+"/alerts", s.Endpoint(events.KindAlert))
}
