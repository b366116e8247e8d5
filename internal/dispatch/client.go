// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package dispatch

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"grimm.is/edgewatch/internal/errors"
	"grimm.is/edgewatch/internal/events"
	"grimm.is/edgewatch/internal/store"
	"grimm.is/edgewatch/internal/version"
)

// Sender delivers one outbox record to the backend.
type Sender interface {
	Send(ctx context.Context, rec store.PendingRecord) error
}

// HTTPSender posts records to the backend ingest API: events to
// <base>/events and alerts to <base>/alerts.
type HTTPSender struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPSender creates a sender. An empty token omits the Authorization
// header.
func NewHTTPSender(baseURL, token string, timeout time.Duration) *HTTPSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSender{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Endpoint returns the URL a record of the given kind is posted to.
func (s *HTTPSender) Endpoint(kind events.Kind) string {
	if kind == events.KindAlert {
		return s.baseURL + "/alerts"
	}
	return s.baseURL + "/events"
}

// Send posts the record's stored JSON verbatim. Only 200 and 201 count as
// delivered.
func (s *HTTPSender) Send(ctx context.Context, rec store.PendingRecord) error {
	url := s.Endpoint(rec.Kind)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(rec.Payload))
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "build dispatch request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.Name+"/"+version.Version)
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return errors.Attr(errors.Wrap(err, errors.KindUnavailable, "backend unreachable"), "url", url)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return nil
	}
	err = errors.Errorf(errors.KindUnavailable, "backend returned status %d", resp.StatusCode)
	return errors.Attr(errors.Attr(err, "url", url), "status", resp.StatusCode)
}
