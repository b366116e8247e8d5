// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package dispatch drains the outbox to the backend.
//
// Records are sent oldest first, one request each. The first failure stops
// the batch so the backend never sees records out of order; everything not
// acknowledged stays pending and is resent verbatim next time. Delivery is
// at-least-once and the backend deduplicates by record id.
package dispatch

import (
	"context"

	"grimm.is/edgewatch/internal/logging"
	"grimm.is/edgewatch/internal/metrics"
	"grimm.is/edgewatch/internal/store"
)

// DefaultBatchSize caps one drain.
const DefaultBatchSize = 50

// Outbox is the subset of the store the dispatcher uses.
type Outbox interface {
	PendingRecords(ctx context.Context, limit int) ([]store.PendingRecord, error)
	MarkDispatched(ctx context.Context, ids []string) error
}

var _ Outbox = (*store.Store)(nil)

// Result describes one drain.
type Result struct {
	Pending   int
	Confirmed []string
	// SendErr is the failure that stopped the batch, if any.
	SendErr error
}

// Dispatcher sends pending outbox records.
type Dispatcher struct {
	outbox  Outbox
	sender  Sender
	metrics *metrics.Metrics
	logger  *logging.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(outbox Outbox, sender Sender, m *metrics.Metrics, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default().WithComponent("dispatch")
	}
	return &Dispatcher{outbox: outbox, sender: sender, metrics: m, logger: logger}
}

// DrainAndSend sends up to limit pending records in order and marks the
// acknowledged ones dispatched. With nothing pending it returns without any
// network call.
//
// Cancelling ctx stops the batch between records; a request already in
// flight is allowed to finish and its acknowledgement is recorded. The
// returned error reports store failures only; a failed send is reported in
// Result.SendErr.
func (d *Dispatcher) DrainAndSend(ctx context.Context, limit int) (Result, error) {
	if limit <= 0 {
		limit = DefaultBatchSize
	}

	pending, err := d.outbox.PendingRecords(ctx, limit)
	if err != nil {
		return Result{}, err
	}
	res := Result{Pending: len(pending)}
	if len(pending) == 0 {
		return res, nil
	}

	sendCtx := context.WithoutCancel(ctx)
	for _, rec := range pending {
		if ctx.Err() != nil {
			d.logger.Debug("dispatch interrupted by shutdown", "sent", len(res.Confirmed))
			break
		}
		if err := d.sender.Send(sendCtx, rec); err != nil {
			res.SendErr = err
			d.logger.Warn("dispatch failed, will retry next cycle",
				"id", rec.ID,
				"kind", rec.Kind,
				"sent", len(res.Confirmed),
				"error", err)
			break
		}
		res.Confirmed = append(res.Confirmed, rec.ID)
	}

	d.metrics.Dispatched(len(res.Confirmed), res.SendErr != nil)

	if len(res.Confirmed) > 0 {
		if err := d.outbox.MarkDispatched(sendCtx, res.Confirmed); err != nil {
			return res, err
		}
		d.logger.Info("dispatched records", "count", len(res.Confirmed), "pending", len(pending)-len(res.Confirmed))
	}
	return res, nil
}
