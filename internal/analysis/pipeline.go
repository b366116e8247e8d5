// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package analysis

import (
	"context"
	"time"

	"grimm.is/edgewatch/internal/events"
	"grimm.is/edgewatch/internal/logging"
)

// Enqueuer persists records for dispatch.
type Enqueuer interface {
	Enqueue(ctx context.Context, rec events.Record) error
}

// Pipeline runs one analysis cycle: collect flow summaries, emit them as
// events, feed the baseline, check for anomalies, and drain the IDS.
type Pipeline struct {
	Collector FlowCollector
	Baseline  Baseline
	Detector  AnomalyDetector
	IDS       IDSAdapter

	store   Enqueuer
	factory *events.Factory
	logger  *logging.Logger
}

// NewPipeline wires the no-op collaborators. Replace the exported fields to
// plug in real ones.
func NewPipeline(st Enqueuer, factory *events.Factory, learning BaselineConfig, logger *logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.WithComponent("analysis")
	}
	return &Pipeline{
		Collector: NopCollector{},
		Baseline:  NopBaseline{LearningPeriod: learning.LearningPeriod},
		Detector:  NopDetector{},
		IDS:       NopIDS{EVEPath: learning.EVELogPath},
		store:     st,
		factory:   factory,
		logger:    logger,
	}
}

// BaselineConfig carries the analysis settings the collaborators need.
type BaselineConfig struct {
	LearningPeriod time.Duration
	EVELogPath     string
}

// Run executes one cycle and returns every record it enqueued. Collaborator
// errors are logged and skipped; store errors abort the cycle.
func (p *Pipeline) Run(ctx context.Context) ([]events.Record, error) {
	var out []events.Record
	enqueue := func(recs ...events.Record) error {
		for _, r := range recs {
			if err := p.store.Enqueue(ctx, r); err != nil {
				return err
			}
			out = append(out, r)
		}
		return nil
	}

	summaries, err := p.Collector.Collect(ctx)
	if err != nil {
		p.logger.Warn("flow collection failed", "error", err)
	}
	for _, s := range summaries {
		if err := enqueue(p.factory.FlowSummary(s.DeviceMAC, s.Data())); err != nil {
			return out, err
		}
		if err := p.Baseline.Update(ctx, s.DeviceMAC, s); err != nil {
			p.logger.Warn("baseline update failed", "mac", s.DeviceMAC, "error", err)
		}
		if !p.Baseline.Stable(ctx, s.DeviceMAC) {
			continue
		}
		anomalies, err := p.Detector.Check(ctx, s.DeviceMAC, s)
		if err != nil {
			p.logger.Warn("anomaly check failed", "mac", s.DeviceMAC, "error", err)
			continue
		}
		if err := enqueue(anomalies...); err != nil {
			return out, err
		}
	}

	idsRecs, err := p.IDS.Poll(ctx)
	if err != nil {
		p.logger.Warn("IDS poll failed", "error", err)
	}
	if err := enqueue(idsRecs...); err != nil {
		return out, err
	}

	if len(out) > 0 {
		p.logger.Debug("analysis cycle complete", "records", len(out))
	}
	return out, nil
}
