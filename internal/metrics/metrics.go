// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics exposes agent counters to Prometheus.
//
// All recording methods are safe on a nil *Metrics so components can be
// built without instrumentation in tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"grimm.is/edgewatch/internal/events"
)

// DNS line classifications.
const (
	LineBlock   = "block"
	LineQuery   = "query"
	LineIgnored = "ignored"
)

// Metrics holds all agent Prometheus metrics
type Metrics struct {
	EventsEnqueued *prometheus.CounterVec
	AlertsRaised   *prometheus.CounterVec

	RecordsDispatched prometheus.Counter
	DispatchFailures  prometheus.Counter
	OutboxPending     prometheus.Gauge

	DNSBlocks prometheus.Counter
	DNSLines  *prometheus.CounterVec

	LoopRuns   *prometheus.CounterVec
	LoopErrors *prometheus.CounterVec
	LoopPanics *prometheus.CounterVec
}

// NewMetrics creates the agent metrics. They are not registered.
func NewMetrics() *Metrics {
	return &Metrics{
		EventsEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edgewatch_events_enqueued_total",
			Help: "Total number of events written to the outbox",
		}, []string{"type"}),

		AlertsRaised: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edgewatch_alerts_raised_total",
			Help: "Total number of alerts written to the outbox",
		}, []string{"severity"}),

		RecordsDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "edgewatch_records_dispatched_total",
			Help: "Total number of outbox records acknowledged by the backend",
		}),

		DispatchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "edgewatch_dispatch_failures_total",
			Help: "Total number of dispatch batches stopped by a failed send",
		}),

		OutboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "edgewatch_outbox_pending",
			Help: "Number of outbox records awaiting dispatch",
		}),

		DNSBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "edgewatch_dns_blocks_total",
			Help: "Total number of sinkholed DNS lookups observed",
		}),

		DNSLines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edgewatch_dns_log_lines_total",
			Help: "Total number of dnsmasq log lines read, by classification",
		}, []string{"result"}),

		LoopRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edgewatch_loop_runs_total",
			Help: "Total number of loop iterations",
		}, []string{"loop"}),

		LoopErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edgewatch_loop_errors_total",
			Help: "Total number of loop iterations that returned an error",
		}, []string{"loop"}),

		LoopPanics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edgewatch_loop_panics_total",
			Help: "Total number of recovered loop panics",
		}, []string{"loop"}),
	}
}

// Describe implements prometheus.Collector
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.EventsEnqueued.Describe(ch)
	m.AlertsRaised.Describe(ch)
	m.RecordsDispatched.Describe(ch)
	m.DispatchFailures.Describe(ch)
	m.OutboxPending.Describe(ch)
	m.DNSBlocks.Describe(ch)
	m.DNSLines.Describe(ch)
	m.LoopRuns.Describe(ch)
	m.LoopErrors.Describe(ch)
	m.LoopPanics.Describe(ch)
}

// Collect implements prometheus.Collector
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.EventsEnqueued.Collect(ch)
	m.AlertsRaised.Collect(ch)
	m.RecordsDispatched.Collect(ch)
	m.DispatchFailures.Collect(ch)
	m.OutboxPending.Collect(ch)
	m.DNSBlocks.Collect(ch)
	m.DNSLines.Collect(ch)
	m.LoopRuns.Collect(ch)
	m.LoopErrors.Collect(ch)
	m.LoopPanics.Collect(ch)
}

// NewRegistry returns a registry holding m plus the Go runtime and process
// collectors.
func NewRegistry(m *Metrics) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	cs := []prometheus.Collector{
		m,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// ObserveRecords counts records that were enqueued.
func (m *Metrics) ObserveRecords(recs []events.Record) {
	if m == nil {
		return
	}
	for _, r := range recs {
		switch v := r.(type) {
		case *events.Event:
			m.EventsEnqueued.WithLabelValues(string(v.Type)).Inc()
		case *events.Alert:
			m.AlertsRaised.WithLabelValues(string(v.Severity)).Inc()
		}
	}
}

// DNSLine counts one parsed log line.
func (m *Metrics) DNSLine(result string) {
	if m == nil {
		return
	}
	m.DNSLines.WithLabelValues(result).Inc()
	if result == LineBlock {
		m.DNSBlocks.Inc()
	}
}

// Dispatched records the outcome of one drain.
func (m *Metrics) Dispatched(sent int, failed bool) {
	if m == nil {
		return
	}
	m.RecordsDispatched.Add(float64(sent))
	if failed {
		m.DispatchFailures.Inc()
	}
}

// SetPending updates the outbox backlog gauge.
func (m *Metrics) SetPending(n int64) {
	if m == nil {
		return
	}
	m.OutboxPending.Set(float64(n))
}

// LoopRun counts one loop iteration and its outcome.
func (m *Metrics) LoopRun(loop string, err error, panicked bool) {
	if m == nil {
		return
	}
	m.LoopRuns.WithLabelValues(loop).Inc()
	if panicked {
		m.LoopPanics.WithLabelValues(loop).Inc()
	} else if err != nil {
		m.LoopErrors.WithLabelValues(loop).Inc()
	}
}
