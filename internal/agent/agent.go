// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package agent runs the detection loops: discovery, DNS monitoring, outbox
// dispatch, and the optional analysis pipeline.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"grimm.is/edgewatch/internal/analysis"
	"grimm.is/edgewatch/internal/api"
	"grimm.is/edgewatch/internal/config"
	"grimm.is/edgewatch/internal/discovery"
	"grimm.is/edgewatch/internal/dispatch"
	"grimm.is/edgewatch/internal/dnsmon"
	"grimm.is/edgewatch/internal/enforcement"
	"grimm.is/edgewatch/internal/errors"
	"grimm.is/edgewatch/internal/events"
	"grimm.is/edgewatch/internal/logging"
	"grimm.is/edgewatch/internal/metrics"
	"grimm.is/edgewatch/internal/store"
	"grimm.is/edgewatch/internal/version"
)

// Loop names used in logs and metrics.
const (
	LoopDiscovery = "discovery"
	LoopDNS       = "dns"
	LoopDispatch  = "dispatch"
	LoopAnalysis  = "analysis"
)

// Options overrides the collaborators New would otherwise build from config.
type Options struct {
	Source   discovery.NeighborSource
	Resolver discovery.Resolver
	Sender   dispatch.Sender
	Factory  *events.Factory
	Enforcer enforcement.Enforcer
	Metrics  *metrics.Metrics
}

// Agent owns the loops and the components they drive.
type Agent struct {
	cfg    *config.Config
	store  *store.Store
	logger *logging.Logger

	scanner    *discovery.Scanner
	monitor    *dnsmon.Monitor
	dispatcher *dispatch.Dispatcher
	pipeline   *analysis.Pipeline
	enforcer   enforcement.Enforcer

	metrics  *metrics.Metrics
	registry *prometheus.Registry
}

// New wires the agent. The store stays owned by the caller.
func New(cfg *config.Config, st *store.Store, opts Options, logger *logging.Logger) (*Agent, error) {
	if logger == nil {
		logger = logging.WithComponent("agent")
	}

	m := opts.Metrics
	if m == nil {
		m = metrics.NewMetrics()
	}
	registry, err := metrics.NewRegistry(m)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "register metrics")
	}

	factory := opts.Factory
	if factory == nil {
		factory = events.NewFactory(version.Version)
	}

	source := opts.Source
	if source == nil {
		source, err = neighborSource(cfg, logger)
		if err != nil {
			return nil, err
		}
	}
	resolver := opts.Resolver
	if resolver == nil {
		resolver = discovery.NewPTRResolver(cfg.Discovery.ResolverAddr, cfg.ResolverTimeout())
	}
	sender := opts.Sender
	if sender == nil {
		sender = dispatch.NewHTTPSender(cfg.Backend.URL, string(cfg.Backend.APIToken), cfg.BackendTimeout())
	}
	enforcer := opts.Enforcer
	if enforcer == nil {
		auditor := enforcement.NewLogAuditor(logger.WithComponent("audit"), enforcement.DefaultAuditCapacity)
		enforcer = enforcement.NewGated(cfg, auditor, logger.WithComponent("enforcement"))
	}

	a := &Agent{
		cfg:      cfg,
		store:    st,
		logger:   logger,
		enforcer: enforcer,
		metrics:  m,
		registry: registry,
	}
	a.scanner = discovery.NewScanner(source, resolver, st, factory, cfg.LANFilter(), logger.WithComponent("discovery"))
	if paths := cfg.Discovery.OUIPaths; len(paths) > 0 {
		db, err := discovery.LoadVendorDB(paths...)
		if err != nil {
			logger.Warn("vendor registry unavailable, device vendors disabled", "error", err)
		} else {
			logger.Info("vendor registry loaded", "prefixes", db.Len())
			a.scanner.SetVendorDB(db)
		}
	}
	a.monitor = dnsmon.NewMonitor(cfg.DNS.LogPath, st, factory, m, logger.WithComponent("dns"))
	a.dispatcher = dispatch.NewDispatcher(st, sender, m, logger.WithComponent("dispatch"))
	if cfg.Analysis.Enabled {
		a.pipeline = analysis.NewPipeline(st, factory, analysis.BaselineConfig{
			LearningPeriod: time.Duration(cfg.Analysis.BaselineHours) * time.Hour,
			EVELogPath:     cfg.Analysis.EVELogPath,
		}, logger.WithComponent("analysis"))
	}
	return a, nil
}

func neighborSource(cfg *config.Config, logger *logging.Logger) (discovery.NeighborSource, error) {
	switch cfg.Discovery.Source {
	case config.NeighborSourceNetlink:
		src, err := discovery.NewNetlinkSource()
		if err != nil {
			return nil, err
		}
		return src, nil
	case config.NeighborSourceCommand, "":
		return discovery.NewCommandSource(cfg.NeighborCommandTimeout(), logger.WithComponent("discovery")), nil
	default:
		return nil, errors.Errorf(errors.KindValidation, "unknown neighbor source %q", cfg.Discovery.Source)
	}
}

// Registry is the metrics registry the status API serves.
func (a *Agent) Registry() *prometheus.Registry { return a.registry }

// Run starts every loop and blocks until ctx is cancelled. Unit failures
// never end a loop, so Run only returns once shutdown completes.
func (a *Agent) Run(ctx context.Context) error {
	a.logBanner()

	g, ctx := errgroup.WithContext(ctx)

	var dnsWake chan struct{}
	if a.cfg.WatchDNSLog() {
		dnsWake = make(chan struct{}, 1)
		g.Go(func() error {
			if err := a.monitor.Watch(ctx, dnsWake); err != nil {
				a.logger.Warn("DNS log watch unavailable, polling only", "path", a.monitor.Path(), "error", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		a.loop(ctx, LoopDiscovery, a.cfg.DiscoveryInterval(), nil, a.RunDiscovery)
		return nil
	})
	g.Go(func() error {
		a.loop(ctx, LoopDNS, a.cfg.DNSPollInterval(), dnsWake, a.RunDNS)
		return nil
	})
	g.Go(func() error {
		a.loop(ctx, LoopDispatch, a.cfg.DispatchInterval(), nil, a.RunDispatch)
		return nil
	})
	if a.pipeline != nil {
		g.Go(func() error {
			a.loop(ctx, LoopAnalysis, a.cfg.FlowSummaryInterval(), nil, a.RunAnalysis)
			return nil
		})
	}

	if listen := a.cfg.Status.Listen; listen != "" {
		srv := api.NewServer(a.store, a.registry, a.logger.WithComponent("api"))
		g.Go(func() error {
			if err := srv.ListenAndServe(ctx, listen); err != nil {
				a.logger.Error("status API stopped", "addr", listen, "error", err)
			}
			return nil
		})
	}

	err := g.Wait()
	a.logger.Info("agent stopped")
	return err
}

// loop runs unit, then waits for the interval, a wake-up, or shutdown.
func (a *Agent) loop(ctx context.Context, name string, interval time.Duration, wake <-chan struct{}, unit func(context.Context) error) {
	a.logger.Info("loop started", "loop", name, "interval", interval.String())
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		a.runUnit(ctx, name, unit)

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(interval)

		select {
		case <-ctx.Done():
			a.logger.Info("loop stopped", "loop", name)
			return
		case <-timer.C:
		case <-wake:
		}
	}
}

// runUnit executes one iteration, converting a panic into an error.
func (a *Agent) runUnit(ctx context.Context, name string, unit func(context.Context) error) (err error) {
	panicked := false
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			err = errors.Errorf(errors.KindInternal, "panic in %s loop: %v", name, r)
			a.logger.Error("loop iteration panicked", "loop", name, "panic", fmt.Sprint(r))
		}
		a.metrics.LoopRun(name, err, panicked)
	}()

	err = unit(ctx)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		// Interrupted by shutdown.
		err = nil
	case errors.IsTransient(err):
		a.logger.Warn("loop iteration failed, retrying next cycle", "loop", name, "error", err)
	default:
		a.logger.Error("loop iteration failed", "loop", name, "error", err)
	}
	return err
}

// RunDiscovery performs one neighbor scan.
func (a *Agent) RunDiscovery(ctx context.Context) error {
	recs, err := a.scanner.Scan(ctx)
	a.observe(ctx, recs)
	return err
}

// RunDNS processes lines appended to the DNS log since the last call.
func (a *Agent) RunDNS(ctx context.Context) error {
	recs, err := a.monitor.Poll(ctx)
	a.observe(ctx, recs)
	return err
}

// RunDispatch drains one batch of the outbox to the backend. A failed send
// is logged by the dispatcher and retried next cycle; only store failures
// are returned.
func (a *Agent) RunDispatch(ctx context.Context) error {
	if _, err := a.dispatcher.DrainAndSend(ctx, a.cfg.Dispatch.BatchSize); err != nil {
		return err
	}

	stats, err := a.store.OutboxStats(context.WithoutCancel(ctx))
	if err != nil {
		return err
	}
	a.metrics.SetPending(stats.Pending)
	return nil
}

// RunAnalysis runs the flow/anomaly pipeline once. It is a no-op when
// analysis is disabled.
func (a *Agent) RunAnalysis(ctx context.Context) error {
	if a.pipeline == nil {
		return nil
	}
	recs, err := a.pipeline.Run(ctx)
	a.observe(ctx, recs)
	return err
}

// observe counts enqueued records and offers each alert to the enforcer.
func (a *Agent) observe(ctx context.Context, recs []events.Record) {
	a.metrics.ObserveRecords(recs)
	for _, r := range recs {
		alert, ok := r.(*events.Alert)
		if !ok {
			continue
		}
		action, ok := a.enforcer.Recommend(ctx, alert)
		if !ok {
			continue
		}
		var applied bool
		var err error
		switch action {
		case enforcement.ActionQuarantine:
			applied, err = a.enforcer.Quarantine(ctx, alert.DeviceID, alert.Title)
		case enforcement.ActionUnquarantine:
			applied, err = a.enforcer.Unquarantine(ctx, alert.DeviceID, alert.Title)
		}
		if err != nil {
			a.logger.Warn("enforcement failed", "action", action, "device", alert.DeviceID, "error", err)
			continue
		}
		a.logger.Info("enforcement requested", "action", action, "device", alert.DeviceID, "applied", applied)
	}
}

func (a *Agent) logBanner() {
	c := a.cfg
	a.logger.Info("starting "+version.Name, "version", version.Version)
	a.logger.Info("configuration",
		"lan_interface", c.LANInterface,
		"wan_interface", c.WANInterface,
		"backend", c.Backend.URL,
		"db", c.Storage.DBPath,
		"dns_log", c.DNS.LogPath,
		"neighbor_source", c.Discovery.Source,
		"discovery_interval", c.DiscoveryInterval().String(),
		"dns_poll_interval", c.DNSPollInterval().String(),
		"dispatch_interval", c.DispatchInterval().String(),
		"analysis", c.Analysis.Enabled)
	a.logger.Info("safety modes",
		"monitor_only", c.MonitorOnly(),
		"dry_run", c.DryRun(),
		"enforcement_allowed", c.EnforcementAllowed())
	if c.LANFilter() == "" {
		a.logger.Warn("lan_interface not configured, discovery reports neighbors on every interface")
	}
}
