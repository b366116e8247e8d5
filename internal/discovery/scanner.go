// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package discovery finds devices on the LAN by reading the kernel neighbor
// table and reports them as device_seen events, raising an alert the first
// time a MAC address appears.
package discovery

import (
	"context"
	"fmt"

	"grimm.is/edgewatch/internal/events"
	"grimm.is/edgewatch/internal/logging"
	"grimm.is/edgewatch/internal/store"
)

// DeviceStore is the subset of the store discovery writes to.
type DeviceStore interface {
	UpsertDevice(ctx context.Context, mac, ip, hostname string) (bool, error)
	Enqueue(ctx context.Context, rec events.Record) error
}

var _ DeviceStore = (*store.Store)(nil)

// Scanner runs discovery scans.
type Scanner struct {
	source   NeighborSource
	resolver Resolver
	store    DeviceStore
	factory  *events.Factory
	iface    string
	vendors  *VendorDB
	logger   *logging.Logger
}

// NewScanner creates a scanner. iface restricts discovery to one interface;
// empty means all interfaces. A nil resolver disables reverse lookups.
func NewScanner(source NeighborSource, resolver Resolver, st DeviceStore, factory *events.Factory, iface string, logger *logging.Logger) *Scanner {
	if resolver == nil {
		resolver = NopResolver{}
	}
	if logger == nil {
		logger = logging.WithComponent("discovery")
	}
	return &Scanner{
		source:   source,
		resolver: resolver,
		store:    st,
		factory:  factory,
		iface:    iface,
		logger:   logger,
	}
}

// SetVendorDB enables manufacturer lookups for device_seen events.
func (s *Scanner) SetVendorDB(db *VendorDB) {
	s.vendors = db
}

// Scan reads the neighbor table once and records every active neighbor.
// It returns the events and alerts it enqueued. A store failure aborts the
// scan; records enqueued before the failure are still returned.
func (s *Scanner) Scan(ctx context.Context) ([]events.Record, error) {
	table, err := s.source.Table(ctx)
	if err != nil {
		return nil, err
	}

	neighbors := ParseNeighborTable(table, s.iface)
	if len(neighbors) == 0 {
		s.logger.Debug("no active neighbors found", "interface", s.ifaceLabel())
		return nil, nil
	}

	var out []events.Record
	for _, n := range neighbors {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		hostname := s.resolver.LookupHostname(ctx, n.IP)

		isNew, err := s.store.UpsertDevice(ctx, n.MAC, n.IP, hostname)
		if err != nil {
			return out, err
		}

		ev := s.factory.DeviceSeen(n.MAC, n.IP, hostname, isNew)
		if vendor := s.vendors.Lookup(n.MAC); vendor != "" {
			ev.Data["vendor"] = vendor
		}
		if err := s.store.Enqueue(ctx, ev); err != nil {
			return out, err
		}
		out = append(out, ev)

		if !isNew {
			s.logger.Debug("known device seen", "mac", n.MAC, "ip", n.IP)
			continue
		}

		s.logger.Info("new device discovered", "mac", n.MAC, "ip", n.IP, "hostname", hostname)
		alert, err := s.newDeviceAlert(n, hostname, ev.ID)
		if err != nil {
			return out, err
		}
		if err := s.store.Enqueue(ctx, alert); err != nil {
			return out, err
		}
		out = append(out, alert)
	}

	s.logger.Info("discovery scan complete", "devices", len(neighbors), "records", len(out))
	return out, nil
}

func (s *Scanner) newDeviceAlert(n Neighbor, hostname, eventID string) (*events.Alert, error) {
	named := ""
	if hostname != "" {
		named = "named " + hostname + " "
	}
	var host any
	if hostname != "" {
		host = hostname
	}

	return s.factory.Alert(events.AlertSpec{
		DeviceID: n.MAC,
		Severity: events.SeverityLow,
		Title:    "New device joined the network",
		Explanation: fmt.Sprintf(
			"A new device with address %s (%s) %shas appeared on your network. "+
				"If you recognize this device, you can mark it as trusted. "+
				"If not, consider investigating further.",
			n.MAC, n.IP, named),
		Evidence: map[string]any{
			"source_module": events.SourceDiscovery,
			"details": map[string]any{
				"mac_address": n.MAC,
				"ip_address":  n.IP,
				"hostname":    host,
			},
		},
		RecommendedAction: "Check if this device belongs to your staff or business. " +
			"If you don't recognize it, you can quarantine it from the app.",
		Confidence:      1.0,
		RelatedEventIDs: []string{eventID},
	})
}

func (s *Scanner) ifaceLabel() string {
	if s.iface == "" {
		return "all interfaces"
	}
	return s.iface
}
