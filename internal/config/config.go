// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config holds the agent configuration surface.
//
// A config file is optional. Values are resolved in order: built-in
// defaults, the file (HCL, JSON, or YAML), then EDGEWATCH_* environment
// variables. Durations accept Go syntax ("30s", "2m") or a bare number of
// seconds.
package config

import (
	"time"
)

// Placeholder is the value interface names carry until an operator sets them.
const Placeholder = "CHANGE ME"

// Default values.
const (
	DefaultBackendURL          = "http://localhost:3000"
	DefaultDiscoveryInterval   = 30 * time.Second
	DefaultDNSPollInterval     = 5 * time.Second
	DefaultDispatchMargin      = 5 * time.Second
	DefaultDispatchBatch       = 50
	DefaultFlowSummaryInterval = 60 * time.Second
	DefaultBaselineHours       = 24
	DefaultDNSLogPath          = "/var/log/dnsmasq.log"
	DefaultDNSBlocklistPath    = "/etc/dnsmasq.d/blocklist.conf"
	DefaultDBPath              = "/var/lib/edgewatch/agent.db"
	DefaultLogPath             = "/var/log/edgewatch.log"
	DefaultLogLevel            = "info"
	DefaultNeighborCmdTimeout  = 10 * time.Second
	DefaultResolverTimeout     = 2 * time.Second
	DefaultBackendTimeout      = 10 * time.Second

	NeighborSourceCommand = "command"
	NeighborSourceNetlink = "netlink"
)

// Config is the root agent configuration.
type Config struct {
	// Interface facing the protected LAN. Discovery only reports neighbors on
	// this interface unless it is empty or still the placeholder.
	LANInterface string `hcl:"lan_interface,optional" json:"lan_interface,omitempty" yaml:"lan_interface,omitempty"`
	// Interface facing the upstream modem. Only read by the enforcement gate.
	WANInterface string `hcl:"wan_interface,optional" json:"wan_interface,omitempty" yaml:"wan_interface,omitempty"`

	Backend   *BackendConfig   `hcl:"backend,block" json:"backend,omitempty" yaml:"backend,omitempty"`
	Discovery *DiscoveryConfig `hcl:"discovery,block" json:"discovery,omitempty" yaml:"discovery,omitempty"`
	DNS       *DNSConfig       `hcl:"dns,block" json:"dns,omitempty" yaml:"dns,omitempty"`
	Dispatch  *DispatchConfig  `hcl:"dispatch,block" json:"dispatch,omitempty" yaml:"dispatch,omitempty"`
	Analysis  *AnalysisConfig  `hcl:"analysis,block" json:"analysis,omitempty" yaml:"analysis,omitempty"`
	Storage   *StorageConfig   `hcl:"storage,block" json:"storage,omitempty" yaml:"storage,omitempty"`
	Logging   *LoggingConfig   `hcl:"logging,block" json:"logging,omitempty" yaml:"logging,omitempty"`
	Safety    *SafetyConfig    `hcl:"safety,block" json:"safety,omitempty" yaml:"safety,omitempty"`
	Status    *StatusConfig    `hcl:"status,block" json:"status,omitempty" yaml:"status,omitempty"`
}

// BackendConfig locates the event-ingest API.
type BackendConfig struct {
	URL      string       `hcl:"url,optional" json:"url,omitempty" yaml:"url,omitempty"`
	APIToken SecureString `hcl:"api_token,optional" json:"api_token,omitempty" yaml:"api_token,omitempty"`
	Timeout  string       `hcl:"timeout,optional" json:"timeout,omitempty" yaml:"timeout,omitempty"`

	timeout time.Duration
}

// DiscoveryConfig controls neighbor-table scanning.
type DiscoveryConfig struct {
	Interval string `hcl:"interval,optional" json:"interval,omitempty" yaml:"interval,omitempty"`
	// Source is "command" (ip neigh show) or "netlink".
	Source         string `hcl:"source,optional" json:"source,omitempty" yaml:"source,omitempty"`
	CommandTimeout string `hcl:"command_timeout,optional" json:"command_timeout,omitempty" yaml:"command_timeout,omitempty"`
	// ResolverAddr is the DNS server used for reverse lookups. Empty uses the
	// system resolver.
	ResolverAddr    string `hcl:"resolver_addr,optional" json:"resolver_addr,omitempty" yaml:"resolver_addr,omitempty"`
	ResolverTimeout string `hcl:"resolver_timeout,optional" json:"resolver_timeout,omitempty" yaml:"resolver_timeout,omitempty"`
	// OUIPaths lists IEEE registry CSV exports used to name device vendors.
	OUIPaths []string `hcl:"oui_paths,optional" json:"oui_paths,omitempty" yaml:"oui_paths,omitempty"`

	interval        time.Duration
	commandTimeout  time.Duration
	resolverTimeout time.Duration
}

// DNSConfig controls the dnsmasq log monitor.
type DNSConfig struct {
	LogPath       string `hcl:"log_path,optional" json:"log_path,omitempty" yaml:"log_path,omitempty"`
	BlocklistPath string `hcl:"blocklist_path,optional" json:"blocklist_path,omitempty" yaml:"blocklist_path,omitempty"`
	PollInterval  string `hcl:"poll_interval,optional" json:"poll_interval,omitempty" yaml:"poll_interval,omitempty"`
	// Watch enables filesystem notifications on the log directory so new
	// lines are picked up before the next poll tick.
	Watch *bool `hcl:"watch,optional" json:"watch,omitempty" yaml:"watch,omitempty"`

	pollInterval time.Duration
}

// DispatchConfig controls outbox draining.
type DispatchConfig struct {
	// Interval overrides the derived max(discovery, dns) + 5s.
	Interval  string `hcl:"interval,optional" json:"interval,omitempty" yaml:"interval,omitempty"`
	BatchSize int    `hcl:"batch_size,optional" json:"batch_size,omitempty" yaml:"batch_size,omitempty"`

	interval time.Duration
}

// AnalysisConfig configures the flow/baseline/anomaly collaborators.
type AnalysisConfig struct {
	Enabled             bool   `hcl:"enabled,optional" json:"enabled,omitempty" yaml:"enabled,omitempty"`
	FlowSummaryInterval string `hcl:"flow_summary_interval,optional" json:"flow_summary_interval,omitempty" yaml:"flow_summary_interval,omitempty"`
	BaselineHours       int    `hcl:"baseline_learning_hours,optional" json:"baseline_learning_hours,omitempty" yaml:"baseline_learning_hours,omitempty"`
	EVELogPath          string `hcl:"eve_log_path,optional" json:"eve_log_path,omitempty" yaml:"eve_log_path,omitempty"`

	flowInterval time.Duration
}

// StorageConfig locates the local database.
type StorageConfig struct {
	DBPath string `hcl:"db_path,optional" json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// LoggingConfig controls agent log output.
type LoggingConfig struct {
	Path  string `hcl:"path,optional" json:"path,omitempty" yaml:"path,omitempty"`
	Level string `hcl:"level,optional" json:"level,omitempty" yaml:"level,omitempty"`
	JSON  bool   `hcl:"json,optional" json:"json,omitempty" yaml:"json,omitempty"`
}

// SafetyConfig holds the enforcement safety modes. All three default to the
// safe setting and must be changed explicitly by an operator.
type SafetyConfig struct {
	MonitorOnly      *bool `hcl:"monitor_only,optional" json:"monitor_only,omitempty" yaml:"monitor_only,omitempty"`
	DryRun           *bool `hcl:"dry_run,optional" json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
	AllowEnforcement bool  `hcl:"allow_enforcement,optional" json:"allow_enforcement,omitempty" yaml:"allow_enforcement,omitempty"`
}

// StatusConfig enables the local read-only status server.
type StatusConfig struct {
	Listen string `hcl:"listen,optional" json:"listen,omitempty" yaml:"listen,omitempty"`
}

// Default returns a fully populated configuration with built-in defaults.
func Default() *Config {
	c := &Config{
		LANInterface: Placeholder,
		WANInterface: Placeholder,
	}
	c.applyDefaults()
	return c
}

func boolPtr(b bool) *bool { return &b }

// applyDefaults fills every unset field. It is safe to call repeatedly.
func (c *Config) applyDefaults() {
	if c.Backend == nil {
		c.Backend = &BackendConfig{}
	}
	if c.Backend.URL == "" {
		c.Backend.URL = DefaultBackendURL
	}

	if c.Discovery == nil {
		c.Discovery = &DiscoveryConfig{}
	}
	if c.Discovery.Source == "" {
		c.Discovery.Source = NeighborSourceCommand
	}

	if c.DNS == nil {
		c.DNS = &DNSConfig{}
	}
	if c.DNS.LogPath == "" {
		c.DNS.LogPath = DefaultDNSLogPath
	}
	if c.DNS.BlocklistPath == "" {
		c.DNS.BlocklistPath = DefaultDNSBlocklistPath
	}
	if c.DNS.Watch == nil {
		c.DNS.Watch = boolPtr(true)
	}

	if c.Dispatch == nil {
		c.Dispatch = &DispatchConfig{}
	}
	if c.Dispatch.BatchSize == 0 {
		c.Dispatch.BatchSize = DefaultDispatchBatch
	}

	if c.Analysis == nil {
		c.Analysis = &AnalysisConfig{}
	}
	if c.Analysis.BaselineHours == 0 {
		c.Analysis.BaselineHours = DefaultBaselineHours
	}

	if c.Storage == nil {
		c.Storage = &StorageConfig{}
	}
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = DefaultDBPath
	}

	if c.Logging == nil {
		c.Logging = &LoggingConfig{}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}

	if c.Safety == nil {
		c.Safety = &SafetyConfig{}
	}
	if c.Safety.MonitorOnly == nil {
		c.Safety.MonitorOnly = boolPtr(true)
	}
	if c.Safety.DryRun == nil {
		c.Safety.DryRun = boolPtr(true)
	}

	if c.Status == nil {
		c.Status = &StatusConfig{}
	}
}

// LANFilter returns the interface discovery should restrict itself to, or ""
// when no interface has been configured.
func (c *Config) LANFilter() string {
	iface := c.LANInterface
	if iface == Placeholder {
		return ""
	}
	return iface
}

// BackendTimeout is the per-request timeout for backend calls.
func (c *Config) BackendTimeout() time.Duration {
	return orDefault(c.Backend.timeout, DefaultBackendTimeout)
}

// DiscoveryInterval is the neighbor scan period.
func (c *Config) DiscoveryInterval() time.Duration {
	return orDefault(c.Discovery.interval, DefaultDiscoveryInterval)
}

// NeighborCommandTimeout bounds the ip neigh subprocess.
func (c *Config) NeighborCommandTimeout() time.Duration {
	return orDefault(c.Discovery.commandTimeout, DefaultNeighborCmdTimeout)
}

// ResolverTimeout bounds a single reverse lookup.
func (c *Config) ResolverTimeout() time.Duration {
	return orDefault(c.Discovery.resolverTimeout, DefaultResolverTimeout)
}

// DNSPollInterval is the dnsmasq log poll period.
func (c *Config) DNSPollInterval() time.Duration {
	return orDefault(c.DNS.pollInterval, DefaultDNSPollInterval)
}

// WatchDNSLog reports whether filesystem notifications should wake the DNS loop.
func (c *Config) WatchDNSLog() bool {
	return c.DNS.Watch == nil || *c.DNS.Watch
}

// DispatchInterval is the explicit override when set, otherwise
// max(discovery, dns poll) + DefaultDispatchMargin so draining never runs
// far ahead of production.
func (c *Config) DispatchInterval() time.Duration {
	if c.Dispatch.interval > 0 {
		return c.Dispatch.interval
	}
	return max(c.DiscoveryInterval(), c.DNSPollInterval()) + DefaultDispatchMargin
}

// FlowSummaryInterval is the analysis pipeline period.
func (c *Config) FlowSummaryInterval() time.Duration {
	return orDefault(c.Analysis.flowInterval, DefaultFlowSummaryInterval)
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
