// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "EDGEWATCH_"

// Load reads the config file at path (optional), applies environment
// overrides and defaults, and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		cfg, err = Parse(data, path)
		if err != nil {
			return nil, err
		}
	}

	cfg.ApplyEnv(os.LookupEnv)
	if cfg.LANInterface == "" {
		cfg.LANInterface = Placeholder
	}
	if cfg.WANInterface == "" {
		cfg.WANInterface = Placeholder
	}
	cfg.applyDefaults()

	if errs := cfg.Validate(); errs.HasErrors() {
		return nil, fmt.Errorf("invalid configuration: %w", errs)
	}
	return cfg, nil
}

// Parse decodes data according to the extension of filename. Unknown
// extensions are tried as HCL, then JSON.
func Parse(data []byte, filename string) (*Config, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".hcl":
		return parseHCL(data, filename)
	case ".json":
		return parseJSON(data)
	case ".yaml", ".yml":
		return parseYAML(data)
	default:
		cfg, hclErr := parseHCL(data, filename)
		if hclErr == nil {
			return cfg, nil
		}
		cfg, jsonErr := parseJSON(data)
		if jsonErr == nil {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to parse config as HCL: %w (JSON fallback error: %v)", hclErr, jsonErr)
	}
}

func parseHCL(data []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL: %w", diags)
	}

	var cfg Config
	if diags := gohcl.DecodeBody(file.Body, nil, &cfg); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %w", diags)
	}
	return &cfg, nil
}

func parseJSON(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return &cfg, nil
}

func parseYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &cfg, nil
}

// ApplyEnv overlays EDGEWATCH_* variables found through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		if !ok || strings.TrimSpace(v) == "" {
			return "", false
		}
		return strings.TrimSpace(v), true
	}
	set := func(name string, dst *string) {
		if v, ok := get(name); ok {
			*dst = v
		}
	}
	setBool := func(name string, dst **bool) {
		if v, ok := get(name); ok {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = &b
			}
		}
	}

	c.applyDefaults()

	set("LAN_IFACE", &c.LANInterface)
	set("WAN_IFACE", &c.WANInterface)
	set("BACKEND_URL", &c.Backend.URL)
	if v, ok := get("API_TOKEN"); ok {
		c.Backend.APIToken = SecureString(v)
	}
	set("DISCOVERY_INTERVAL", &c.Discovery.Interval)
	set("NEIGHBOR_SOURCE", &c.Discovery.Source)
	set("RESOLVER_ADDR", &c.Discovery.ResolverAddr)
	set("DNS_LOG_PATH", &c.DNS.LogPath)
	set("DNS_BLOCKLIST_PATH", &c.DNS.BlocklistPath)
	set("DNS_POLL_INTERVAL", &c.DNS.PollInterval)
	set("DISPATCH_INTERVAL", &c.Dispatch.Interval)
	set("FLOW_INTERVAL", &c.Analysis.FlowSummaryInterval)
	set("LOCAL_DB", &c.Storage.DBPath)
	set("LOG_PATH", &c.Logging.Path)
	set("LOG_LEVEL", &c.Logging.Level)
	set("STATUS_LISTEN", &c.Status.Listen)
	setBool("MONITOR_ONLY", &c.Safety.MonitorOnly)
	setBool("DRY_RUN", &c.Safety.DryRun)
	setBool("DNS_WATCH", &c.DNS.Watch)

	if v, ok := get("OUI_PATHS"); ok {
		c.Discovery.OUIPaths = nil
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				c.Discovery.OUIPaths = append(c.Discovery.OUIPaths, p)
			}
		}
	}
	if v, ok := get("BASELINE_HOURS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.Analysis.BaselineHours = n
		}
	}
	if v, ok := get("DISPATCH_BATCH"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.Dispatch.BatchSize = n
		}
	}
	if v, ok := get("ALLOW_ENFORCEMENT"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Safety.AllowEnforcement = b
		}
	}
}

// ParseDuration accepts Go duration syntax or a bare integer number of
// seconds. Empty input yields zero.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}
