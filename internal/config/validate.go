// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validate checks the configuration and resolves duration strings. It must
// run after defaults are applied.
func (c *Config) Validate() ValidationErrors {
	var errs ValidationErrors

	c.applyDefaults()

	errs = append(errs, c.validateBackend()...)
	errs = append(errs, c.validateDurations()...)

	switch c.Discovery.Source {
	case NeighborSourceCommand, NeighborSourceNetlink:
	default:
		errs = append(errs, ValidationError{
			Field:   "discovery.source",
			Message: fmt.Sprintf("must be %q or %q, got %q", NeighborSourceCommand, NeighborSourceNetlink, c.Discovery.Source),
		})
	}

	if addr := c.Discovery.ResolverAddr; addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			errs = append(errs, ValidationError{Field: "discovery.resolver_addr", Message: err.Error()})
		}
	}

	if c.Dispatch.BatchSize < 1 {
		errs = append(errs, ValidationError{Field: "dispatch.batch_size", Message: "must be at least 1"})
	}
	if c.Analysis.BaselineHours < 1 {
		errs = append(errs, ValidationError{Field: "analysis.baseline_learning_hours", Message: "must be at least 1"})
	}
	if strings.TrimSpace(c.DNS.LogPath) == "" {
		errs = append(errs, ValidationError{Field: "dns.log_path", Message: "required"})
	}
	if strings.TrimSpace(c.Storage.DBPath) == "" {
		errs = append(errs, ValidationError{Field: "storage.db_path", Message: "required"})
	}
	if l := c.Status.Listen; l != "" {
		if _, _, err := net.SplitHostPort(l); err != nil {
			errs = append(errs, ValidationError{Field: "status.listen", Message: err.Error()})
		}
	}

	return errs
}

func (c *Config) validateBackend() ValidationErrors {
	var errs ValidationErrors

	u, err := url.Parse(c.Backend.URL)
	switch {
	case err != nil:
		errs = append(errs, ValidationError{Field: "backend.url", Message: err.Error()})
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, ValidationError{Field: "backend.url", Message: fmt.Sprintf("unsupported scheme %q", u.Scheme)})
	case u.Host == "":
		errs = append(errs, ValidationError{Field: "backend.url", Message: "missing host"})
	}
	return errs
}

func (c *Config) validateDurations() ValidationErrors {
	var errs ValidationErrors

	parse := func(field, raw string, dst *time.Duration) {
		d, err := ParseDuration(raw)
		if err != nil {
			errs = append(errs, ValidationError{Field: field, Message: err.Error()})
			return
		}
		if d < 0 {
			errs = append(errs, ValidationError{Field: field, Message: "must not be negative"})
			return
		}
		*dst = d
	}

	parse("backend.timeout", c.Backend.Timeout, &c.Backend.timeout)
	parse("discovery.interval", c.Discovery.Interval, &c.Discovery.interval)
	parse("discovery.command_timeout", c.Discovery.CommandTimeout, &c.Discovery.commandTimeout)
	parse("discovery.resolver_timeout", c.Discovery.ResolverTimeout, &c.Discovery.resolverTimeout)
	parse("dns.poll_interval", c.DNS.PollInterval, &c.DNS.pollInterval)
	parse("dispatch.interval", c.Dispatch.Interval, &c.Dispatch.interval)
	parse("analysis.flow_summary_interval", c.Analysis.FlowSummaryInterval, &c.Analysis.flowInterval)

	return errs
}
