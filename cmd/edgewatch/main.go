// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// edgewatch is the edge detection agent. It watches the LAN neighbor table
// and the dnsmasq log and ships events and alerts to the backend.
//
// Usage:
//
//	edgewatch -config /etc/edgewatch/agent.hcl
//	edgewatch -log-level debug
//	edgewatch -version
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"grimm.is/edgewatch/internal/agent"
	"grimm.is/edgewatch/internal/config"
	"grimm.is/edgewatch/internal/logging"
	"grimm.is/edgewatch/internal/store"
	"grimm.is/edgewatch/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet(version.Name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to HCL, JSON, or YAML config file (optional)")
	logLevel := fs.String("log-level", "", "Override the configured log level (debug, info, warn, error)")
	showVersion := fs.Bool("version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		fmt.Fprintf(stdout, "%s %s\n", version.Name, version.Version)
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	out, closer, err := logging.OpenFile(stderr, cfg.Logging.Path)
	defer closer.Close()
	logger := logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.Logging.Level),
		Output: out,
		JSON:   cfg.Logging.JSON,
	})
	logging.SetDefault(logger)
	if err != nil {
		logger.Warn("log file unavailable, logging to stderr only", "path", cfg.Logging.Path, "error", err)
	}

	st, err := store.Open(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	a, err := agent.New(cfg, st, agent.Options{}, logger.WithComponent("agent"))
	if err != nil {
		return err
	}
	return a.Run(ctx)
}
