// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package discovery

import (
	"bytes"
	"context"
	stderrors "errors"
	"os/exec"
	"strings"
	"time"

	"grimm.is/edgewatch/internal/errors"
	"grimm.is/edgewatch/internal/logging"
)

// NeighborSource reads the neighbor table and renders it in the
// `ip neigh show` line grammar.
type NeighborSource interface {
	Table(ctx context.Context) (string, error)
}

// DefaultNeighborCommand is the command CommandSource runs.
var DefaultNeighborCommand = []string{"ip", "neigh", "show"}

// CommandSource reads the neighbor table from the iproute2 `ip` tool.
type CommandSource struct {
	Command []string
	Timeout time.Duration
	logger  *logging.Logger
}

// NewCommandSource returns a source running `ip neigh show` with timeout.
func NewCommandSource(timeout time.Duration, logger *logging.Logger) *CommandSource {
	if logger == nil {
		logger = logging.WithComponent("discovery")
	}
	return &CommandSource{
		Command: DefaultNeighborCommand,
		Timeout: timeout,
		logger:  logger,
	}
}

// Table runs the command. A missing binary or a timeout yields an empty
// table; a non-zero exit is logged and whatever was printed is returned.
func (c *CommandSource) Table(ctx context.Context) (string, error) {
	if len(c.Command) == 0 {
		return "", errors.New(errors.KindValidation, "neighbor command is empty")
	}

	runCtx := ctx
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, c.Command[0], c.Command[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	switch {
	case err == nil:
		return stdout.String(), nil
	case stderrors.Is(err, exec.ErrNotFound):
		c.logger.Error("neighbor command not found, discovery requires iproute2", "command", c.Command[0])
		return "", nil
	case stderrors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		c.logger.Error("neighbor command timed out", "timeout", c.Timeout)
		return "", nil
	case ctx.Err() != nil:
		return "", ctx.Err()
	}

	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		c.logger.Warn("neighbor command failed",
			"code", exitErr.ExitCode(),
			"stderr", strings.TrimSpace(stderr.String()))
		return stdout.String(), nil
	}
	return "", errors.Wrap(err, errors.KindUnavailable, "run neighbor command")
}

// StaticSource serves a fixed table.
type StaticSource string

func (s StaticSource) Table(context.Context) (string, error) { return string(s), nil }
