// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !linux
// +build !linux

package discovery

import (
	"context"

	"grimm.is/edgewatch/internal/errors"
)

// NetlinkSource is only available on Linux.
type NetlinkSource struct{}

// NewNetlinkSource fails on non-Linux platforms.
func NewNetlinkSource() (*NetlinkSource, error) {
	return nil, errors.New(errors.KindUnavailable, "netlink neighbor source requires linux")
}

func (s *NetlinkSource) Table(context.Context) (string, error) {
	return "", errors.New(errors.KindUnavailable, "netlink neighbor source requires linux")
}
