// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux
// +build linux

package discovery

import (
	"context"
	"fmt"
	"strings"

	"github.com/vishvananda/netlink"

	"grimm.is/edgewatch/internal/errors"
	"grimm.is/edgewatch/internal/netutil"
)

// NetlinkSource reads the neighbor table directly from the kernel.
type NetlinkSource struct{}

// NewNetlinkSource returns a netlink-backed source.
func NewNetlinkSource() (*NetlinkSource, error) {
	return &NetlinkSource{}, nil
}

// Table lists all neighbors and renders them in `ip neigh` form.
func (s *NetlinkSource) Table(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	links, err := netlink.LinkList()
	if err != nil {
		return "", errors.Wrap(err, errors.KindUnavailable, "list links")
	}
	names := make(map[int]string, len(links))
	for _, l := range links {
		attrs := l.Attrs()
		names[attrs.Index] = attrs.Name
	}

	neighs, err := netlink.NeighList(0, netlink.FAMILY_ALL)
	if err != nil {
		return "", errors.Wrap(err, errors.KindUnavailable, "list neighbors")
	}

	var b strings.Builder
	for _, n := range neighs {
		if line, ok := formatNeigh(n, names[n.LinkIndex]); ok {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}

// formatNeigh renders n the way `ip neigh show` would. Entries without a
// link-layer address are dropped since they cannot identify a device.
func formatNeigh(n netlink.Neigh, iface string) (string, bool) {
	if n.IP == nil || len(n.HardwareAddr) == 0 || iface == "" {
		return "", false
	}
	router := ""
	if n.Flags&netlink.NTF_ROUTER != 0 {
		router = "router "
	}
	return fmt.Sprintf("%s dev %s lladdr %s %s%s",
		n.IP, iface, netutil.FormatMAC(n.HardwareAddr), router, neighState(n.State)), true
}

func neighState(state int) string {
	switch {
	case state&netlink.NUD_REACHABLE != 0:
		return "REACHABLE"
	case state&netlink.NUD_STALE != 0:
		return "STALE"
	case state&netlink.NUD_DELAY != 0:
		return "DELAY"
	case state&netlink.NUD_PROBE != 0:
		return "PROBE"
	case state&netlink.NUD_FAILED != 0:
		return "FAILED"
	case state&netlink.NUD_INCOMPLETE != 0:
		return "INCOMPLETE"
	case state&netlink.NUD_PERMANENT != 0:
		return "PERMANENT"
	case state&netlink.NUD_NOARP != 0:
		return "NOARP"
	}
	return "NONE"
}
