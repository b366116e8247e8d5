// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package discovery

import (
	"regexp"
	"strings"

	"grimm.is/edgewatch/internal/netutil"
)

// neighLineRe matches one line of `ip neigh show`:
//
//	192.168.1.50 dev eth1 lladdr 11:22:33:44:55:66 [router] REACHABLE
var neighLineRe = regexp.MustCompile(`^(\S+)\s+dev\s+(\S+)\s+lladdr\s+(\S+)\s+(?:router\s+)?(\S+)`)

// activeStates are the neighbor states that indicate a live device.
// FAILED, INCOMPLETE and NONE entries are ignored.
var activeStates = map[string]bool{
	"REACHABLE": true,
	"STALE":     true,
	"DELAY":     true,
	"PROBE":     true,
}

// Neighbor is an active entry of the kernel neighbor table.
type Neighbor struct {
	IP        string
	MAC       string
	Interface string
	State     string
}

// ParseNeighborLine parses a single neighbor table line. ok is false for
// lines that do not match the grammar.
func ParseNeighborLine(line string) (n Neighbor, ok bool) {
	m := neighLineRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return Neighbor{}, false
	}
	return Neighbor{IP: m[1], Interface: m[2], MAC: m[3], State: m[4]}, true
}

// ParseNeighborTable returns the active neighbors in table with canonical
// MACs. When iface is non-empty, entries on other interfaces are dropped.
// IPv6 link-local neighbors are skipped.
func ParseNeighborTable(table, iface string) []Neighbor {
	var out []Neighbor
	for _, line := range strings.Split(table, "\n") {
		n, ok := ParseNeighborLine(line)
		if !ok {
			continue
		}
		if iface != "" && n.Interface != iface {
			continue
		}
		if !activeStates[n.State] {
			continue
		}
		mac, ok := netutil.CanonicalMAC(n.MAC)
		if !ok {
			continue
		}
		if netutil.IsIPv6LinkLocal(n.IP) {
			continue
		}
		n.MAC = mac
		out = append(out, n)
	}
	return out
}
