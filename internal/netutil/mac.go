// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package netutil holds address canonicalization helpers.
package netutil

import (
	"fmt"
	"net/netip"
	"regexp"
	"strings"
)

// macPattern accepts six hex octets separated by ':' or '-'.
var macPattern = regexp.MustCompile(`^([0-9a-fA-F]{2}[:\-]){5}[0-9a-fA-F]{2}$`)

// NormalizeMAC lowercases mac and rewrites '-' separators to ':'.
// It does not validate.
func NormalizeMAC(mac string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(mac)), "-", ":")
}

// IsValidMAC reports whether mac is six hex octets with ':' or '-' separators.
func IsValidMAC(mac string) bool {
	return macPattern.MatchString(mac)
}

// CanonicalMAC returns the lowercase colon-separated form of mac, or false
// when mac is not a valid 48-bit address.
func CanonicalMAC(mac string) (string, bool) {
	n := NormalizeMAC(mac)
	if !IsValidMAC(n) {
		return "", false
	}
	return n, true
}

// FormatMAC renders a 6-byte hardware address in canonical form.
func FormatMAC(mac []byte) string {
	if len(mac) != 6 {
		return ""
	}
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x",
		mac[0], mac[1], mac[2], mac[3], mac[4], mac[5])
}

// IsIPv6LinkLocal reports whether ip is an fe80::/10 address.
// Unparsable input is not link-local.
func IsIPv6LinkLocal(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		// zone-qualified addresses from some tools, e.g. fe80::1%eth0
		if i := strings.IndexByte(ip, '%'); i > 0 {
			return IsIPv6LinkLocal(ip[:i])
		}
		return false
	}
	return addr.Is6() && !addr.Is4In6() && addr.IsLinkLocalUnicast()
}
