// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package discovery

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// Resolver performs best-effort reverse lookups. An empty result means no
// name could be found; failures are never reported to the caller.
type Resolver interface {
	LookupHostname(ctx context.Context, ip string) string
}

// PTRResolver resolves PTR records against Addr, or against the system
// resolver when Addr is empty.
type PTRResolver struct {
	Addr    string
	Timeout time.Duration
}

// NewPTRResolver returns a resolver for addr ("host:port", or "" for the
// system resolver).
func NewPTRResolver(addr string, timeout time.Duration) *PTRResolver {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &PTRResolver{Addr: addr, Timeout: timeout}
}

func (r *PTRResolver) LookupHostname(ctx context.Context, ip string) string {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	if r.Addr == "" {
		names, err := net.DefaultResolver.LookupAddr(ctx, ip)
		if err != nil || len(names) == 0 {
			return ""
		}
		return strings.TrimSuffix(names[0], ".")
	}

	ptrZone, err := dns.ReverseAddr(ip)
	if err != nil {
		return ""
	}
	msg := new(dns.Msg)
	msg.SetQuestion(ptrZone, dns.TypePTR)

	c := new(dns.Client)
	c.Timeout = r.Timeout
	resp, _, err := c.ExchangeContext(ctx, msg, r.Addr)
	if err != nil || resp == nil || resp.Rcode != dns.RcodeSuccess {
		return ""
	}
	for _, rr := range resp.Answer {
		if ptr, ok := rr.(*dns.PTR); ok {
			return strings.TrimSuffix(ptr.Ptr, ".")
		}
	}
	return ""
}

// NopResolver never finds a name.
type NopResolver struct{}

func (NopResolver) LookupHostname(context.Context, string) string { return "" }
