// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package dnsmon

import "regexp"

var (
	// syslogPrefixRe matches "Feb 14 10:30:45 [host] dnsmasq[1234]: ".
	syslogPrefixRe = regexp.MustCompile(`^(\w+\s+\d+\s+\d+:\d+:\d+)\s+(?:\S+\s+)?dnsmasq\[\d+\]:\s+`)

	// blockedRe matches "config malware.example.com is 0.0.0.0" at the start
	// of the message body.
	blockedRe = regexp.MustCompile(`^config\s+(\S+)\s+is\s+(\S+)`)

	// queryRe matches "query[A] example.com from 192.168.1.100" anywhere in
	// the body.
	queryRe = regexp.MustCompile(`query\[([A-Z]+)\]\s+(\S+)\s+from\s+(\S+)`)
)

// sinkholeAnswers are the answers dnsmasq gives for blocklisted names.
var sinkholeAnswers = map[string]bool{
	"0.0.0.0":   true,
	"::":        true,
	"NXDOMAIN":  true,
	"127.0.0.1": true,
}

// LineKind classifies a log line.
type LineKind int

const (
	LineIgnored LineKind = iota
	LineBlock
	LineQuery
)

// Line is a parsed dnsmasq log line.
type Line struct {
	Kind      LineKind
	Timestamp string
	Domain    string
	// Answer is set for blocks.
	Answer string
	// ClientIP is set for queries.
	ClientIP  string
	QueryType string
}

// ParseLine classifies one dnsmasq log line. Lines without the dnsmasq
// syslog prefix, and config lines with a non-sinkhole answer, are ignored.
func ParseLine(line string) Line {
	prefix := syslogPrefixRe.FindStringSubmatchIndex(line)
	if prefix == nil {
		return Line{}
	}
	ts := line[prefix[2]:prefix[3]]
	body := line[prefix[1]:]

	if m := blockedRe.FindStringSubmatch(body); m != nil && sinkholeAnswers[m[2]] {
		return Line{Kind: LineBlock, Timestamp: ts, Domain: m[1], Answer: m[2]}
	}
	if m := queryRe.FindStringSubmatch(body); m != nil {
		return Line{Kind: LineQuery, Timestamp: ts, Domain: m[2], ClientIP: m[3], QueryType: m[1]}
	}
	return Line{}
}
