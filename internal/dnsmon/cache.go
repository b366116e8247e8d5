// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package dnsmon

import "container/list"

// MaxCorrelationEntries bounds the query correlation cache.
const MaxCorrelationEntries = 5000

type cacheEntry struct {
	domain   string
	clientIP string
}

// queryCache remembers the last client to query each domain so a later
// block line can be attributed. Once it grows past max entries the oldest
// half is evicted.
type queryCache struct {
	max     int
	order   *list.List
	entries map[string]*list.Element
}

func newQueryCache(limit int) *queryCache {
	return &queryCache{
		max:     limit,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

// Put records clientIP as the latest querier of domain.
func (c *queryCache) Put(domain, clientIP string) {
	if el, ok := c.entries[domain]; ok {
		el.Value.(*cacheEntry).clientIP = clientIP
		c.order.MoveToBack(el)
		return
	}
	c.entries[domain] = c.order.PushBack(&cacheEntry{domain: domain, clientIP: clientIP})

	if c.order.Len() > c.max {
		for i := c.max / 2; i > 0; i-- {
			oldest := c.order.Front()
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).domain)
		}
	}
}

// Pop removes and returns the client recorded for domain.
func (c *queryCache) Pop(domain string) (string, bool) {
	el, ok := c.entries[domain]
	if !ok {
		return "", false
	}
	c.order.Remove(el)
	delete(c.entries, domain)
	return el.Value.(*cacheEntry).clientIP, true
}

func (c *queryCache) Len() int {
	return c.order.Len()
}
