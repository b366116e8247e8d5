// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package dnsmon

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestQueryCache_PutPop(t *testing.T) {
	c := newQueryCache(10)
	c.Put("example.com", "10.0.0.1")
	c.Put("example.com", "10.0.0.2")
	assert.Equal(t, 1, c.Len())

	ip, ok := c.Pop("example.com")
	assert.True(t, ok)
	assert.Equal(t, "10.0.0.2", ip)

	_, ok = c.Pop("example.com")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestQueryCache_EvictsOldestHalf(t *testing.T) {
	c := newQueryCache(MaxCorrelationEntries)
	for i := 0; i <= MaxCorrelationEntries; i++ {
		c.Put(fmt.Sprintf("d%d.example.com", i), "10.0.0.1")
	}
	assert.Equal(t, MaxCorrelationEntries+1-MaxCorrelationEntries/2, c.Len())

	_, ok := c.Pop("d0.example.com")
	assert.False(t, ok, "oldest entry should be evicted")
	_, ok = c.Pop(fmt.Sprintf("d%d.example.com", MaxCorrelationEntries))
	assert.True(t, ok, "newest entry should survive")
}

func TestQueryCache_RefreshedEntrySurvives(t *testing.T) {
	c := newQueryCache(4)
	c.Put("a", "1")
	c.Put("b", "1")
	c.Put("c", "1")
	c.Put("d", "1")
	c.Put("a", "2")
	c.Put("e", "1")

	_, ok := c.Pop("a")
	assert.True(t, ok)
	_, ok = c.Pop("b")
	assert.False(t, ok)
}

func TestProperty_QueryCacheBounded(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("cache never exceeds its bound", prop.ForAll(
		func(limit int, domains []int) bool {
			c := newQueryCache(limit)
			for _, d := range domains {
				c.Put(fmt.Sprintf("d%d.example.com", d), "10.0.0.1")
				if c.Len() > limit || c.Len() != len(c.entries) {
					return false
				}
			}
			return true
		},
		gen.IntRange(2, 64),
		gen.SliceOf(gen.IntRange(0, 500)),
	))

	properties.Property("5001 distinct domains stay within 5000", prop.ForAll(
		func(extra int) bool {
			c := newQueryCache(MaxCorrelationEntries)
			for i := 0; i < MaxCorrelationEntries+1+extra; i++ {
				c.Put(fmt.Sprintf("d%d.example.com", i), "10.0.0.1")
			}
			return c.Len() <= MaxCorrelationEntries
		},
		gen.IntRange(0, 3000),
	))

	properties.TestingRun(t)
}
