// Package flow tracks per-flow state with expiry.
package flow

import (
	"encoding/binary"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/patrickmn/go-cache"

	"firestige.xyz/someip/pkg/plugin"
)

const (
	DefaultTTL             = 5 * time.Minute
	DefaultCleanupInterval = 1 * time.Minute
)

// entry keeps the full key next to the value so hash collisions read as misses.
type entry struct {
	key   plugin.FlowKey
	value any
}

// Table provides flow state storage shared by all workers of a run.
// It is thread-safe. Entries expire ttl after their last Set.
//
// Table implements plugin.FlowRegistry.
type Table struct {
	cache *cache.Cache
}

// NewTable creates a table. Non-positive durations fall back to the defaults.
func NewTable(ttl, cleanupInterval time.Duration) *Table {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	return &Table{cache: cache.New(ttl, cleanupInterval)}
}

// Get retrieves flow state for the given key.
func (t *Table) Get(key plugin.FlowKey) (any, bool) {
	v, ok := t.cache.Get(cacheKey(key))
	if !ok {
		return nil, false
	}
	e := v.(entry)
	if e.key != key {
		return nil, false
	}
	return e.value, true
}

// Set stores flow state for the given key, overwriting any previous value.
func (t *Table) Set(key plugin.FlowKey, value any) {
	t.cache.SetDefault(cacheKey(key), entry{key: key, value: value})
}

// Delete removes flow state for the given key.
func (t *Table) Delete(key plugin.FlowKey) {
	t.cache.Delete(cacheKey(key))
}

// Range iterates over a snapshot of the live flows.
// f should return true to continue iteration or false to stop.
func (t *Table) Range(f func(key plugin.FlowKey, value any) bool) {
	for _, item := range t.cache.Items() {
		e := item.Object.(entry)
		if !f(e.key, e.value) {
			return
		}
	}
}

// Count returns the number of flows in the table, including expired
// entries not yet swept.
func (t *Table) Count() int {
	return t.cache.ItemCount()
}

// Clear removes all flows.
func (t *Table) Clear() {
	t.cache.Flush()
}

// Hash returns the 64-bit xxhash of key.
func Hash(key plugin.FlowKey) uint64 {
	var buf [37]byte
	return xxhash.Sum64(appendKey(buf[:0], key))
}

func cacheKey(key plugin.FlowKey) string {
	return strconv.FormatUint(Hash(key), 16)
}

func appendKey(b []byte, key plugin.FlowKey) []byte {
	src, dst := key.SrcIP.As16(), key.DstIP.As16()
	b = append(b, src[:]...)
	b = append(b, dst[:]...)
	b = binary.BigEndian.AppendUint16(b, key.SrcPort)
	b = binary.BigEndian.AppendUint16(b, key.DstPort)
	return append(b, key.Proto)
}
