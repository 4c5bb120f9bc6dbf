// Package telemetry is a process-local key/value board that control code publishes to
// and operators read back through DoCommand.
package telemetry

import (
	"sort"
	"sync"
)

// Board is a mutex-guarded telemetry map. Keys that were never published report their
// default value in snapshots.
type Board struct {
	mu       sync.RWMutex
	values   map[string]interface{}
	defaults map[string]interface{}
}

// NewBoard returns a board seeded with defaults. The defaults map is copied.
func NewBoard(defaults map[string]interface{}) *Board {
	b := &Board{
		values:   map[string]interface{}{},
		defaults: map[string]interface{}{},
	}
	for k, v := range defaults {
		b.defaults[k] = v
	}
	return b
}

// Publish sets key to value.
func (b *Board) Publish(key string, value interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[key] = value
}

// Get returns the value of key, falling back to its default.
func (b *Board) Get(key string) (interface{}, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if v, ok := b.values[key]; ok {
		return v, true
	}
	v, ok := b.defaults[key]
	return v, ok
}

// Float returns key as a float64, or fallback when it is missing or not a number.
func (b *Board) Float(key string, fallback float64) float64 {
	v, ok := b.Get(key)
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	default:
		return fallback
	}
}

// Snapshot returns a copy of every default and published value.
func (b *Board) Snapshot() map[string]interface{} {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]interface{}, len(b.defaults)+len(b.values))
	for k, v := range b.defaults {
		out[k] = v
	}
	for k, v := range b.values {
		out[k] = v
	}
	return out
}

// Keys returns the sorted keys of Snapshot.
func (b *Board) Keys() []string {
	snap := b.Snapshot()
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Prefixed publishes every key under prefix.
type Prefixed struct {
	Board  *Board
	Prefix string
}

// Publish sets Prefix+"."+key on the board.
func (p Prefixed) Publish(key string, value interface{}) {
	p.Board.Publish(p.Prefix+"."+key, value)
}
