// Package cache tracks a version counter per data aggregate. Writers bump the
// aggregates they touched; readers use the counters as ETags and to decide
// when a memoized value is stale.
package cache

import (
	"fmt"
	"sync"
)

// Key names an aggregate.
type Key string

// Aggregates.
const (
	Inventory Key = "inventory"
	Borrowed  Key = "borrowed"
	UsedGiven Key = "used_given"
	Activity  Key = "activity"
	Users     Key = "users"
	Stats     Key = "stats"
)

// Versions holds the counters. The zero value is ready to use.
type Versions struct {
	mu       sync.Mutex
	counters map[Key]uint64
	watchers []func(Key)
}

// Get returns the current version of k.
func (v *Versions) Get(k Key) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.counters[k]
}

// Bump increments every given key and notifies watchers once per key.
func (v *Versions) Bump(keys ...Key) {
	v.mu.Lock()
	if v.counters == nil {
		v.counters = make(map[Key]uint64)
	}
	seen := make(map[Key]bool, len(keys))
	var bumped []Key
	for _, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		v.counters[k]++
		bumped = append(bumped, k)
	}
	watchers := v.watchers
	v.mu.Unlock()

	for _, k := range bumped {
		for _, w := range watchers {
			w(k)
		}
	}
}

// Watch registers fn to run after each bumped key.
func (v *Versions) Watch(fn func(Key)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.watchers = append(v.watchers, fn)
}

// ETag returns a weak entity tag for the combined versions of keys.
func (v *Versions) ETag(keys ...Key) string {
	v.mu.Lock()
	defer v.mu.Unlock()

	tag := `W/"`
	for i, k := range keys {
		if i > 0 {
			tag += "."
		}
		tag += fmt.Sprintf("%s-%d", k, v.counters[k])
	}
	return tag + `"`
}

// Memo caches one value computed from the aggregate at a given version.
type Memo[T any] struct {
	versions *Versions
	key      Key

	mu      sync.Mutex
	valid   bool
	version uint64
	value   T
}

// NewMemo returns a memo invalidated by bumps of key.
func NewMemo[T any](versions *Versions, key Key) *Memo[T] {
	return &Memo[T]{versions: versions, key: key}
}

// Get returns the cached value if the key has not been bumped since it was
// computed, otherwise it calls compute and caches the result. Errors are not
// cached.
func (m *Memo[T]) Get(compute func() (T, error)) (T, error) {
	current := m.versions.Get(m.key)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.valid && m.version == current {
		return m.value, nil
	}

	value, err := compute()
	if err != nil {
		var zero T
		return zero, err
	}

	m.value = value
	m.version = current
	m.valid = true
	return value, nil
}
