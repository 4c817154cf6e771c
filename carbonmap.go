package carbonmap

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Map represents a thread-safe key/value map.
// A Map must be created with [New]; the zero value is not ready for use.
//
// Every operation takes the map's single reader-writer lock: Get, Len and
// Contains share it, everything else holds it exclusively. Values are kept
// behind pointers so that an [Entry] or [Guard] can refer to one value
// slot without looking the key up again.
type Map[K comparable, V any] struct {
	items   map[K]*V
	mu      sync.RWMutex
	sfGroup singleflight.Group
}

// New creates a new empty map.
func New[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{
		items: make(map[K]*V),
	}
}

// Insert adds or overwrites the value stored under key.
// If two goroutines insert the same key, whichever acquires the lock last
// wins; no merging occurs.
func (m *Map[K, V]) Insert(key K, value V) {
	m.mu.Lock()
	m.items[key] = &value
	m.mu.Unlock()
}

// Get retrieves the value stored under key.
// It returns a copy of the value and a boolean indicating whether the key
// was found. The copy is deliberate: the lock is released before Get
// returns, so callers never observe the map's internal storage.
func (m *Map[K, V]) Get(key K) (V, bool) {
	m.mu.RLock()

	slot, found := m.items[key]
	if !found {
		m.mu.RUnlock()
		var zero V
		return zero, false
	}

	val := *slot
	m.mu.RUnlock()

	return val, true
}

// Remove deletes the value stored under key and returns it.
// It returns the zero value and false if the key was not present.
func (m *Map[K, V]) Remove(key K) (V, bool) {
	m.mu.Lock()

	slot, found := m.items[key]
	if !found {
		m.mu.Unlock()
		var zero V
		return zero, false
	}

	delete(m.items, key)
	val := *slot
	m.mu.Unlock()

	return val, true
}

// Entry takes the write lock, checks whether key is present, and returns
// an [Entry] positioned on that key. The lock stays held until the Entry
// is consumed by a terminal operation (OrInsert, OrInsertWith) or
// discarded with [Entry.Release]; until then no other goroutine can
// operate on the map.
//
// Calling back into the same map while holding an Entry deadlocks the
// calling goroutine.
func (m *Map[K, V]) Entry(key K) *Entry[K, V] {
	m.mu.Lock()

	slot, found := m.items[key]
	return &Entry[K, V]{
		m:        m,
		key:      key,
		slot:     slot,
		occupied: found,
	}
}

// GetOrInsert retrieves the value stored under key, or computes and
// inserts it if not present. The compute function is only called if the
// key is not present in the map.
// Note: if multiple goroutines call GetOrInsert concurrently for the same
// missing key, compute may be called multiple times but only one result
// will be kept.
func (m *Map[K, V]) GetOrInsert(key K, compute func() (V, error)) (V, error) {
	// fast path: check if the key exists
	if val, found := m.Get(key); found {
		return val, nil
	}

	// compute the value outside the lock to avoid deadlock if compute
	// calls back into the map
	val, err := compute()
	if err != nil {
		var zero V
		return zero, err
	}

	m.mu.Lock()
	// check again in case it was added while we were computing
	if slot, found := m.items[key]; found {
		existing := *slot
		m.mu.Unlock()
		return existing, nil
	}

	m.items[key] = &val
	m.mu.Unlock()

	return val, nil
}

// GetOrInsertSingleflight retrieves the value stored under key, or computes
// and inserts it if not present. Unlike [Map.GetOrInsert], if multiple
// goroutines call GetOrInsertSingleflight concurrently for the same missing
// key, the compute function is called exactly once and all callers receive
// the same result. This is useful when the compute function is expensive
// (e.g., database queries, API calls).
//
// The singleflight deduplication only applies to concurrent in-flight
// calls; once a value is stored, subsequent calls return it without
// invoking singleflight.
func (m *Map[K, V]) GetOrInsertSingleflight(key K, compute func() (V, error)) (V, error) {
	// fast path: check if the key exists
	if val, found := m.Get(key); found {
		return val, nil
	}

	// use singleflight to deduplicate concurrent computes for the same key
	sfKey := fmt.Sprintf("%v", key)
	result, err, _ := m.sfGroup.Do(sfKey, func() (any, error) {
		// check again inside singleflight in case another goroutine just
		// stored it
		if val, found := m.Get(key); found {
			return val, nil
		}

		val, err := compute()
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		if slot, found := m.items[key]; found {
			existing := *slot
			m.mu.Unlock()
			return existing, nil
		}

		m.items[key] = &val
		m.mu.Unlock()

		return val, nil
	})

	if err != nil {
		var zero V
		return zero, err
	}
	return result.(V), nil
}

// Len returns the current number of key/value pairs in the map.
func (m *Map[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.items)
}

// Contains checks if a key exists in the map.
func (m *Map[K, V]) Contains(key K) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, found := m.items[key]
	return found
}

// Clear removes all key/value pairs from the map.
func (m *Map[K, V]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = make(map[K]*V)
}
