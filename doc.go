// Package carbonmap provides a generic, thread-safe key/value map with an
// entry protocol for atomic check-then-act updates.
//
// A [Map] serializes all access to its contents behind a single
// reader-writer lock: reads run concurrently, writes are exclusive. On top
// of the usual Insert/Get/Remove operations, [Map.Entry] returns an [Entry]
// that keeps the write lock held across a chain of calls, so a caller can
// check for a key and then insert or mutate without another goroutine
// interleaving between the check and the act.
//
// # Basic Usage
//
// Create a map and store values:
//
//	m := carbonmap.New[string, int]()
//	m.Insert("key", 42)
//	value, found := m.Get("key")
//
// # Entry Protocol
//
// The classic increment-or-initialize pattern, atomic across goroutines:
//
//	g := m.Entry("counter").
//		AndModify(func(v *int) { *v++ }).
//		OrInsert(1)
//	g.Release()
//
// AndModify mutates the value in place when the key is present and does
// nothing otherwise; OrInsert inserts its argument only when the key is
// absent. Both run under the one write lock taken by Entry. The terminal
// OrInsert/OrInsertWith calls return a [Guard], a view of the single value
// slot that keeps the lock held until Release is called. An Entry that is
// not consumed must be discarded with [Entry.Release].
//
// # Memoization with GetOrInsert
//
// Compute values on a miss, outside the lock:
//
//	result, err := m.GetOrInsert("key", func() (int, error) {
//	    return expensiveComputation()
//	})
//
// Use [Map.GetOrInsertSingleflight] when concurrent callers for the same
// missing key should share exactly one computation.
package carbonmap
