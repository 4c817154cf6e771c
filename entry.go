package carbonmap

// Entry is a presence-checked view of a single key in a [Map], created by
// [Map.Entry]. It holds the map's write lock for its entire lifetime, so a
// chain like
//
//	m.Entry(k).AndModify(func(v *int) { *v++ }).OrInsert(1).Release()
//
// runs as one critical section: no other goroutine's operation on the map
// can interleave between the presence check and the final mutation or
// insertion.
//
// An Entry is either occupied (the key was present when Entry was called)
// or vacant. It must end in exactly one of: a terminal operation
// ([Entry.OrInsert], [Entry.OrInsertWith]) followed by releasing the
// returned [Guard], or [Entry.Release]. An Entry that is simply dropped
// leaks the write lock.
//
// An Entry is not safe for concurrent use and must stay on the goroutine
// that created it.
type Entry[K comparable, V any] struct {
	m        *Map[K, V]
	key      K
	slot     *V
	occupied bool
	done     bool
}

// Key returns the key this entry was created for.
func (e *Entry[K, V]) Key() K {
	return e.key
}

// Occupied reports whether the key was present when the entry was created
// (or has since been inserted through this entry).
func (e *Entry[K, V]) Occupied() bool {
	return e.occupied
}

// Value returns a copy of the current value and true when the entry is
// occupied, or the zero value and false when it is vacant.
func (e *Entry[K, V]) Value() (V, bool) {
	e.mustBeLive()

	if !e.occupied {
		var zero V
		return zero, false
	}
	return *e.slot, true
}

// AndModify applies f to the existing value in place when the entry is
// occupied; when it is vacant, f is never invoked. It returns the same
// entry so further calls can be chained, and the write lock stays held
// throughout.
//
// If f panics, the lock is released before the panic continues unwinding,
// so the map stays usable; the value may be left partially modified.
func (e *Entry[K, V]) AndModify(f func(*V)) *Entry[K, V] {
	e.mustBeLive()

	if e.occupied {
		e.runGuarded(func() { f(e.slot) })
	}
	return e
}

// OrInsert consumes the entry. When the entry is vacant it inserts def
// under the held key; when it is occupied, def is ignored and the existing
// value is kept. Either way it returns a [Guard] over the value slot;
// lock ownership transfers to the guard, which must be released.
func (e *Entry[K, V]) OrInsert(def V) *Guard[K, V] {
	e.mustBeLive()

	if !e.occupied {
		e.insert(def)
	}
	e.done = true
	return &Guard[K, V]{m: e.m, slot: e.slot}
}

// OrInsertWith is like [Entry.OrInsert] but computes the default lazily:
// f is evaluated only when the entry is vacant.
//
// f runs while the write lock is held; if it panics, the lock is released
// before the panic continues unwinding and nothing is inserted.
func (e *Entry[K, V]) OrInsertWith(f func() V) *Guard[K, V] {
	e.mustBeLive()

	if !e.occupied {
		var val V
		e.runGuarded(func() { val = f() })
		e.insert(val)
	}
	e.done = true
	return &Guard[K, V]{m: e.m, slot: e.slot}
}

// Release discards the entry without a terminal operation and releases the
// map's write lock. It is a no-op after a terminal operation or an earlier
// Release, so it is safe to defer alongside a normal chain.
func (e *Entry[K, V]) Release() {
	if e.done {
		return
	}
	e.done = true
	e.m.mu.Unlock()
}

// insert stores val under the held key and repositions the entry on the
// new slot. It assumes the write lock is held and the entry is vacant.
func (e *Entry[K, V]) insert(val V) {
	e.slot = &val
	e.m.items[e.key] = e.slot
	e.occupied = true
}

// runGuarded invokes a caller-supplied closure. If the closure panics, the
// write lock is released before the panic resumes so the map is not left
// permanently locked.
func (e *Entry[K, V]) runGuarded(f func()) {
	defer func() {
		if r := recover(); r != nil {
			e.done = true
			e.m.mu.Unlock()
			panic(r)
		}
	}()
	f()
}

func (e *Entry[K, V]) mustBeLive() {
	if e.done {
		panic("carbonmap: use of Entry after it was consumed or released")
	}
}

// Guard is exclusive access to a [Map] narrowed down to a single value
// slot, returned by the terminal entry operations. While a Guard is live
// no other goroutine can acquire the map's lock, shared or exclusive — the
// lock's granularity is the whole map, not the slot.
//
// A Guard must be released with [Guard.Release]; Release is idempotent, so
// deferring it is safe. Like an [Entry], a Guard is not safe for
// concurrent use.
type Guard[K comparable, V any] struct {
	m        *Map[K, V]
	slot     *V
	released bool
}

// Value returns a copy of the guarded value.
func (g *Guard[K, V]) Value() V {
	g.mustBeHeld()
	return *g.slot
}

// Set overwrites the guarded value.
func (g *Guard[K, V]) Set(val V) {
	g.mustBeHeld()
	*g.slot = val
}

// Update applies f to the guarded value in place.
//
// If f panics, the lock is released before the panic continues unwinding;
// the value may be left partially modified.
func (g *Guard[K, V]) Update(f func(*V)) {
	g.mustBeHeld()

	defer func() {
		if r := recover(); r != nil {
			g.released = true
			g.m.mu.Unlock()
			panic(r)
		}
	}()
	f(g.slot)
}

// Release unlocks the map. Further calls are no-ops.
func (g *Guard[K, V]) Release() {
	if g.released {
		return
	}
	g.released = true
	g.m.mu.Unlock()
}

func (g *Guard[K, V]) mustBeHeld() {
	if g.released {
		panic("carbonmap: use of Guard after Release")
	}
}
