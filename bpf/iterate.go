package bpf

import "errors"

// MapIterator walks a map's entries via repeated get-next-key calls.
//
// Iteration is restartable from any key but carries the kernel's own
// caveat: entries deleted concurrently can cause the walk to restart
// from the beginning or skip elements. This is inherent to the
// get-next-key protocol and is not hidden here; long-lived maps under
// churn should be read with LookupBatch instead.
type MapIterator struct {
	m    *Map
	prev []byte
	key  []byte
	val  []byte
	err  error
	done bool
}

// Iterate begins a fresh walk over the map.
func (m *Map) Iterate() *MapIterator {
	return &MapIterator{m: m}
}

// Next advances to the next entry, returning false at the end of the
// map or on error. Check Err after the loop.
func (it *MapIterator) Next() bool {
	if it.done || it.err != nil {
		return false
	}

	for {
		key, err := it.m.NextKey(it.prev)
		if errors.Is(err, ErrKeyNotFound) {
			it.done = true
			return false
		}

		if err != nil {
			it.err = err
			return false
		}

		it.prev = key

		val, err := it.m.Lookup(key)
		if errors.Is(err, ErrKeyNotFound) {
			// Deleted between next-key and lookup; move on.
			continue
		}

		if err != nil {
			it.err = err
			return false
		}

		it.key = key
		it.val = val

		return true
	}
}

// Key returns the current entry's key. Valid until the next call to
// Next.
func (it *MapIterator) Key() []byte {
	return it.key
}

// Value returns the current entry's value.
func (it *MapIterator) Value() []byte {
	return it.val
}

// Err reports the first error the walk hit, if any.
func (it *MapIterator) Err() error {
	return it.err
}
