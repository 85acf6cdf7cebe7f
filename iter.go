package slotmap

import "iter"

// walk visits occupied buckets in index order, jumping over free blocks.
//
// The callback may erase the key it's called with; any other mutation during
// the walk leaves the rest of the walk unspecified.
func (m *Map[V]) walk(yield func(i uint32, b *bucket[V]) bool) {
	// Head of the free block ending right before i, if any.
	prevHead := uint32(noIndex)

	for i := uint32(0); int(i) < len(m.buckets); {
		switch m.buckets[i].state {
		case bucketFree:
			prevHead = i
			i = m.blockEnd(i)

			continue
		case bucketOccupied:
			if !yield(i, &m.buckets[i]) {
				return
			}

			// Erased by the caller, so it's now part of a free block.
			if m.buckets[i].free() {
				if prevHead == noIndex {
					prevHead = i
				}

				i = m.blockEnd(prevHead)

				continue
			}
		}

		prevHead = noIndex
		i++
	}
}

// Keys returns an iterator over live keys in index order.
func (m *Map[V]) Keys() iter.Seq[Key] {
	return func(yield func(Key) bool) {
		m.walk(func(i uint32, b *bucket[V]) bool {
			return yield(Key{index: i, version: b.version})
		})
	}
}

// Values returns an iterator over live values in index order.
func (m *Map[V]) Values() iter.Seq[V] {
	return func(yield func(V) bool) {
		m.walk(func(_ uint32, b *bucket[V]) bool {
			return yield(b.value)
		})
	}
}

// All returns an iterator over (key, value) pairs in index order.
func (m *Map[V]) All() iter.Seq2[Key, V] {
	return func(yield func(Key, V) bool) {
		m.walk(func(i uint32, b *bucket[V]) bool {
			return yield(Key{index: i, version: b.version}, b.value)
		})
	}
}
