package slotmap

import (
	"context"
	"log/slog"
)

// Free buckets are kept as maximal contiguous blocks. Each block is a node of a
// doubly linked list, the links live in the block's first bucket (the head).
// The last bucket of a block (the tail) points back to the head, which lets
// an erased bucket join the block on its left in O(1).
//
// The last bucket of the slice is always free, so there's always a trailing
// block with end == noIndex and the free list is never empty.

// maxBuckets keeps every index below nullIndex.
const maxBuckets = nullIndex

func (m *Map[V]) resetBuckets() {
	m.buckets = make([]bucket[V], 1, max(m.reserve, 1))
	m.buckets[0] = bucket[V]{end: noIndex, next: noIndex, prev: noIndex, head: 0}
	m.freeHead = 0
	m.freeBlocks = 1
	m.size = 0
	m.retired = 0
}

// blockEnd returns the index one past the block starting at h.
func (m *Map[V]) blockEnd(h uint32) uint32 {
	if end := m.buckets[h].end; end != noIndex {
		return end
	}

	return uint32(len(m.buckets))
}

func (m *Map[V]) last() uint32 {
	return uint32(len(m.buckets) - 1)
}

// grow appends a fresh guard bucket, extending the trailing block by one.
func (m *Map[V]) grow() {
	if uint64(len(m.buckets)) >= maxBuckets {
		m.fatal("grow", m.last(), "index space exhausted")
	}

	h := m.buckets[m.last()].head
	oldCap := cap(m.buckets)

	m.buckets = append(m.buckets, bucket[V]{head: h})

	if c := cap(m.buckets); c != oldCap {
		m.logger.Debug("slotmap: backing storage grown",
			"old_cap", oldCap,
			"new_cap", c,
			"buckets", len(m.buckets),
		)
	}
}

func (m *Map[V]) pushFront(h uint32) {
	b := &m.buckets[h]
	b.prev = noIndex
	b.next = m.freeHead
	m.buckets[m.freeHead].prev = h
	m.freeHead = h
	m.freeBlocks++
}

func (m *Map[V]) linkAfter(at, h uint32) {
	a := &m.buckets[at]
	b := &m.buckets[h]
	b.prev = at
	b.next = a.next

	if a.next != noIndex {
		m.buckets[a.next].prev = h
	}

	a.next = h
	m.freeBlocks++
}

func (m *Map[V]) unlink(h uint32) {
	b := &m.buckets[h]
	if b.prev != noIndex {
		m.buckets[b.prev].next = b.next
	} else {
		m.freeHead = b.next
	}

	if b.next != noIndex {
		m.buckets[b.next].prev = b.prev
	}

	m.freeBlocks--
}

// moveHead transfers the list links of the block head `from` to `to`.
// The caller sets up the block end and the tail.
func (m *Map[V]) moveHead(from, to uint32) {
	f := &m.buckets[from]
	t := &m.buckets[to]
	t.next = f.next
	t.prev = f.prev

	if t.prev != noIndex {
		m.buckets[t.prev].next = to
	} else {
		m.freeHead = to
	}

	if t.next != noIndex {
		m.buckets[t.next].prev = to
	}
}

// takeEmptyBucket unlinks the first bucket of the first free block and
// returns its index. The bucket is still in the free state.
func (m *Map[V]) takeEmptyBucket() uint32 {
	if m.freeHead == m.last() {
		m.grow()
	}

	h := m.freeHead
	end := m.blockEnd(h)

	if end-h == 1 {
		m.unlink(h)
		return h
	}

	// Shrink the block from the front.
	nh := h + 1
	m.buckets[nh].end = m.buckets[h].end
	m.moveHead(h, nh)
	m.buckets[end-1].head = nh

	return h
}

// takeBucketAt unlinks the free bucket i, splitting its block if needed.
// i must not be the last bucket.
func (m *Map[V]) takeBucketAt(i uint32) {
	h, ok := m.findBlock(i)
	if !ok {
		m.fatal("insert_at", i, "no free block contains the index")
	}

	end := m.blockEnd(h)
	hasLeft := i > h
	hasRight := i+1 < end

	switch {
	case !hasLeft && !hasRight:
		m.unlink(h)
	case !hasLeft:
		m.buckets[i+1].end = m.buckets[h].end
		m.moveHead(h, i+1)
		m.buckets[end-1].head = i + 1
	case !hasRight:
		m.buckets[h].end = i
		m.buckets[i-1].head = h
	default:
		r := i + 1
		m.buckets[r].end = m.buckets[h].end
		m.buckets[end-1].head = r
		m.buckets[h].end = i
		m.buckets[i-1].head = h
		m.linkAfter(h, r)
	}
}

// findBlock returns the head of the block containing the free bucket i.
//
// The trailing block is found through the last bucket. For other blocks it
// scans outwards from i until it hits either the head or the tail, whose
// back reference points at the head.
func (m *Map[V]) findBlock(i uint32) (uint32, bool) {
	h := m.buckets[m.last()].head
	if h > i {
		h = m.scanBlock(i)
	}

	ok := h <= i && i < m.blockEnd(h) && m.buckets[h].free() &&
		(h == 0 || !m.buckets[h-1].free())

	return h, ok
}

func (m *Map[V]) scanBlock(i uint32) uint32 {
	last := m.last()

	for l, r := i, i; r < last; l, r = l-1, r+1 {
		if l == 0 || !m.buckets[l-1].free() {
			return l
		}

		if !m.buckets[r+1].free() {
			return m.buckets[r].head
		}
	}

	return noIndex
}

// freeBucket releases the occupied bucket i and merges it with the free
// blocks around it.
func (m *Map[V]) freeBucket(i uint32) {
	b := &m.buckets[i]
	m.size--

	if !b.release() {
		m.retired++
		m.logger.Debug("slotmap: slot retired", "index", i)

		return
	}

	// i can't be the last bucket, so i+1 always exists.
	leftFree := i > 0 && m.buckets[i-1].free()
	rightFree := m.buckets[i+1].free()

	switch {
	case !leftFree && !rightFree:
		b.end = i + 1
		b.head = i
		m.pushFront(i)
	case !leftFree:
		// i+1 is a head, i takes its place.
		b.end = m.buckets[i+1].end
		m.moveHead(i+1, i)
		m.buckets[m.blockEnd(i)-1].head = i
	case !rightFree:
		h := m.buckets[i-1].head
		m.buckets[h].end = i + 1
		b.head = h
	default:
		h := m.buckets[i-1].head
		r := i + 1
		m.buckets[h].end = m.buckets[r].end
		m.unlink(r)
		m.buckets[m.blockEnd(h)-1].head = h
	}
}

func (m *Map[V]) fatal(op string, i uint32, reason string) {
	err := &TopologyError{Op: op, Index: i, Reason: reason}
	m.logger.LogAttrs(context.Background(), slog.LevelError, "slotmap: fatal",
		slog.String("op", op),
		slog.Uint64("index", uint64(i)),
		slog.String("reason", reason),
	)

	panic(err)
}
