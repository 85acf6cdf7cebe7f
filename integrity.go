package slotmap

import "fmt"

// CheckIntegrity walks the whole map and verifies the free list bookkeeping.
// It's O(capacity) and meant for tests and debugging.
func (m *Map[V]) CheckIntegrity() error {
	n := uint32(len(m.buckets))
	if n == 0 {
		return &TopologyError{Op: "check", Reason: "no buckets"}
	}

	if !m.buckets[n-1].free() {
		return &TopologyError{Op: "check", Index: n - 1, Reason: "last bucket is not free"}
	}

	var occupied, retired, free int
	for i := range m.buckets {
		switch m.buckets[i].state {
		case bucketOccupied:
			occupied++
		case bucketRetired:
			retired++
		case bucketFree:
			free++
		default:
			return &TopologyError{Op: "check", Index: uint32(i), Reason: "unknown bucket state"}
		}
	}

	if occupied != m.size {
		return &TopologyError{Op: "check", Reason: fmt.Sprintf("size is %d, %d buckets occupied", m.size, occupied)}
	}

	if retired != m.retired {
		return &TopologyError{Op: "check", Reason: fmt.Sprintf("retired is %d, %d buckets retired", m.retired, retired)}
	}

	var (
		blocks   int
		covered  int
		prev     = uint32(noIndex)
		trailing bool
	)

	for h := m.freeHead; h != noIndex; h = m.buckets[h].next {
		if blocks > int(n) {
			return &TopologyError{Op: "check", Index: h, Reason: "free list has a cycle"}
		}

		if h >= n {
			return &TopologyError{Op: "check", Index: h, Reason: "free list link out of range"}
		}

		b := &m.buckets[h]

		switch {
		case !b.free():
			return &TopologyError{Op: "check", Index: h, Reason: "block head is not free"}
		case b.prev != prev:
			return &TopologyError{Op: "check", Index: h, Reason: fmt.Sprintf("prev link is %d, want %d", b.prev, prev)}
		case h > 0 && m.buckets[h-1].free():
			return &TopologyError{Op: "check", Index: h, Reason: "block is not maximal on the left"}
		}

		end := m.blockEnd(h)
		if end <= h || end > n {
			return &TopologyError{Op: "check", Index: h, Reason: fmt.Sprintf("bad block end %d", end)}
		}

		if end == n {
			if b.end != noIndex {
				return &TopologyError{Op: "check", Index: h, Reason: "trailing block end is not marked"}
			}

			trailing = true
		} else if m.buckets[end].free() {
			return &TopologyError{Op: "check", Index: h, Reason: "block is not maximal on the right"}
		}

		for i := h; i < end; i++ {
			if !m.buckets[i].free() {
				return &TopologyError{Op: "check", Index: i, Reason: "occupied bucket inside a free block"}
			}
		}

		if tail := m.buckets[end-1].head; tail != h {
			return &TopologyError{Op: "check", Index: end - 1, Reason: fmt.Sprintf("tail points to %d, want %d", tail, h)}
		}

		covered += int(end - h)
		blocks++
		prev = h
	}

	if !trailing {
		return &TopologyError{Op: "check", Reason: "trailing block is not linked"}
	}

	if covered != free {
		return &TopologyError{Op: "check", Reason: fmt.Sprintf("free list covers %d buckets, %d are free", covered, free)}
	}

	if blocks != m.freeBlocks {
		return &TopologyError{Op: "check", Reason: fmt.Sprintf("free list has %d blocks, counted %d", blocks, m.freeBlocks)}
	}

	return nil
}
