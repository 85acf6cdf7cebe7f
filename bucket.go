package slotmap

import "math"

// noIndex terminates free list links and marks a block running to the end of
// the bucket slice.
const noIndex = math.MaxUint32

type bucketState uint8

const (
	// The zero state, so a zero bucket is a fresh free bucket with version 0.
	bucketFree bucketState = iota
	bucketOccupied
	// The version counter is exhausted, the bucket is never handed out again.
	bucketRetired
)

type bucket[V any] struct {
	value V

	// Version of the occupant, or the version the next occupant gets
	// if the bucket is free.
	version uint32
	state   bucketState

	// Only valid for the head of a free block.
	end  uint32 // one past the last bucket of the block, noIndex for the trailing block
	next uint32
	prev uint32

	// Only valid for the last bucket of a free block: index of its head.
	head uint32
}

func (b *bucket[V]) occupied() bool {
	return b.state == bucketOccupied
}

func (b *bucket[V]) free() bool {
	return b.state == bucketFree
}

// fill moves the bucket into the occupied state with the given version.
func (b *bucket[V]) fill(version uint32, value V) {
	b.state = bucketOccupied
	b.version = version
	b.value = value
}

// release drops the value and bumps the version for the next occupant.
// Returns false if the version can't be bumped anymore and the bucket got
// retired instead.
func (b *bucket[V]) release() bool {
	var zero V
	b.value = zero

	if b.version == math.MaxUint32 {
		b.state = bucketRetired
		return false
	}

	b.state = bucketFree
	b.version++

	return true
}
