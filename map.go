package slotmap

import (
	"fmt"
	"log/slog"
)

// Map stores values under generational keys.
//
// Keys stay valid until their value is erased. Erased slots get reused, but
// every reuse bumps the slot version, so a key to an erased value never
// matches a new one. Free slots are grouped in contiguous blocks, which lets
// iteration skip a whole block at once.
//
// Map is not safe for concurrent use. The zero value is not ready to use,
// create maps with New.
type Map[V any] struct {
	buckets []bucket[V]

	size       int
	retired    int
	freeHead   uint32
	freeBlocks int

	reserve int
	logger  *slog.Logger
}

type Option[V any] func(m *Map[V])

// Reserve backing storage for at least n slots upfront.
// It's rounded up to the next power of 2.
func WithCapacity[V any](n int) Option[V] {
	return func(m *Map[V]) {
		if n > 0 {
			m.reserve = int(NextPowerOf2(uint32(min(n, 1<<30))))
		}
	}
}

// Override the logger. By default the map logs nothing.
func WithLogger[V any](l *slog.Logger) Option[V] {
	return func(m *Map[V]) {
		m.logger = l
	}
}

// Returns a new empty map.
func New[V any](opts ...Option[V]) *Map[V] {
	var m Map[V]
	m.init(opts...)

	return &m
}

func (m *Map[V]) init(opts ...Option[V]) {
	for _, opt := range opts {
		opt(m)
	}

	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}

	m.resetBuckets()
}

// Inserts a value and returns its key.
func (m *Map[V]) Insert(value V) Key {
	i := m.takeEmptyBucket()

	b := &m.buckets[i]
	b.fill(b.version, value)
	m.size++

	return Key{index: i, version: b.version}
}

// InsertAt puts a value under exactly the given key, growing the map if needed.
// It's meant for restoring persisted keys. Nothing is modified on error.
func (m *Map[V]) InsertAt(key Key, value V) error {
	// The slot right after the key must exist too, as the last slot is always free.
	if key.index >= maxBuckets-1 {
		return fmt.Errorf("insert at %s: %w", key, ErrIndexOutOfRange)
	}

	if uint64(key.index) < uint64(len(m.buckets)) {
		b := &m.buckets[key.index]

		switch {
		case b.occupied():
			return fmt.Errorf("insert at %s: %w", key, ErrSlotOccupied)
		case !b.free() || key.version < b.version:
			return fmt.Errorf("insert at %s: slot version is %d: %w", key, b.version, ErrVersionRegression)
		}
	}

	for uint32(len(m.buckets)) <= key.index+1 {
		m.grow()
	}

	m.takeBucketAt(key.index)
	m.buckets[key.index].fill(key.version, value)
	m.size++

	return nil
}

// Erases the value under the key. Returns false if the key wasn't present.
func (m *Map[V]) Erase(key Key) bool {
	if !m.Contains(key) {
		return false
	}

	m.freeBucket(key.index)

	return true
}

// Checks whether the key refers to a live value.
func (m *Map[V]) Contains(key Key) bool {
	if uint64(key.index) >= uint64(len(m.buckets)) {
		return false
	}

	b := &m.buckets[key.index]

	return b.occupied() && b.version == key.version
}

// Returns the value under the key.
func (m *Map[V]) Get(key Key) (V, bool) {
	if !m.Contains(key) {
		var zero V
		return zero, false
	}

	return m.buckets[key.index].value, true
}

// GetPtr returns a pointer to the stored value, or nil if the key is absent.
// The pointer is invalidated by the next insertion.
func (m *Map[V]) GetPtr(key Key) *V {
	if !m.Contains(key) {
		return nil
	}

	return &m.buckets[key.index].value
}

// MustGet is Get for keys known to be present. It panics otherwise.
func (m *Map[V]) MustGet(key Key) V {
	if !m.Contains(key) {
		panic(fmt.Sprintf("slotmap: key %s is not present", key))
	}

	return m.buckets[key.index].value
}

// Returns the number of live values.
func (m *Map[V]) Len() int {
	return m.size
}

// Returns the number of slots, including the trailing free one.
func (m *Map[V]) Cap() int {
	return len(m.buckets)
}

func (m *Map[V]) IsEmpty() bool {
	return m.size == 0
}

// Clear drops all values and resets the map to its initial state, versions
// included: keys issued before Clear may match values inserted after it.
func (m *Map[V]) Clear() {
	m.resetBuckets()
}
