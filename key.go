package slotmap

import (
	"cmp"
	"math"
	"strconv"
)

const nullIndex = math.MaxUint32

// Key is a handle to a value stored in a Map.
// It's a plain value: copy it, store it, compare it. A key outliving its value
// is fine, Contains and Get will report it as absent.
type Key struct {
	index   uint32
	version uint32
}

// NullKey never refers to a value.
var NullKey = Key{index: nullIndex}

// NewKey builds a key from its parts, mostly for rehydrating persisted handles.
func NewKey(index, version uint32) Key {
	return Key{index: index, version: version}
}

// Returns the slot index of the key.
func (k Key) Index() uint32 {
	return k.index
}

// Returns the version of the key.
func (k Key) Version() uint32 {
	return k.version
}

func (k Key) IsNull() bool {
	return k.index == nullIndex
}

// ID packs the key into a single uint64. Ordering of IDs matches key ordering.
func (k Key) ID() uint64 {
	return uint64(k.index)<<32 | uint64(k.version)
}

// KeyFromID is the inverse of Key.ID.
func KeyFromID(id uint64) Key {
	return Key{index: uint32(id >> 32), version: uint32(id)}
}

// Compare orders keys by index, then by version.
func (k Key) Compare(other Key) int {
	if c := cmp.Compare(k.index, other.index); c != 0 {
		return c
	}

	return cmp.Compare(k.version, other.version)
}

func (k Key) Less(other Key) bool {
	return k.Compare(other) < 0
}

func (k Key) String() string {
	if k.IsNull() {
		return "null"
	}

	return strconv.FormatUint(uint64(k.index), 10) + "v" + strconv.FormatUint(uint64(k.version), 10)
}
