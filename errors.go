package slotmap

import (
	"errors"
	"fmt"
)

var (
	// ErrSlotOccupied is returned by InsertAt when the target slot holds a value.
	ErrSlotOccupied = errors.New("slot is occupied")

	// ErrVersionRegression is returned by InsertAt when the slot has already
	// been used with the requested version or a newer one.
	ErrVersionRegression = errors.New("version regression")

	// ErrIndexOutOfRange is returned by InsertAt for the null key and for
	// indices the map can never address.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrCorrupted is the root of every TopologyError.
	ErrCorrupted = errors.New("corrupted free list")
)

// TopologyError describes a broken free list invariant. It means a bug in the
// map itself, not a misuse: map operations panic with it, CheckIntegrity
// returns it.
type TopologyError struct {
	Op     string
	Index  uint32
	Reason string
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf("slotmap: %s at index %d: %s", e.Op, e.Index, e.Reason)
}

func (e *TopologyError) Unwrap() error { return ErrCorrupted }
