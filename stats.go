package slotmap

type Stats struct {
	Size              int
	Capacity          int
	FreeSlots         int
	FreeBlocks        int
	Retired           int
	FreeCapacityRatio float32
	// Average number of slots per free block.
	FreeBlockLength float32
}

// Returns the map statistics.
func (m *Map[V]) Stats() Stats {
	s := Stats{
		Size:       m.size,
		Capacity:   len(m.buckets),
		FreeBlocks: m.freeBlocks,
		Retired:    m.retired,
	}

	s.FreeSlots = s.Capacity - s.Size - s.Retired
	s.FreeCapacityRatio = float32(s.FreeSlots) / float32(s.Capacity)

	if s.FreeBlocks > 0 {
		s.FreeBlockLength = float32(s.FreeSlots) / float32(s.FreeBlocks)
	}

	return s
}
