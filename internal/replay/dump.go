package replay

import (
	"errors"
	"fmt"
	"io"
	"math"

	"gopkg.in/yaml.v3"

	"github.com/homier/slotmap"
)

var (
	ErrDumpMismatch = errors.New("entry id does not match index and version")
	ErrIndexLimit   = errors.New("entry index over the limit")
)

const (
	// Restored maps may be this much sparser than their entry count.
	maxSparseness = 64
	minIndexLimit = 1 << 20
)

// IndexLimit is the default bound on restored indices for a dump with the
// given number of entries.
func IndexLimit(entries int) uint32 {
	return uint32(min(max(uint64(entries)*maxSparseness, minIndexLimit), math.MaxUint32-1))
}

// Entry is a persisted handle. ID is authoritative, Index and Version are
// kept for readability and checked on restore.
type Entry struct {
	ID      uint64 `yaml:"id"`
	Index   uint32 `yaml:"index"`
	Version uint32 `yaml:"version"`
	Value   string `yaml:"value"`
}

type Dump struct {
	Entries []Entry `yaml:"entries"`
}

// DumpMap captures live handles in index order.
func DumpMap(m *slotmap.Map[string]) *Dump {
	d := &Dump{Entries: make([]Entry, 0, m.Len())}

	for k, v := range m.All() {
		d.Entries = append(d.Entries, Entry{
			ID:      k.ID(),
			Index:   k.Index(),
			Version: k.Version(),
			Value:   v,
		})
	}

	return d
}

func (d *Dump) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("write dump: %w", err)
	}

	return enc.Close()
}

func ReadDump(r io.Reader) (*Dump, error) {
	var d Dump
	if err := yaml.NewDecoder(r).Decode(&d); err != nil {
		return nil, fmt.Errorf("read dump: %w", err)
	}

	return &d, nil
}

// Restore rebuilds a map holding exactly the dumped handles.
// Entries with an index at or above limit are refused before anything is
// allocated; a zero limit means IndexLimit(len(d.Entries)).
func Restore(d *Dump, limit uint32, opts ...slotmap.Option[string]) (*slotmap.Map[string], error) {
	if limit == 0 {
		limit = IndexLimit(len(d.Entries))
	}

	keys := make([]slotmap.Key, len(d.Entries))
	for i, e := range d.Entries {
		k := slotmap.KeyFromID(e.ID)
		if k.Index() != e.Index || k.Version() != e.Version {
			return nil, fmt.Errorf("entry %d: %w: id %d is %s", i, ErrDumpMismatch, e.ID, k)
		}

		if k.Index() >= limit {
			return nil, fmt.Errorf("entry %d: %w: index %d, limit %d", i, ErrIndexLimit, k.Index(), limit)
		}

		keys[i] = k
	}

	m := slotmap.New(opts...)

	for i, e := range d.Entries {
		if err := m.InsertAt(keys[i], e.Value); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}

	return m, nil
}
