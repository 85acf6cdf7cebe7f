package replay

import (
	"bytes"
	"context"
	"math"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homier/slotmap"
)

func TestParseScenario(t *testing.T) {
	s, err := ParseScenario(strings.NewReader(`
name: basic
steps:
  - op: insert
    value: A
    as: a
  - op: expect
    ref: a
    present: true
`))
	require.NoError(t, err)
	assert.Equal(t, "basic", s.Name)
	require.Len(t, s.Steps, 2)
	assert.Equal(t, Step{Op: OpInsert, Value: "A", As: "a"}, s.Steps[0])
	require.NotNil(t, s.Steps[1].Present)
	assert.True(t, *s.Steps[1].Present)
}

func TestParseScenario_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"unknown op", "steps:\n  - op: upsert\n", ErrUnknownOp},
		{"unknown field", "steps:\n  - op: insert\n    colour: red\n", nil},
		{"not yaml", "steps: [", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario(strings.NewReader(tt.input))
			require.Error(t, err)

			if tt.want != nil {
				require.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestRunner_Testdata(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			s, err := LoadScenario(path)
			require.NoError(t, err)

			report, err := NewRunner(nil).Run(context.Background(), s)
			require.NoError(t, err)
			assert.Equal(t, len(s.Steps), report.Steps)
			assert.Equal(t, s.Name, report.Scenario)
		})
	}
}

func TestRunner_Refs(t *testing.T) {
	r := NewRunner(nil)

	_, err := r.Run(context.Background(), &Scenario{Steps: []Step{
		{Op: OpInsert, Value: "A", As: "a"},
		{Op: OpInsert, Value: "B", As: "b"},
	}})
	require.NoError(t, err)

	a, ok := r.Key("a")
	require.True(t, ok)
	assert.Equal(t, slotmap.NewKey(0, 0), a)
	assert.Equal(t, "B", r.Map().MustGet(slotmap.NewKey(1, 0)))
}

func TestRunner_Failures(t *testing.T) {
	index := uint32(0)
	no := false

	tests := []struct {
		name  string
		steps []Step
		want  error
	}{
		{
			name:  "unknown ref",
			steps: []Step{{Op: OpErase, Ref: "missing"}},
			want:  ErrUnknownRef,
		},
		{
			name: "unexpected presence",
			steps: []Step{
				{Op: OpInsert, Value: "A"},
				{Op: OpExpect, Index: &index, Present: &no},
			},
			want: ErrExpect,
		},
		{
			name: "unexpected insert_at error",
			steps: []Step{
				{Op: OpInsert, Value: "A"},
				{Op: OpInsertAt, Index: &index, Value: "B"},
			},
			want: slotmap.ErrSlotOccupied,
		},
		{
			name:  "missing insert_at error",
			steps: []Step{{Op: OpInsertAt, Index: &index, Value: "B", Error: "occupied"}},
			want:  ErrExpect,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRunner(nil).Run(context.Background(), &Scenario{Steps: tt.steps})
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRunner_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(nil).Run(ctx, &Scenario{Steps: []Step{{Op: OpInsert}}})
	require.ErrorIs(t, err, context.Canceled)
}

func TestDump_RoundTrip(t *testing.T) {
	m := slotmap.New[string]()
	for _, v := range []string{"A", "B", "C", "D", "E"} {
		m.Insert(v)
	}

	for k := range m.Keys() {
		if k.Index()%2 == 1 {
			m.Erase(k)
		}
	}

	m.Insert("F")

	var buf bytes.Buffer
	require.NoError(t, DumpMap(m).Write(&buf))
	assert.Contains(t, buf.String(), "entries:")

	d, err := ReadDump(&buf)
	require.NoError(t, err)
	require.Len(t, d.Entries, m.Len())

	restored, err := Restore(d, 0)
	require.NoError(t, err)
	require.NoError(t, restored.CheckIntegrity())

	assert.Equal(t, slices.Collect(m.Keys()), slices.Collect(restored.Keys()))
	assert.Equal(t, slices.Collect(m.Values()), slices.Collect(restored.Values()))
}

func TestRestore_Errors(t *testing.T) {
	k := slotmap.NewKey(2, 1)

	_, err := Restore(&Dump{Entries: []Entry{{ID: k.ID(), Index: 3, Version: 1}}}, 0)
	require.ErrorIs(t, err, ErrDumpMismatch)

	_, err = Restore(&Dump{Entries: []Entry{
		{ID: k.ID(), Index: 2, Version: 1, Value: "a"},
		{ID: k.ID(), Index: 2, Version: 1, Value: "b"},
	}}, 0)
	require.ErrorIs(t, err, slotmap.ErrSlotOccupied)
}

func TestRestore_IndexLimit(t *testing.T) {
	entry := func(index uint32) Entry {
		k := slotmap.NewKey(index, 0)
		return Entry{ID: k.ID(), Index: index, Value: "x"}
	}

	assert.Equal(t, uint32(1<<20), IndexLimit(0))
	assert.Equal(t, uint32(1<<20), IndexLimit(100))
	assert.Equal(t, uint32(64<<20), IndexLimit(1<<20))
	assert.Equal(t, uint32(math.MaxUint32-1), IndexLimit(1<<40))

	// Far away indices are refused before the map grows towards them.
	_, err := Restore(&Dump{Entries: []Entry{entry(0), entry(1 << 31)}}, 0)
	require.ErrorIs(t, err, ErrIndexLimit)

	_, err = Restore(&Dump{Entries: []Entry{entry(10)}}, 10)
	require.ErrorIs(t, err, ErrIndexLimit)

	m, err := Restore(&Dump{Entries: []Entry{entry(9)}}, 10)
	require.NoError(t, err)
	assert.Equal(t, "x", m.MustGet(slotmap.NewKey(9, 0)))
}

func TestRestore_SparseDump(t *testing.T) {
	const n = 100_000

	src := slotmap.New[string]()
	for i := range 2 * n {
		src.Insert(strconv.Itoa(i))
	}

	for k := range src.Keys() {
		if k.Index()%2 == 1 {
			src.Erase(k)
		}
	}

	d := DumpMap(src)
	require.Len(t, d.Entries, n)

	start := time.Now()
	m, err := Restore(d, 0)
	require.NoError(t, err)

	// Entries come in ascending index order, each lands in the trailing block.
	assert.Less(t, time.Since(start), 3*time.Second)
	assert.Equal(t, n, m.Len())
	require.NoError(t, m.CheckIntegrity())
	assert.Equal(t, slices.Collect(src.Keys()), slices.Collect(m.Keys()))
}
