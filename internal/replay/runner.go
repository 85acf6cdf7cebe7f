package replay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/homier/slotmap"
)

var insertErrors = map[string]error{
	"occupied": slotmap.ErrSlotOccupied,
	"version":  slotmap.ErrVersionRegression,
	"range":    slotmap.ErrIndexOutOfRange,
}

type Report struct {
	Scenario string
	Steps    int
	Stats    slotmap.Stats
}

// Runner executes scenarios against a single map, keeping named keys
// between runs.
type Runner struct {
	m      *slotmap.Map[string]
	refs   map[string]slotmap.Key
	logger *slog.Logger
}

func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Runner{
		m:      slotmap.New(slotmap.WithLogger[string](logger)),
		refs:   make(map[string]slotmap.Key),
		logger: logger,
	}
}

func (r *Runner) Map() *slotmap.Map[string] {
	return r.m
}

// Key returns the key stored under a name by a previous step.
func (r *Runner) Key(name string) (slotmap.Key, bool) {
	k, ok := r.refs[name]
	return k, ok
}

// Run executes all steps, verifying map integrity after each one.
// It stops at the first failing step.
func (r *Runner) Run(ctx context.Context, s *Scenario) (*Report, error) {
	logger := r.logger.With("scenario", s.Name)

	for i, st := range s.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := r.step(st); err != nil {
			logger.ErrorContext(ctx, "step failed", "step", i, "op", st.Op, "error", err)
			return nil, fmt.Errorf("step %d (%s): %w", i, st.Op, err)
		}

		if err := r.m.CheckIntegrity(); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, st.Op, err)
		}

		logger.DebugContext(ctx, "step done", "step", i, "op", st.Op, "size", r.m.Len())
	}

	report := &Report{
		Scenario: s.Name,
		Steps:    len(s.Steps),
		Stats:    r.m.Stats(),
	}

	logger.InfoContext(ctx, "scenario completed",
		"steps", report.Steps,
		"size", report.Stats.Size,
		"capacity", report.Stats.Capacity,
		"free_blocks", report.Stats.FreeBlocks,
	)

	return report, nil
}

func (r *Runner) step(st Step) error {
	switch st.Op {
	case OpInsert:
		r.store(st.As, r.m.Insert(st.Value))
	case OpInsertAt:
		return r.insertAt(st)
	case OpErase:
		k, err := r.key(st)
		if err != nil {
			return err
		}

		erased := r.m.Erase(k)
		if st.Present != nil && *st.Present != erased {
			return fmt.Errorf("%w: erase %s: erased=%t", ErrExpect, k, erased)
		}
	case OpExpect:
		return r.expect(st)
	case OpClear:
		r.m.Clear()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOp, st.Op)
	}

	return nil
}

func (r *Runner) insertAt(st Step) error {
	k, err := r.key(st)
	if err != nil {
		return err
	}

	err = r.m.InsertAt(k, st.Value)

	if st.Error == "" {
		if err != nil {
			return err
		}

		r.store(st.As, k)

		return nil
	}

	want, ok := insertErrors[st.Error]
	if !ok {
		return fmt.Errorf("unknown error kind %q", st.Error)
	}

	if !errors.Is(err, want) {
		return fmt.Errorf("%w: insert_at %s: got %v, want %v", ErrExpect, k, err, want)
	}

	return nil
}

func (r *Runner) expect(st Step) error {
	if st.Size != nil && r.m.Len() != *st.Size {
		return fmt.Errorf("%w: size is %d, want %d", ErrExpect, r.m.Len(), *st.Size)
	}

	if st.Ref == "" && st.Index == nil {
		return nil
	}

	k, err := r.key(st)
	if err != nil {
		return err
	}

	v, ok := r.m.Get(k)
	if st.Present != nil && ok != *st.Present {
		return fmt.Errorf("%w: %s present=%t", ErrExpect, k, ok)
	}

	if ok && st.Value != "" && v != st.Value {
		return fmt.Errorf("%w: %s is %q, want %q", ErrExpect, k, v, st.Value)
	}

	return nil
}

func (r *Runner) key(st Step) (slotmap.Key, error) {
	if st.Ref != "" {
		k, ok := r.refs[st.Ref]
		if !ok {
			return slotmap.NullKey, fmt.Errorf("%w: %q", ErrUnknownRef, st.Ref)
		}

		return k, nil
	}

	if st.Index == nil {
		return slotmap.NullKey, errors.New("step needs either ref or index")
	}

	var version uint32
	if st.Version != nil {
		version = *st.Version
	}

	return slotmap.NewKey(*st.Index, version), nil
}

func (r *Runner) store(name string, k slotmap.Key) {
	if name != "" {
		r.refs[name] = k
	}
}
