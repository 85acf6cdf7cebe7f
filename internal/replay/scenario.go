// Package replay drives a slot map from YAML scenario files.
//
// A scenario is a list of steps run against a Map[string]. Keys returned by
// inserts can be given a name and referenced by later steps:
//
//	name: erase-and-reuse
//	steps:
//	  - op: insert
//	    value: A
//	    as: a
//	  - op: erase
//	    ref: a
//	  - op: insert
//	    value: D
//	    as: d
//	  - op: expect
//	    ref: a
//	    present: false
package replay

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	OpInsert   = "insert"
	OpInsertAt = "insert_at"
	OpErase    = "erase"
	OpExpect   = "expect"
	OpClear    = "clear"
)

var (
	ErrUnknownOp  = errors.New("unknown op")
	ErrUnknownRef = errors.New("unknown ref")
	ErrExpect     = errors.New("expectation failed")
)

type Scenario struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

type Step struct {
	Op    string `yaml:"op"`
	Value string `yaml:"value,omitempty"`

	// Name to store the resulting key under.
	As string `yaml:"as,omitempty"`
	// Name of a key stored by a previous step.
	Ref string `yaml:"ref,omitempty"`

	// Explicit key for insert_at, erase and expect when Ref is empty.
	Index   *uint32 `yaml:"index,omitempty"`
	Version *uint32 `yaml:"version,omitempty"`

	// insert_at: the error expected, one of "occupied", "version", "range".
	Error string `yaml:"error,omitempty"`

	// expect: whether the key must be present, and with which value.
	Present *bool `yaml:"present,omitempty"`
	Size    *int  `yaml:"size,omitempty"`
}

func ParseScenario(r io.Reader) (*Scenario, error) {
	var s Scenario

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}

	for i, st := range s.Steps {
		switch st.Op {
		case OpInsert, OpInsertAt, OpErase, OpExpect, OpClear:
		default:
			return nil, fmt.Errorf("step %d: %w: %q", i, ErrUnknownOp, st.Op)
		}
	}

	return &s, nil
}

func LoadScenario(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ParseScenario(f)
}
