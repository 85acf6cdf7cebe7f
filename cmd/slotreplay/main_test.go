package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homier/slotmap/internal/replay"
)

const testdata = "../../internal/replay/testdata"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer

	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)

	err := cmd.Execute()

	return out.String(), err
}

func TestRun(t *testing.T) {
	out, err := execute(t, "run",
		filepath.Join(testdata, "erase_middle.yaml"),
		filepath.Join(testdata, "insert_at.yaml"),
	)
	require.NoError(t, err)

	assert.Contains(t, out, "erase_middle.yaml: 7 steps, size=2")
	assert.Contains(t, out, "insert_at.yaml: 10 steps, size=0")
}

func TestRun_MissingFile(t *testing.T) {
	_, err := execute(t, "run", filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestDumpRestore(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "handles.yaml")

	_, err := execute(t, "dump", filepath.Join(testdata, "stale_key.yaml"), "-o", dump)
	require.NoError(t, err)

	data, err := os.ReadFile(dump)
	require.NoError(t, err)
	assert.Contains(t, string(data), "value: D")

	out, err := execute(t, "--log-format", "json", "restore", dump)
	require.NoError(t, err)
	assert.Equal(t, "0v1\t1\tD\n", out)
}

func TestInvalidLogFlags(t *testing.T) {
	_, err := execute(t, "--log-level", "loud", "run", filepath.Join(testdata, "stale_key.yaml"))
	require.Error(t, err)

	_, err = execute(t, "--log-format", "xml", "run", filepath.Join(testdata, "stale_key.yaml"))
	require.Error(t, err)
}

func TestRestore_MaxIndex(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "handles.yaml")
	require.NoError(t, os.WriteFile(dump, []byte("entries:\n  - {id: 42949672960, index: 10, version: 0, value: X}\n"), 0o644))

	_, err := execute(t, "restore", "--max-index", "10", dump)
	require.ErrorIs(t, err, replay.ErrIndexLimit)

	out, err := execute(t, "restore", "--max-index", "11", dump)
	require.NoError(t, err)
	assert.Equal(t, "10v0\t42949672960\tX\n", out)
}

func TestDump_WriteError(t *testing.T) {
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("no /dev/full")
	}

	_, err := execute(t, "dump", filepath.Join(testdata, "stale_key.yaml"), "-o", "/dev/full")
	require.Error(t, err)
}
