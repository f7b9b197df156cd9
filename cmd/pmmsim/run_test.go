package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/A1Liu/os/internal/scenario"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCommand(t *testing.T) {
	resetFlags()
	defer resetFlags()

	runValidateEach = true
	output, err := captureOutput(t, func() error {
		return runRun([]string{scenarioPath(t, "split_merge.yaml")})
	})
	require.NoError(t, err)

	assert.Contains(t, output, "Scenario: split and merge a top class block")
	assert.Contains(t, output, "error: out of memory")
	assert.Contains(t, output, "Initial free: 8,388,608 (8 MiB)")
	assert.Contains(t, output, "Free:         8,323,072 (8,128 KiB)")
	assert.Contains(t, output, "class  4 (   16 frames): 1")
	assert.Contains(t, output, "c            65,536 (64 KiB)")
}

func TestRunCommandJSON(t *testing.T) {
	resetFlags()
	defer resetFlags()

	jsonOut = true
	output, err := captureOutput(t, func() error {
		return runRun([]string{scenarioPath(t, "split_merge.yaml")})
	})
	require.NoError(t, err)

	var report scenario.Report
	require.NoError(t, json.Unmarshal([]byte(output), &report))
	require.Equal(t, uint64(8<<20)-16*4096, report.FreeMemory)
	require.Equal(t, 1, report.ClassLens[4])
}

func TestRunCommandHalt(t *testing.T) {
	resetFlags()
	defer resetFlags()

	output, err := captureOutput(t, func() error {
		return runRun([]string{scenarioPath(t, "double_free.yaml")})
	})
	require.ErrorIs(t, err, scenario.ErrHalted)
	assert.Contains(t, output, "Kernel halted")
	assert.Contains(t, output, "*** kernel panic: system halted ***")
}

func TestRunCommandErrors(t *testing.T) {
	resetFlags()
	defer resetFlags()

	_, err := captureOutput(t, func() error {
		return runRun([]string{filepath.Join(t.TempDir(), "missing.yaml")})
	})
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("regions: []\n"), 0o644))
	_, err = captureOutput(t, func() error {
		return runRun([]string{path})
	})
	require.ErrorIs(t, err, scenario.ErrInvalidScenario)
}
