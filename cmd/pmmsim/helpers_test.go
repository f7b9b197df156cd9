package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// scenarioPath returns the path of a scenario shipped with the scenario
// package tests.
func scenarioPath(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join("..", "..", "internal", "scenario", "testdata", name)
	_, err := os.Stat(path)
	require.NoError(t, err, "test scenario not found: %s", path)
	return path
}

// captureOutput captures stdout while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	var buf bytes.Buffer
	done := make(chan struct{})
	go func() {
		io.Copy(&buf, r)
		close(done)
	}()

	fnErr := fn()

	w.Close()
	os.Stdout = origStdout
	<-done

	return buf.String(), fnErr
}

// resetFlags restores the global flags to their defaults.
func resetFlags() {
	verbose, quiet, jsonOut = false, false, false
	runValidateEach = false
	renderOut, renderColumns, renderCell, renderMax = "frames.png", 64, 6, 1<<18
}
