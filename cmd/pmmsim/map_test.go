package main

import (
	"encoding/json"
	"testing"

	"github.com/A1Liu/os/internal/scenario"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMapSummary(t *testing.T) {
	s, err := scenario.Load(scenarioPath(t, "qemu.yaml"))
	require.NoError(t, err)

	summary := buildMapSummary(s)
	require.Len(t, summary.Entries, 6)

	exp := []MapEntry{
		{Type: "free", Base: 0x0, Length: 0x9f000, FirstFrame: 0, EndFrame: 159},
		{Type: "used", Base: 0x9f000, Length: 0x1000},
		{Type: "used", Base: 0xf0000, Length: 0x10000},
		{Type: "free", Base: 0x100000, Length: 0x7ee0000, FirstFrame: 256, EndFrame: 32736},
		{Type: "acpi", Base: 0x7fe0000, Length: 0x20000},
		{Type: "mmio", Base: 0xfffc0000, Length: 0x40000},
	}
	require.Equal(t, exp, summary.Entries)
	require.Equal(t, uint64(0x9f000+0x7ee0000), summary.FreeBytes)
	require.Equal(t, uint64(159+32480), summary.FreeFrames)
}

func TestBuildMapSummaryPartialPages(t *testing.T) {
	s, err := scenario.Parse([]byte(`
regions:
  - {base: 0x1010, length: 0x1ff0, type: free}
  - {base: 0x3000, length: 0x800, type: free}
`))
	require.NoError(t, err)

	summary := buildMapSummary(s)
	require.Equal(t, uint64(2), summary.Entries[0].FirstFrame)
	require.Equal(t, uint64(3), summary.Entries[0].EndFrame)
	require.Zero(t, summary.Entries[1].EndFrame)
	require.Equal(t, uint64(1), summary.FreeFrames)
}

func TestMapCommand(t *testing.T) {
	resetFlags()
	defer resetFlags()

	output, err := captureOutput(t, func() error {
		return runMap([]string{scenarioPath(t, "qemu.yaml")})
	})
	require.NoError(t, err)

	assert.Contains(t, output, "free   0x0000000000100000  0x0000000007fe0000  [256, 32,736)")
	assert.Contains(t, output, "mmio   0x00000000fffc0000  0x0000000100000000  -")
	assert.Contains(t, output, "Usable pages: 32,639")

	jsonOut = true
	output, err = captureOutput(t, func() error {
		return runMap([]string{scenarioPath(t, "qemu.yaml")})
	})
	require.NoError(t, err)

	var summary MapSummary
	require.NoError(t, json.Unmarshal([]byte(output), &summary))
	require.Len(t, summary.Entries, 6)
}
