package main

import (
	"github.com/A1Liu/os/internal/scenario"
	"github.com/A1Liu/os/kernel/mem"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newMapCmd())
}

func newMapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "map <scenario>",
		Short: "Show the memory map of a scenario",
		Long: `The map command prints the memory map entries of a scenario the way the
loader hands them to the kernel. Each free entry is followed by its page
aligned frame range as reported by the loader. The allocator carves its
bitmaps out of the first free entries before managing the rest, so the
frames it ends up managing are a subset of these ranges.

Example:
  pmmsim map qemu.yaml
  pmmsim map qemu.yaml --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMap(args)
		},
	}
	return cmd
}

// MapEntry is a memory map entry as reported by the map command.
type MapEntry struct {
	Type   string `json:"type"`
	Base   uint64 `json:"base"`
	Length uint64 `json:"length"`

	// FirstFrame and EndFrame bound the whole pages of a free entry. They
	// are equal when the entry holds no full page.
	FirstFrame uint64 `json:"first_frame,omitempty"`
	EndFrame   uint64 `json:"end_frame,omitempty"`
}

// MapSummary is the output of the map command.
type MapSummary struct {
	Entries    []MapEntry `json:"entries"`
	FreeBytes  uint64     `json:"free_bytes"`
	FreeFrames uint64     `json:"free_frames"`
}

func buildMapSummary(s *scenario.Scenario) MapSummary {
	var summary MapSummary

	for _, entry := range scenario.Entries(s.Regions) {
		me := MapEntry{
			Type:   entry.Type().String(),
			Base:   entry.Ptr,
			Length: entry.Length(),
		}

		if entry.IsFree() {
			begin := mem.AlignUp(uintptr(entry.Ptr), uintptr(mem.PageSize))
			end := mem.AlignDown(uintptr(entry.Ptr+entry.Length()), uintptr(mem.PageSize))
			if end > begin {
				me.FirstFrame = uint64(begin >> mem.PageShift)
				me.EndFrame = uint64(end >> mem.PageShift)
			}

			summary.FreeBytes += me.Length
			summary.FreeFrames += me.EndFrame - me.FirstFrame
		}

		summary.Entries = append(summary.Entries, me)
	}

	return summary
}

func runMap(args []string) error {
	s, err := scenario.Load(args[0])
	if err != nil {
		return err
	}

	summary := buildMapSummary(s)
	if jsonOut {
		return printJSON(summary)
	}

	printInfo("%-5s  %-18s  %-18s  %s\n", "type", "base", "end", "frames")
	for _, e := range summary.Entries {
		frames := "-"
		if e.EndFrame > e.FirstFrame {
			frames = printer.Sprintf("[%d, %d)", e.FirstFrame, e.EndFrame)
		}
		printInfo("%-5s  0x%016x  0x%016x  %s\n", e.Type, e.Base, e.Base+e.Length, frames)
	}

	printInfo("\nFree memory:  %s\n", formatBytes(summary.FreeBytes))
	printInfo("Usable pages: %s\n", printer.Sprintf("%d", summary.FreeFrames))
	return nil
}
