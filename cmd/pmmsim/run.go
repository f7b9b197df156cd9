package main

import (
	"fmt"
	"sort"

	"github.com/A1Liu/os/internal/scenario"
	"github.com/A1Liu/os/kernel/mem/pmm"
	"github.com/spf13/cobra"
)

var (
	runValidateEach bool
)

func init() {
	cmd := newRunCmd()
	cmd.Flags().BoolVar(&runValidateEach, "validate-each", false, "Validate the heap after every op")
	rootCmd.AddCommand(cmd)
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Run a scenario and report the allocator state",
		Long: `The run command initializes the allocator from the scenario memory map,
executes every op of the scenario script and prints the resulting allocator
state. A kernel halt stops the run and prints the last kernel diagnostics.

Example:
  pmmsim run split_merge.yaml
  pmmsim run split_merge.yaml --validate-each
  pmmsim run split_merge.yaml --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(args)
		},
	}
	return cmd
}

func runRun(args []string) error {
	printVerbose("Loading scenario: %s\n", args[0])

	s, err := scenario.Load(args[0])
	if err != nil {
		return err
	}

	report, runErr := scenario.Run(s, scenario.Options{
		Logger:         newLogger(),
		ValidateEachOp: runValidateEach,
	})
	if report == nil {
		return runErr
	}

	if jsonOut {
		if err := printJSON(report); err != nil {
			return err
		}
		return runErr
	}

	printReport(report)
	return runErr
}

func printReport(report *scenario.Report) {
	if report.Name != "" {
		printInfo("Scenario: %s\n\n", report.Name)
	}

	if len(report.Ops) != 0 {
		printInfo("Ops:\n")
		for _, op := range report.Ops {
			printOpResult(op)
		}
		printInfo("\n")
	}

	if report.Halted {
		printInfo("Kernel halted. Last kernel output:\n")
		for _, line := range report.Diagnostics {
			printInfo("  %s\n", line)
		}
		return
	}

	printInfo("Allocator:\n")
	printInfo("  Frames:       %s\n", printer.Sprintf("%d", report.FrameCount))
	printInfo("  Initial free: %s\n", formatBytes(report.InitialFree))
	printInfo("  Free:         %s\n", formatBytes(report.FreeMemory))

	printInfo("\nFree lists:\n")
	for class, n := range report.ClassLens {
		if n == 0 && !verbose {
			continue
		}
		printInfo("  class %2d (%5d frames): %d\n", class, pmm.ClassFrames(class), n)
	}

	if len(report.Live) != 0 {
		printInfo("\nLive blocks:\n")
		for _, ref := range sortedRefs(report.Live) {
			printInfo("  %-12s %s\n", ref, formatBytes(report.Live[ref]))
		}
	}
}

func printOpResult(op scenario.OpResult) {
	line := fmt.Sprintf("  #%-3d %-8s", op.Index, op.Op)
	if op.Ref != "" {
		line += fmt.Sprintf(" %-10s", op.Ref)
	}
	switch {
	case op.Error != "":
		line += " error: " + op.Error
	case op.Size != 0:
		line += fmt.Sprintf(" 0x%x +%s", op.Addr, formatBytes(op.Size))
	case op.Changed != 0:
		line += fmt.Sprintf(" 0x%x changed %d frames", op.Addr, op.Changed)
	}
	printInfo("%s\n", line)
}

func sortedRefs(live map[string]uint64) []string {
	refs := make([]string, 0, len(live))
	for ref := range live {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}
