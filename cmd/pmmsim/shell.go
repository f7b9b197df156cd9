package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	tty "github.com/mattn/go-tty"

	"github.com/A1Liu/os/internal/scenario"
	"github.com/spf13/cobra"
)

const shellHelp = `commands:
  alloc <count> <ref>           allocate exactly count frames
  try <count> <ref>             allocate up to count frames
  zeroed <count> <ref>          allocate count zeroed frames
  release <ref>                 release a block allocated earlier
  release <addr> <count>        release count frames at a physical address
  mark <addr> <count> [usable]  mark frames as unusable (or usable)
  validate                      run the heap validator
  report                        show free memory and free list lengths
  help                          show this message
  quit                          leave the shell
`

var errBadCommand = errors.New("bad command")

// lineReader is the part of *tty.TTY the shell loop needs.
type lineReader interface {
	ReadString() (string, error)
}

func init() {
	rootCmd.AddCommand(newShellCmd())
}

func newShellCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shell <scenario>",
		Short: "Explore the allocator interactively",
		Long: `The shell command initializes the allocator from the scenario memory map,
runs the scenario script and then reads allocator commands from the terminal.
Type "help" for the list of commands.

Example:
  pmmsim shell qemu.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(args)
		},
	}
	return cmd
}

func runShell(args []string) error {
	s, err := scenario.Load(args[0])
	if err != nil {
		return err
	}

	ss, err := scenario.NewSession(s, scenario.Options{Logger: newLogger()})
	if err != nil {
		return err
	}
	defer ss.Close()

	for i, op := range s.Ops {
		if _, err := ss.Apply(op); err != nil {
			return fmt.Errorf("op %d (%s): %w", i, op.Op, err)
		}
	}

	term, err := tty.Open()
	if err != nil {
		return fmt.Errorf("failed to open terminal: %w", err)
	}
	defer term.Close()

	return shellLoop(ss, term, term.Output())
}

// shellLoop reads commands from in until it is exhausted or the user quits.
// Command errors are reported and the loop continues; a kernel halt ends it.
func shellLoop(ss *scenario.Session, in lineReader, out io.Writer) error {
	fmt.Fprintf(out, "free memory: %s\n", formatBytes(ss.Report().FreeMemory))

	for {
		fmt.Fprint(out, "pmm> ")

		line, err := in.ReadString()
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(out)
			return nil
		}
		if err != nil {
			return err
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "quit", "exit":
			return nil
		case "help":
			fmt.Fprint(out, shellHelp)
			continue
		case "report":
			printShellReport(out, ss.Report())
			continue
		}

		op, err := parseShellOp(fields)
		if err != nil {
			fmt.Fprintf(out, "%v\n", err)
			continue
		}

		res, err := ss.Apply(op)
		switch {
		case errors.Is(err, scenario.ErrHalted):
			report := ss.Report()
			for _, line := range report.Diagnostics {
				fmt.Fprintf(out, "  %s\n", line)
			}
			return err
		case err != nil:
			fmt.Fprintf(out, "%v\n", err)
		case res.Error != "":
			fmt.Fprintf(out, "%s failed: %s\n", op.Op, res.Error)
		case res.Changed != 0:
			fmt.Fprintf(out, "%d frames changed\n", res.Changed)
		case res.Size != 0:
			fmt.Fprintf(out, "0x%x +%s, free %s\n", res.Addr, formatBytes(res.Size), formatBytes(res.FreeMemory))
		default:
			fmt.Fprintln(out, "ok")
		}
	}
}

// parseShellOp turns a command line split into fields into a scenario op.
func parseShellOp(fields []string) (scenario.Op, error) {
	op := scenario.Op{Op: fields[0]}
	args := fields[1:]

	switch op.Op {
	case scenario.OpAlloc, scenario.OpTry, scenario.OpZeroed:
		if len(args) != 2 {
			return op, fmt.Errorf("%w: usage: %s <count> <ref>", errBadCommand, op.Op)
		}
		count, err := strconv.Atoi(args[0])
		if err != nil {
			return op, fmt.Errorf("%w: invalid count %q", errBadCommand, args[0])
		}
		op.Count, op.Ref = count, args[1]

	case scenario.OpRelease:
		switch len(args) {
		case 1:
			op.Ref = args[0]
		case 2:
			if err := parseAddrCount(&op, args); err != nil {
				return op, err
			}
		default:
			return op, fmt.Errorf("%w: usage: release <ref> | release <addr> <count>", errBadCommand)
		}

	case scenario.OpMark:
		if len(args) != 2 && len(args) != 3 {
			return op, fmt.Errorf("%w: usage: mark <addr> <count> [usable]", errBadCommand)
		}
		if err := parseAddrCount(&op, args[:2]); err != nil {
			return op, err
		}
		if len(args) == 3 {
			if args[2] != "usable" {
				return op, fmt.Errorf("%w: unexpected %q", errBadCommand, args[2])
			}
			op.Usable = true
		}

	case scenario.OpValidate:
		if len(args) != 0 {
			return op, fmt.Errorf("%w: validate takes no arguments", errBadCommand)
		}

	default:
		return op, fmt.Errorf("%w: unknown command %q, type help for a list", errBadCommand, op.Op)
	}

	return op, nil
}

func parseAddrCount(op *scenario.Op, args []string) error {
	addr, err := scenario.ParseSize(args[0])
	if err != nil {
		return fmt.Errorf("%w: invalid address %q", errBadCommand, args[0])
	}
	count, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("%w: invalid count %q", errBadCommand, args[1])
	}

	op.Addr, op.Count = addr, count
	return nil
}

func printShellReport(out io.Writer, report *scenario.Report) {
	fmt.Fprintf(out, "free memory: %s\n", formatBytes(report.FreeMemory))
	for class, n := range report.ClassLens {
		if n != 0 {
			fmt.Fprintf(out, "  class %2d: %d\n", class, n)
		}
	}
	for _, ref := range sortedRefs(report.Live) {
		fmt.Fprintf(out, "  %-12s %s\n", ref, formatBytes(report.Live[ref]))
	}
}
