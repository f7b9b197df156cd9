package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	// Global flags
	verbose bool
	quiet   bool
	jsonOut bool

	printer = message.NewPrinter(language.English)
)

var rootCmd = &cobra.Command{
	Use:   "pmmsim",
	Short: "Run the kernel physical memory allocator on the host",
	Long: `pmmsim drives the kernel buddy allocator against memory maps described
in scenario files. Physical memory is simulated with an anonymous mapping so
the allocator runs unmodified, including its fatal consistency checks.`,
	Version: "0.1.0",
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger returns the logger handed to scenario sessions. Kernel output is
// logged at debug level and only shown with --verbose.
func newLogger() *slog.Logger {
	if !verbose || quiet {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...interface{}) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// formatBytes renders n with digit grouping followed by a short human
// readable size, e.g. "8,388,608 (8 MiB)".
func formatBytes(n uint64) string {
	units := []string{"B", "KiB", "MiB", "GiB", "TiB"}

	scaled, unit := n, 0
	for scaled >= 1024 && scaled%1024 == 0 && unit < len(units)-1 {
		scaled /= 1024
		unit++
	}

	if unit == 0 {
		return printer.Sprintf("%d B", n)
	}
	return printer.Sprintf("%d (%d %s)", n, scaled, units[unit])
}
