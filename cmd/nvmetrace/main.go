// Command nvmetrace is a tool for viewing and analyzing NVMe handle traces.
//
// Trace files are written by nvmeadm with the -trace flag, or by any program
// that sets nvme.Config.TraceLogger to a trace.FileLogger.
//
// Usage:
//
//	nvmetrace <command> [flags] <file.ntrace>
//
// Commands:
//
//	view     View trace file in human-readable format
//	export   Export trace file to JSON or CSV format
//	filter   Filter trace file and write to new file
//	stats    Show statistics about the trace file
//
// Examples:
//
//	# View all events
//	nvmetrace view nvmeadm.ntrace
//
//	# View only lock events
//	nvmetrace view -resource lock nvmeadm.ntrace
//
//	# Export to CSV
//	nvmetrace export -format csv -o calls.csv nvmeadm.ntrace
//
//	# Keep only failures
//	nvmetrace filter -failed -o failures.ntrace nvmeadm.ntrace
//
//	# Show statistics, including handles never closed
//	nvmetrace stats nvmeadm.ntrace
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/nvme-go/nvme-go/cmd/nvmetrace/commands"
)

const usage = `nvmetrace - NVMe Handle Trace Analyzer

Usage:
  nvmetrace <command> [flags] <file.ntrace>

Commands:
  view     View trace file in human-readable format
  export   Export trace file to JSON or CSV format
  filter   Filter trace file and write to new file
  stats    Show statistics about the trace file

Use "nvmetrace <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// tracePath returns the single positional argument or exits with usage.
func tracePath(fs *flag.FlagSet) string {
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: trace file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func newFlagSet(name, summary string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "nvmetrace %s - %s\n\nUsage:\n  nvmetrace %s [flags] <file.ntrace>\n\nFlags:\n", name, summary, name)
		fs.PrintDefaults()
	}
	return fs
}

func runView(args []string) {
	fs := newFlagSet("view", "View trace file in human-readable format")
	resource := fs.String("resource", "", "Filter by resource (session, controller, lock, format_req, ...)")
	category := fs.String("category", "", "Filter by category (lifecycle, call, state, error)")
	handle := fs.String("handle", "", "Filter by handle id (also matches its children)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := tracePath(fs)

	filter := commands.ViewFilter{HandleID: *handle}

	if *resource != "" {
		r, err := commands.ParseResourceFlag(*resource)
		if err != nil {
			fail(err)
		}
		filter.Resource = &r
	}

	if *category != "" {
		c, err := commands.ParseCategoryFlag(*category)
		if err != nil {
			fail(err)
		}
		filter.Category = &c
	}

	if err := commands.RunView(path, filter, os.Stdout); err != nil {
		fail(err)
	}
}

func runExport(args []string) {
	fs := newFlagSet("export", "Export trace file to JSON or CSV format")
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := tracePath(fs)

	if err := commands.RunExport(path, *format, *output, os.Stdout); err != nil {
		fail(err)
	}
}

func runFilter(args []string) {
	fs := newFlagSet("filter", "Filter trace file and write to new file")
	output := fs.String("o", "", "Output file (required)")
	handle := fs.String("handle", "", "Filter by handle id (also matches its children)")
	resource := fs.String("resource", "", "Filter by resource")
	category := fs.String("category", "", "Filter by category (lifecycle, call, state, error)")
	op := fs.String("op", "", "Filter calls by libnvme entry point")
	failed := fs.Bool("failed", false, "Keep only failed calls and errors")
	timeStart := fs.String("time-start", "", "Filter by start time (RFC3339)")
	timeEnd := fs.String("time-end", "", "Filter by end time (RFC3339)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := tracePath(fs)

	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	opts := commands.FilterOptions{
		Output:    *output,
		HandleID:  *handle,
		Resource:  *resource,
		Category:  *category,
		Op:        *op,
		Failed:    *failed,
		TimeStart: *timeStart,
		TimeEnd:   *timeEnd,
	}

	if err := commands.RunFilter(path, opts, os.Stdout); err != nil {
		fail(err)
	}
}

func runStats(args []string) {
	fs := newFlagSet("stats", "Show statistics about the trace file")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := tracePath(fs)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fail(err)
	}
}
