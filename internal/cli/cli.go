package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
)

// CLIArgs are the command-line arguments for a single authprobe run.
type CLIArgs struct {
	// ConfigPath is an explicit config file; empty searches the default
	// locations.
	ConfigPath string

	// Plan is a built-in plan name or a YAML plan path; empty means the
	// default plan.
	Plan string

	// ReportPath, when set, receives the run as JSON.
	ReportPath string

	// Analyze turns on per-field analysis of JSON bodies. Nil leaves the
	// config value alone.
	Analyze *bool

	// List prints the built-in plans and exits.
	List bool

	// DiffA and DiffB are two report files to compare instead of running.
	DiffA, DiffB string

	// Verbose lowers the log level to debug.
	Verbose bool

	// RawArgs is the original args slice (useful for debugging/tests).
	RawArgs []string
}

// Diffing reports whether the run compares reports instead of probing.
func (a *CLIArgs) Diffing() bool {
	return a.DiffA != ""
}

func newFlagSet() (*flag.FlagSet, *CLIArgs, *bool, *string) {
	fs := flag.NewFlagSet("authprobe", flag.ContinueOnError)
	args := &CLIArgs{}
	fs.StringVar(&args.ConfigPath, "config", "", "Config file (default: authprobe.yaml in ., ./config, ~/.config/authprobe)")
	fs.StringVar(&args.Plan, "plan", "", "Built-in plan name or YAML plan file (default: auth-debug)")
	fs.StringVar(&args.ReportPath, "report", "", "Write the run as JSON to this path")
	analyze := fs.Bool("analyze", false, "Print a per-field analysis of JSON response bodies")
	fs.BoolVar(&args.List, "list", false, "List built-in plans and exit")
	diff := fs.String("diff", "", "Compare two reports: -diff old.json,new.json")
	fs.BoolVar(&args.Verbose, "v", false, "Verbose logging")
	return fs, args, analyze, diff
}

// Usage writes flag help to w.
func Usage(w io.Writer) {
	fs, _, _, _ := newFlagSet()
	fs.SetOutput(w)
	fmt.Fprintf(w, "Usage: authprobe [flags] [plan]\n\n")
	fs.PrintDefaults()
}

// ParseArgs parses a slice of args and returns CLIArgs. Use in tests by passing
// arbitrary slices. The function is deterministic and does not read os.Args.
// -h returns flag.ErrHelp.
func ParseArgs(args []string) (*CLIArgs, error) {
	fs, out, analyze, diff := newFlagSet()

	// Keep Parse quiet; callers print Usage themselves.
	fs.SetOutput(io.Discard)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	switch fs.NArg() {
	case 0:
	case 1:
		if out.Plan != "" {
			return nil, fmt.Errorf("plan given twice: -plan %s and %s", out.Plan, fs.Arg(0))
		}
		out.Plan = fs.Arg(0)
	default:
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args()[1:], " "))
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "analyze" {
			out.Analyze = analyze
		}
	})

	if *diff != "" {
		a, b, ok := strings.Cut(*diff, ",")
		a, b = strings.TrimSpace(a), strings.TrimSpace(b)
		if !ok || a == "" || b == "" || strings.Contains(b, ",") {
			return nil, errors.New("-diff needs exactly two report paths separated by a comma")
		}
		out.DiffA, out.DiffB = a, b
	}
	if out.List && out.Diffing() {
		return nil, errors.New("-list and -diff cannot be combined")
	}

	out.RawArgs = args
	return out, nil
}
