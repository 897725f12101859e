package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/raysh454/authprobe/internal/cli"
	"github.com/raysh454/authprobe/internal/config"
	"github.com/raysh454/authprobe/internal/logging"
	"github.com/raysh454/authprobe/internal/plan"
	"github.com/raysh454/authprobe/internal/report"
)

// Exit codes. Probe outcomes never change the exit code.
const (
	ExitOK     = 0
	ExitConfig = 1
	ExitUsage  = 2
)

// Main runs the authprobe command with args (without the program name) and
// returns the process exit code.
func Main(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	parsed, err := cli.ParseArgs(args)
	if errors.Is(err, flag.ErrHelp) {
		cli.Usage(stdout)
		return ExitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "authprobe: %v\n\n", err)
		cli.Usage(stderr)
		return ExitUsage
	}

	if parsed.List {
		ListPlans(stdout)
		return ExitOK
	}
	if parsed.Diffing() {
		if err := DiffReports(stdout, parsed.DiffA, parsed.DiffB); err != nil {
			fmt.Fprintf(stderr, "authprobe: %v\n", err)
			return ExitConfig
		}
		return ExitOK
	}

	cfg, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(stderr, "authprobe: %v\n", err)
		return ExitConfig
	}

	logOut := stderr
	if strings.EqualFold(cfg.Logging.Output, "stdout") {
		logOut = stdout
	}
	logger := logging.NewLogger("authprobe", logOut, ComponentConfig(cfg, parsed).LogLevel)

	a, err := NewApplication(cfg, parsed, logger, stdout, nil)
	if err != nil {
		fmt.Fprintf(stderr, "authprobe: %v\n", err)
		return ExitConfig
	}
	defer a.Close()

	if _, err := a.Run(ctx); err != nil {
		fmt.Fprintf(stderr, "authprobe: %v\n", err)
		return ExitConfig
	}
	return ExitOK
}

// ListPlans prints the built-in plans.
func ListPlans(w io.Writer) {
	for _, b := range plan.Builtins() {
		marker := " "
		if b.Name == plan.DefaultPlan {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %-16s %s\n", marker, b.Name, b.Description)
	}
	fmt.Fprintf(w, "\n* default. A path to a .yaml file runs a custom plan.\n")
}

// DiffReports loads two reports and prints their differences.
func DiffReports(w io.Writer, pathA, pathB string) error {
	a, err := report.Load(pathA)
	if err != nil {
		return err
	}
	b, err := report.Load(pathB)
	if err != nil {
		return err
	}
	report.WriteDiff(w, a, b, report.Diff(a, b))
	return nil
}
