package cli_test

import (
	"bytes"
	"errors"
	"flag"
	"strings"
	"testing"

	"github.com/raysh454/authprobe/internal/cli"
)

func TestParseArgs_Defaults(t *testing.T) {
	t.Parallel()
	args, err := cli.ParseArgs(nil)
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if args.Plan != "" || args.ConfigPath != "" || args.ReportPath != "" {
		t.Errorf("args = %+v", args)
	}
	if args.Analyze != nil {
		t.Error("Analyze should be nil when the flag is absent")
	}
	if args.List || args.Verbose || args.Diffing() {
		t.Errorf("args = %+v", args)
	}
}

func TestParseArgs_AllFlags(t *testing.T) {
	t.Parallel()
	in := []string{"-config", "c.yaml", "-plan", "site-auth", "-report", "out/run.json", "-analyze", "-v"}
	args, err := cli.ParseArgs(in)
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if args.ConfigPath != "c.yaml" || args.Plan != "site-auth" || args.ReportPath != "out/run.json" {
		t.Errorf("args = %+v", args)
	}
	if args.Analyze == nil || !*args.Analyze || !args.Verbose {
		t.Errorf("args = %+v", args)
	}
	if len(args.RawArgs) != len(in) {
		t.Errorf("RawArgs = %v", args.RawArgs)
	}
}

func TestParseArgs_AnalyzeFalseIsExplicit(t *testing.T) {
	t.Parallel()
	args, err := cli.ParseArgs([]string{"-analyze=false"})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if args.Analyze == nil || *args.Analyze {
		t.Fatalf("Analyze = %v", args.Analyze)
	}
}

func TestParseArgs_PositionalPlan(t *testing.T) {
	t.Parallel()
	args, err := cli.ParseArgs([]string{"-v", "plans/custom.yaml"})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if args.Plan != "plans/custom.yaml" {
		t.Fatalf("Plan = %q", args.Plan)
	}
}

func TestParseArgs_Diff(t *testing.T) {
	t.Parallel()
	args, err := cli.ParseArgs([]string{"-diff", "a.json, b.json"})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if !args.Diffing() || args.DiffA != "a.json" || args.DiffB != "b.json" {
		t.Fatalf("args = %+v", args)
	}
}

func TestParseArgs_Errors(t *testing.T) {
	t.Parallel()
	cases := map[string][]string{
		"unknown flag":      {"-nope"},
		"diff one path":     {"-diff", "a.json"},
		"diff three paths":  {"-diff", "a,b,c"},
		"diff empty half":   {"-diff", "a.json,"},
		"plan twice":        {"-plan", "auth-debug", "site-auth"},
		"extra positionals": {"auth-debug", "site-auth"},
		"list with diff":    {"-list", "-diff", "a,b"},
	}
	for name, in := range cases {
		if _, err := cli.ParseArgs(in); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestParseArgs_Help(t *testing.T) {
	t.Parallel()
	if _, err := cli.ParseArgs([]string{"-h"}); !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("err = %v, want flag.ErrHelp", err)
	}
}

func TestUsage(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	cli.Usage(&buf)
	for _, want := range []string{"Usage: authprobe", "-plan", "-diff", "-report"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("usage missing %q", want)
		}
	}
}
