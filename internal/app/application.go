package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/raysh454/authprobe/internal/cli"
	"github.com/raysh454/authprobe/internal/config"
	"github.com/raysh454/authprobe/internal/logging"
	"github.com/raysh454/authprobe/internal/plan"
	"github.com/raysh454/authprobe/internal/probe"
	"github.com/raysh454/authprobe/internal/realtime"
	"github.com/raysh454/authprobe/internal/render"
	"github.com/raysh454/authprobe/internal/report"
	"github.com/raysh454/authprobe/internal/webclient"
)

// Application is the runtime state of one authprobe invocation: config,
// parsed CLI args and the components a run needs. Pass already-built parts
// so tests can swap the transport.
type Application struct {
	Config *config.Config
	Args   *cli.CLIArgs
	Logger logging.Logger

	WebClient webclient.WebClient
	Runner    *probe.Runner
	Renderer  *render.Renderer

	now func() time.Time
}

// NewApplication wires the components. A nil wc builds the net/http client
// from configuration; the Application then owns it and Close releases it.
func NewApplication(cfg *config.Config, args *cli.CLIArgs, logger logging.Logger, out io.Writer, wc webclient.WebClient) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("application: nil config")
	}
	if args == nil {
		args = &cli.CLIArgs{}
	}
	if logger == nil {
		logger = logging.NopLogger{}
	}
	comp := ComponentConfig(cfg, args)

	if wc == nil {
		nhc, err := webclient.NewNetHTTPClient(comp.WebClientCfg, logger, nil)
		if err != nil {
			return nil, fmt.Errorf("new webclient: %w", err)
		}
		wc = nhc
	}

	runner := probe.NewRunner(comp.ProbeCfg, wc, logger)
	runner.SetWebSocketProber(realtime.NewProber(comp.RealtimeCfg, nil, logger))

	return &Application{
		Config:    cfg,
		Args:      args,
		Logger:    logger,
		WebClient: wc,
		Runner:    runner,
		Renderer:  render.New(out, comp.RenderOpts),
		now:       time.Now,
	}, nil
}

// Run resolves the selected plan, probes each step in order, prints every
// result as it arrives and returns the report. Probe failures are part of
// the report; only plan resolution and report writing return errors.
func (a *Application) Run(ctx context.Context) (*report.Report, error) {
	name, reqs, err := plan.Resolve(a.Args.Plan, plan.Env{Config: a.Config})
	if err != nil {
		return nil, err
	}

	a.Logger.Info("run starting",
		logging.Field{Key: "plan", Value: name},
		logging.Field{Key: "probes", Value: len(reqs)})

	rep := report.New(name, a.now())
	a.Renderer.Header(name, len(reqs))
	results := a.Runner.RunAll(ctx, reqs, func(res probe.Result) {
		a.Renderer.Result(res)
		rep.Add(res)
	})
	rep.Finish(a.now())
	a.Renderer.Summary(results)

	failed := 0
	for _, res := range results {
		if res.Failed() {
			failed++
		}
	}
	a.Logger.Info("run finished",
		logging.Field{Key: "plan", Value: name},
		logging.Field{Key: "failed", Value: failed})

	if a.Args.ReportPath != "" {
		if err := rep.Write(a.Args.ReportPath); err != nil {
			return rep, err
		}
		a.Logger.Info("report written", logging.Field{Key: "path", Value: a.Args.ReportPath})
	}
	return rep, nil
}

// Close releases the transport.
func (a *Application) Close() error {
	if a == nil || a.WebClient == nil {
		return nil
	}
	return a.WebClient.Close()
}
