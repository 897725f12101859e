package app

import (
	"github.com/raysh454/authprobe/internal/cli"
	"github.com/raysh454/authprobe/internal/config"
	"github.com/raysh454/authprobe/internal/logging"
	"github.com/raysh454/authprobe/internal/probe"
	"github.com/raysh454/authprobe/internal/realtime"
	"github.com/raysh454/authprobe/internal/render"
	"github.com/raysh454/authprobe/internal/webclient"
)

// Config is the per-component view of the loaded configuration.
type Config struct {
	WebClientCfg webclient.Config
	ProbeCfg     probe.Config
	RealtimeCfg  realtime.Config
	RenderOpts   render.Options
	LogLevel     logging.Level
}

// ComponentConfig splits cfg into component settings, applying command-line
// overrides from args (which may be nil).
func ComponentConfig(cfg *config.Config, args *cli.CLIArgs) *Config {
	out := &Config{
		WebClientCfg: webclient.Config{
			Client:          webclient.ClientNetHTTP,
			Timeout:         cfg.Probe.Timeout,
			FollowRedirects: cfg.Probe.FollowRedirects,
			MaxBodyBytes:    cfg.Probe.MaxBodyBytes,
		},
		ProbeCfg: probe.Config{
			Timeout:           cfg.Probe.Timeout,
			AllowInsecureHTTP: cfg.Probe.AllowInsecureHTTP,
		},
		RealtimeCfg: realtime.Config{
			Timeout:         cfg.Probe.Timeout,
			MaxMessageBytes: cfg.Probe.MaxBodyBytes,
		},
		RenderOpts: render.Options{
			ShowHeaders: cfg.Output.ShowHeaders,
			Analyze:     cfg.Output.Analyze,
			UserFilter:  cfg.Output.UserFilter,
			MaxBody:     cfg.Output.MaxBody,
		},
		LogLevel: logging.ParseLevel(cfg.Logging.Level),
	}
	if args == nil {
		return out
	}
	if args.Analyze != nil {
		out.RenderOpts.Analyze = *args.Analyze
	}
	if args.Verbose {
		out.LogLevel = logging.LevelDebug
	}
	return out
}
