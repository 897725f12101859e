// Package config loads authprobe settings with Viper.
//
// Layering is built-in defaults < YAML config file < environment variables.
// Environment variables use the AUTHPROBE_ prefix with dots turned into
// underscores, so AUTHPROBE_AUTH_SERVICE_KEY overrides auth.service_key.
// Key, password and account fields also expand ${VAR} references after loading, which
// lets a checked-in config file point at secrets held in the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/raysh454/authprobe/internal/utils"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "AUTHPROBE"

// Config holds all runtime configuration.
type Config struct {
	Auth     AuthConfig     `mapstructure:"auth"`
	Site     SiteConfig     `mapstructure:"site"`
	Identity IdentityConfig `mapstructure:"identity"`
	Rest     RestConfig     `mapstructure:"rest"`
	Probe    ProbeConfig    `mapstructure:"probe"`
	Output   OutputConfig   `mapstructure:"output"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Mock     MockConfig     `mapstructure:"mock"`
}

// AuthConfig points at the hosted auth/REST project.
type AuthConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	AnonKey    string `mapstructure:"anon_key"`
	ServiceKey string `mapstructure:"service_key"`
}

// SiteConfig describes the operator's external website.
type SiteConfig struct {
	BaseURL        string   `mapstructure:"base_url"`
	SigninPaths    []string `mapstructure:"signin_paths"`
	SignupPath     string   `mapstructure:"signup_path"`
	DiscoveryPaths []string `mapstructure:"discovery_paths"`
	IndicatorPaths []string `mapstructure:"indicator_paths"`
	Username       string   `mapstructure:"username"`
	Email          string   `mapstructure:"email"`
	Password       string   `mapstructure:"password"`
}

// IdentityConfig is the test account used by the auth plans.
type IdentityConfig struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
	FullName string `mapstructure:"full_name"`
	Role     string `mapstructure:"role"`
}

// RestConfig selects the table read by REST probes.
type RestConfig struct {
	Table string `mapstructure:"table"`
	Limit int    `mapstructure:"limit"`
}

// ProbeConfig tunes the transport.
type ProbeConfig struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	AllowInsecureHTTP bool          `mapstructure:"allow_insecure_http"`
	FollowRedirects   bool          `mapstructure:"follow_redirects"`
	MaxBodyBytes      int64         `mapstructure:"max_body_bytes"`
}

// OutputConfig controls console rendering.
type OutputConfig struct {
	ShowHeaders bool   `mapstructure:"show_headers"`
	Analyze     bool   `mapstructure:"analyze"`
	UserFilter  string `mapstructure:"user_filter"`
	MaxBody     int    `mapstructure:"max_body"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Output string `mapstructure:"output"`
}

// MockConfig configures the local mock auth service.
type MockConfig struct {
	Addr string `mapstructure:"addr"`
}

var envKeys = []string{
	"auth.base_url",
	"auth.anon_key",
	"auth.service_key",

	"site.base_url",
	"site.signin_paths",
	"site.signup_path",
	"site.discovery_paths",
	"site.indicator_paths",
	"site.username",
	"site.email",
	"site.password",

	"identity.email",
	"identity.password",
	"identity.full_name",
	"identity.role",

	"rest.table",
	"rest.limit",

	"probe.timeout",
	"probe.allow_insecure_http",
	"probe.follow_redirects",
	"probe.max_body_bytes",

	"output.show_headers",
	"output.analyze",
	"output.user_filter",
	"output.max_body",

	"logging.level",
	"logging.output",

	"mock.addr",
}

// bindEnvVars explicitly binds environment variables to config keys, since
// AutomaticEnv alone does not reach nested keys during Unmarshal.
func bindEnvVars(v *viper.Viper) error {
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind env var %q: %w", key, err)
		}
	}
	return nil
}

// Load reads configuration from configPath (or authprobe.yaml in the usual
// places when empty) and the environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("authprobe")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.config/authprobe")
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.expandSecrets()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// expandSecrets resolves ${VAR} references in keys and account fields.
func (c *Config) expandSecrets() {
	for _, field := range []*string{
		&c.Auth.AnonKey,
		&c.Auth.ServiceKey,
		&c.Identity.Email,
		&c.Identity.Password,
		&c.Site.Username,
		&c.Site.Email,
		&c.Site.Password,
	} {
		*field = os.ExpandEnv(*field)
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site.signin_paths", []string{"/api/auth/signin", "/api/login", "/auth/signin"})
	v.SetDefault("site.signup_path", "/api/auth/signup")
	v.SetDefault("site.discovery_paths", []string{
		"/api/auth/signin",
		"/api/auth/signup",
		"/api/auth/user",
		"/api/leads",
		"/api/users",
		"/auth/signin",
		"/auth/signup",
		"/api/login",
		"/api/register",
	})
	v.SetDefault("site.indicator_paths", []string{"/supabase", "/functions/v1", "/rest/v1", "/auth/v1"})

	v.SetDefault("identity.full_name", "Test User")
	v.SetDefault("identity.role", "admin")

	v.SetDefault("rest.table", "leads")
	v.SetDefault("rest.limit", 1)

	v.SetDefault("probe.timeout", "10s")
	v.SetDefault("probe.allow_insecure_http", false)
	v.SetDefault("probe.follow_redirects", false)
	v.SetDefault("probe.max_body_bytes", 10<<20)

	v.SetDefault("output.show_headers", true)
	v.SetDefault("output.analyze", false)
	v.SetDefault("output.user_filter", "admin")
	v.SetDefault("output.max_body", 4000)

	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("mock.addr", "127.0.0.1:9999")
}

// Validate checks values that would otherwise fail late, mid-run.
func (c *Config) Validate() error {
	if c.Probe.Timeout <= 0 {
		return fmt.Errorf("probe.timeout must be positive, got %s", c.Probe.Timeout)
	}
	if c.Probe.MaxBodyBytes < 0 {
		return fmt.Errorf("probe.max_body_bytes must not be negative")
	}
	if c.Rest.Limit < 0 {
		return fmt.Errorf("rest.limit must not be negative, got %d", c.Rest.Limit)
	}
	for name, raw := range map[string]string{"auth.base_url": c.Auth.BaseURL, "site.base_url": c.Site.BaseURL} {
		if raw == "" {
			continue
		}
		base, err := utils.NormalizeBaseURL(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if err := utils.ValidateTargetURL(base, c.Probe.AllowInsecureHTTP); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid logging level: %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Output) {
	case "stdout", "stderr":
	default:
		return fmt.Errorf("invalid logging output: %q (want stdout or stderr)", c.Logging.Output)
	}
	return nil
}

// Vars returns the values plan files may reference as ${NAME}. Keys are
// deliberately absent: plans pick a credential tier instead.
func (c *Config) Vars() map[string]string {
	return map[string]string{
		"AUTH_URL":      c.Auth.BaseURL,
		"SITE_URL":      c.Site.BaseURL,
		"EMAIL":         c.Identity.Email,
		"PASSWORD":      c.Identity.Password,
		"FULL_NAME":     c.Identity.FullName,
		"ROLE":          c.Identity.Role,
		"TABLE":         c.Rest.Table,
		"LIMIT":         strconv.Itoa(c.Rest.Limit),
		"SITE_USERNAME": c.Site.Username,
		"SITE_EMAIL":    c.Site.Email,
		"SITE_PASSWORD": c.Site.Password,
	}
}
