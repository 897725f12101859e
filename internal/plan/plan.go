// Package plan turns named probe sequences into probe requests.
//
// A plan is either built in (compiled from the request patterns in package
// supabase) or read from a YAML file. Either way every credential, address
// and identity comes from configuration; nothing secret lives in a plan.
package plan

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/raysh454/authprobe/internal/config"
	"github.com/raysh454/authprobe/internal/probe"
	"github.com/raysh454/authprobe/internal/supabase"
	"github.com/raysh454/authprobe/internal/utils"
)

// DefaultPlan runs when no plan is named.
const DefaultPlan = "auth-debug"

var (
	ErrUnknownPlan   = errors.New("unknown plan")
	ErrMissingConfig = errors.New("missing configuration")
)

// Env resolves plan steps against the loaded configuration.
type Env struct {
	Config *config.Config
}

// AuthBuilder returns a request builder for the auth project.
func (e Env) AuthBuilder() (*supabase.Builder, error) {
	if e.Config.Auth.BaseURL == "" {
		return nil, fmt.Errorf("auth.base_url: %w", ErrMissingConfig)
	}
	return supabase.NewBuilder(e.Config.Auth.BaseURL, supabase.Credentials{
		AnonKey:    e.Config.Auth.AnonKey,
		ServiceKey: e.Config.Auth.ServiceKey,
	})
}

// SiteBase returns the normalized website base URL.
func (e Env) SiteBase() (string, error) {
	if e.Config.Site.BaseURL == "" {
		return "", fmt.Errorf("site.base_url: %w", ErrMissingConfig)
	}
	return utils.NormalizeBaseURL(e.Config.Site.BaseURL)
}

func (e Env) requireIdentity() error {
	if e.Config.Identity.Email == "" {
		return fmt.Errorf("identity.email: %w", ErrMissingConfig)
	}
	return nil
}

// Builtin is a plan compiled into the binary.
type Builtin struct {
	Name        string
	Description string
	Build       func(env Env) ([]probe.Request, error)
}

var builtins = map[string]Builtin{}

func register(b Builtin) {
	builtins[b.Name] = b
}

// Builtins lists the compiled-in plans sorted by name.
func Builtins() []Builtin {
	out := make([]Builtin, 0, len(builtins))
	for _, b := range builtins {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LookupBuiltin finds a compiled-in plan by name.
func LookupBuiltin(name string) (Builtin, bool) {
	b, ok := builtins[strings.ToLower(strings.TrimSpace(name))]
	return b, ok
}

// Resolve picks a built-in plan by name, or loads a YAML plan when ref looks
// like a file path. It returns the plan name and its requests in order.
func Resolve(ref string, env Env) (string, []probe.Request, error) {
	if strings.TrimSpace(ref) == "" {
		ref = DefaultPlan
	}
	if b, ok := LookupBuiltin(ref); ok {
		reqs, err := b.Build(env)
		if err != nil {
			return "", nil, fmt.Errorf("plan %s: %w", b.Name, err)
		}
		return b.Name, reqs, nil
	}

	ext := strings.ToLower(filepath.Ext(ref))
	if ext != ".yaml" && ext != ".yml" {
		return "", nil, fmt.Errorf("%q: %w", ref, ErrUnknownPlan)
	}
	if _, err := os.Stat(ref); err != nil {
		return "", nil, fmt.Errorf("plan file: %w", err)
	}
	p, err := LoadFile(ref)
	if err != nil {
		return "", nil, err
	}
	reqs, err := p.Requests(env)
	if err != nil {
		return "", nil, fmt.Errorf("plan %s: %w", p.Name, err)
	}
	return p.Name, reqs, nil
}
