package plan

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/raysh454/authprobe/internal/probe"
	"github.com/raysh454/authprobe/internal/supabase"
	"github.com/raysh454/authprobe/internal/utils"
)

// Target names which configured base URL a step is relative to.
type Target string

const (
	TargetAuth Target = "auth"
	TargetSite Target = "site"
)

var ErrUndefinedVar = errors.New("undefined variable")

// Plan is a YAML plan file.
type Plan struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Steps       []Step `yaml:"steps"`
}

// Step is one probe in a plan file. Strings in Path, Headers and Body may
// reference configuration values as ${NAME}; see config.Config.Vars.
type Step struct {
	Name    string            `yaml:"name"`
	Kind    string            `yaml:"kind"`
	Target  Target            `yaml:"target"`
	Tier    string            `yaml:"tier"`
	Method  string            `yaml:"method"`
	Path    string            `yaml:"path"`
	Headers map[string]string `yaml:"headers"`
	Body    any               `yaml:"body"`
	Timeout time.Duration     `yaml:"timeout"`
}

// LoadFile parses a YAML plan.
func LoadFile(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and checks a YAML plan document.
func Parse(data []byte) (*Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	if strings.TrimSpace(p.Name) == "" {
		return nil, errors.New("parse plan: name is required")
	}
	if len(p.Steps) == 0 {
		return nil, fmt.Errorf("plan %s: no steps", p.Name)
	}
	for i := range p.Steps {
		s := &p.Steps[i]
		if s.Name == "" {
			s.Name = fmt.Sprintf("step-%d", i+1)
		}
		if s.Target == "" {
			s.Target = TargetAuth
		}
		if s.Target != TargetAuth && s.Target != TargetSite {
			return nil, fmt.Errorf("plan %s step %s: unknown target %q", p.Name, s.Name, s.Target)
		}
		if _, err := probe.ParseMethod(s.Method); err != nil {
			return nil, fmt.Errorf("plan %s step %s: %w", p.Name, s.Name, err)
		}
	}
	return &p, nil
}

// Requests resolves every step against env, in order.
func (p *Plan) Requests(env Env) ([]probe.Request, error) {
	vars := env.Config.Vars()
	out := make([]probe.Request, 0, len(p.Steps))
	for _, s := range p.Steps {
		req, err := s.request(env, vars)
		if err != nil {
			return nil, fmt.Errorf("step %s: %w", s.Name, err)
		}
		out = append(out, req)
	}
	return out, nil
}

func (s Step) request(env Env, vars map[string]string) (probe.Request, error) {
	method, err := probe.ParseMethod(s.Method)
	if err != nil {
		return probe.Request{}, err
	}

	var base string
	headers := map[string]string{}
	switch s.Target {
	case TargetSite:
		if base, err = env.SiteBase(); err != nil {
			return probe.Request{}, err
		}
		if s.Tier != "" && s.Tier != string(supabase.TierNone) {
			return probe.Request{}, fmt.Errorf("tier %q only applies to auth targets", s.Tier)
		}
	default:
		b, err := env.AuthBuilder()
		if err != nil {
			return probe.Request{}, err
		}
		base = b.BaseURL
		tier, err := supabase.ParseTier(s.Tier)
		if err != nil {
			return probe.Request{}, err
		}
		if headers, err = b.Creds.Headers(tier); err != nil {
			return probe.Request{}, err
		}
	}

	missing := map[string]struct{}{}
	expand := func(in string) string { return expandVars(in, vars, missing) }

	path := expand(s.Path)
	for k, v := range s.Headers {
		headers[k] = expand(v)
	}
	body := expandBody(s.Body, expand)
	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for n := range missing {
			names = append(names, n)
		}
		sort.Strings(names)
		return probe.Request{}, fmt.Errorf("%w: %s", ErrUndefinedVar, strings.Join(names, ", "))
	}

	kind := probe.KindHTTP
	if strings.EqualFold(s.Kind, string(probe.KindWebSocket)) {
		kind = probe.KindWebSocket
	}
	if len(headers) == 0 {
		headers = nil
	}
	return probe.Request{
		Name:    s.Name,
		Kind:    kind,
		Method:  method,
		URL:     utils.JoinURL(base, path),
		Headers: headers,
		Body:    body,
		Timeout: s.Timeout,
	}, nil
}

// varRef matches ${NAME}. A bare $ is literal, so values like "pa$$w0rd"
// pass through untouched.
var varRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandVars replaces ${NAME} from vars, recording unknown names.
// A variable that is known but empty is an error too: sending an empty
// password is never what a plan author meant.
func expandVars(in string, vars map[string]string, missing map[string]struct{}) string {
	return varRef.ReplaceAllStringFunc(in, func(ref string) string {
		name := ref[2 : len(ref)-1]
		v, ok := vars[name]
		if !ok || v == "" {
			missing[name] = struct{}{}
		}
		return v
	})
}

func expandBody(v any, expand func(string) string) any {
	switch node := v.(type) {
	case string:
		return expand(node)
	case map[string]any:
		out := make(map[string]any, len(node))
		for k, val := range node {
			out[k] = expandBody(val, expand)
		}
		return out
	case []any:
		out := make([]any, len(node))
		for i, val := range node {
			out[i] = expandBody(val, expand)
		}
		return out
	default:
		return v
	}
}

func errMissing(what string) error {
	return fmt.Errorf("%s: %w", what, ErrMissingConfig)
}
