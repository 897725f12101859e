package plan_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/raysh454/authprobe/internal/config"
	"github.com/raysh454/authprobe/internal/plan"
	"github.com/raysh454/authprobe/internal/probe"
	"github.com/raysh454/authprobe/internal/supabase"
)

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			BaseURL:    "https://proj.example.test/",
			AnonKey:    "anon-key-value-0001",
			ServiceKey: "service-key-value-0002",
		},
		Site: config.SiteConfig{
			BaseURL:        "https://www.example.test",
			SigninPaths:    []string{"/api/auth/signin", "/api/login"},
			SignupPath:     "/api/auth/signup",
			DiscoveryPaths: []string{"/api", "/api/auth"},
			IndicatorPaths: []string{"/rest/v1"},
			Username:       "operator",
			Email:          "op@example.test",
			Password:       "pw-1",
		},
		Identity: config.IdentityConfig{
			Email:    "a@b.test",
			Password: "pw",
			FullName: "Test User",
			Role:     "admin",
		},
		Rest: config.RestConfig{Table: "leads", Limit: 1},
	}
}

func names(reqs []probe.Request) []string {
	out := make([]string, len(reqs))
	for i, r := range reqs {
		out[i] = r.Name
	}
	return out
}

// ─── Built-in plans ───

func TestResolve_DefaultIsAuthDebug(t *testing.T) {
	t.Parallel()
	name, reqs, err := plan.Resolve("", plan.Env{Config: testConfig()})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if name != "auth-debug" {
		t.Fatalf("name = %q", name)
	}
	got := strings.Join(names(reqs), ",")
	if got != "signup,signin,rest-leads" {
		t.Fatalf("steps = %s", got)
	}
	if reqs[0].URL != "https://proj.example.test/auth/v1/signup" {
		t.Errorf("signup url = %s", reqs[0].URL)
	}
	if reqs[0].Headers["apikey"] != "anon-key-value-0001" {
		t.Errorf("signup should carry the anon key, got %q", reqs[0].Headers["apikey"])
	}
	if reqs[2].URL != "https://proj.example.test/rest/v1/leads?select=*&limit=1" {
		t.Errorf("rest url = %s", reqs[2].URL)
	}
}

func TestBuiltin_AuthUsersUsesServiceKey(t *testing.T) {
	t.Parallel()
	_, reqs, err := plan.Resolve("auth-users", plan.Env{Config: testConfig()})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(reqs) != 3 {
		t.Fatalf("len = %d", len(reqs))
	}
	for _, r := range reqs {
		if r.Headers["Authorization"] != "Bearer service-key-value-0002" {
			t.Errorf("%s: Authorization = %q", r.Name, r.Headers["Authorization"])
		}
	}
	if reqs[0].Method != probe.MethodGet || !strings.HasSuffix(reqs[0].URL, "/auth/v1/admin/users") {
		t.Errorf("first step = %s %s", reqs[0].Method, reqs[0].URL)
	}
}

func TestBuiltin_AdminSeedCarriesRole(t *testing.T) {
	t.Parallel()
	_, reqs, err := plan.Resolve("admin-seed", plan.Env{Config: testConfig()})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := strings.Join(names(reqs), ","); got != "admin-list-users,admin-create-user,signin" {
		t.Fatalf("steps = %s", got)
	}
	user, ok := reqs[1].Body.(supabase.AdminUser)
	if !ok {
		t.Fatalf("body type = %T", reqs[1].Body)
	}
	if user.ID == "" {
		t.Error("admin create should carry a generated id")
	}
	if !user.EmailConfirm {
		t.Error("seeded user should be confirmed")
	}
	if user.AppMetadata["role"] != "admin" || user.UserMetadata["role"] != "admin" {
		t.Errorf("metadata = %v / %v", user.AppMetadata, user.UserMetadata)
	}
}

func TestBuiltin_CreateUserSignsInWithServiceKey(t *testing.T) {
	t.Parallel()
	_, reqs, err := plan.Resolve("create-user", plan.Env{Config: testConfig()})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(reqs) != 2 || reqs[1].Name != "signin" {
		t.Fatalf("steps = %v", names(reqs))
	}
	if reqs[1].Headers["apikey"] != "service-key-value-0002" {
		t.Errorf("signin apikey = %q", reqs[1].Headers["apikey"])
	}
}

func TestBuiltin_Realtime(t *testing.T) {
	t.Parallel()
	_, reqs, err := plan.Resolve("realtime", plan.Env{Config: testConfig()})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(reqs) != 1 || reqs[0].Kind != probe.KindWebSocket {
		t.Fatalf("reqs = %+v", reqs)
	}
	if !strings.HasPrefix(reqs[0].URL, "wss://proj.example.test/realtime/v1/websocket") {
		t.Errorf("url = %s", reqs[0].URL)
	}
}

func TestBuiltin_SiteDiscovery(t *testing.T) {
	t.Parallel()
	_, reqs, err := plan.Resolve("site-discovery", plan.Env{Config: testConfig()})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(reqs) != 3 {
		t.Fatalf("len = %d", len(reqs))
	}
	if reqs[0].Method != probe.MethodOptions || reqs[0].URL != "https://www.example.test/api" {
		t.Errorf("first = %s %s", reqs[0].Method, reqs[0].URL)
	}
	if reqs[2].Method != probe.MethodHead || reqs[2].URL != "https://www.example.test/rest/v1" {
		t.Errorf("last = %s %s", reqs[2].Method, reqs[2].URL)
	}
}

func TestBuiltin_SiteAuthShapes(t *testing.T) {
	t.Parallel()
	_, reqs, err := plan.Resolve("site-auth", plan.Env{Config: testConfig()})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	// 2 paths x 3 shapes + signup
	if len(reqs) != 7 {
		t.Fatalf("len = %d: %v", len(reqs), names(reqs))
	}
	first, _ := reqs[0].Body.(map[string]any)
	if first["email"] != "op@example.test" || first["password"] != "pw-1" {
		t.Errorf("email shape body = %v", first)
	}
	last := reqs[len(reqs)-1]
	if last.Name != "signup /api/auth/signup" || last.Method != probe.MethodPost {
		t.Errorf("last = %s %s", last.Method, last.Name)
	}
}

func TestBuiltin_SiteAuthSkipsShapesWithoutCredential(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Site.Username = ""
	cfg.Site.SignupPath = ""
	_, reqs, err := plan.Resolve("site-auth", plan.Env{Config: cfg})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(reqs) != 2 {
		t.Fatalf("only the email shape should remain, got %v", names(reqs))
	}
}

func TestBuiltin_MissingConfig(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Auth.BaseURL = ""
	if _, _, err := plan.Resolve("auth-debug", plan.Env{Config: cfg}); !errors.Is(err, plan.ErrMissingConfig) {
		t.Fatalf("err = %v, want ErrMissingConfig", err)
	}

	cfg = testConfig()
	cfg.Identity.Email = ""
	if _, _, err := plan.Resolve("auth-debug", plan.Env{Config: cfg}); !errors.Is(err, plan.ErrMissingConfig) {
		t.Fatalf("err = %v, want ErrMissingConfig", err)
	}

	cfg = testConfig()
	cfg.Site.BaseURL = ""
	if _, _, err := plan.Resolve("site-discovery", plan.Env{Config: cfg}); !errors.Is(err, plan.ErrMissingConfig) {
		t.Fatalf("err = %v, want ErrMissingConfig", err)
	}
}

func TestBuiltin_ServicePlanWithoutServiceKey(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Auth.ServiceKey = ""
	_, _, err := plan.Resolve("auth-users", plan.Env{Config: cfg})
	if err == nil || !strings.Contains(err.Error(), "service") {
		t.Fatalf("err = %v", err)
	}
}

func TestResolve_Unknown(t *testing.T) {
	t.Parallel()
	if _, _, err := plan.Resolve("nope", plan.Env{Config: testConfig()}); !errors.Is(err, plan.ErrUnknownPlan) {
		t.Fatalf("err = %v", err)
	}
}

func TestBuiltins_Sorted(t *testing.T) {
	t.Parallel()
	list := plan.Builtins()
	if len(list) != 7 {
		t.Fatalf("len = %d", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].Name > list[i].Name {
			t.Fatalf("not sorted at %d: %s > %s", i, list[i-1].Name, list[i].Name)
		}
	}
	for _, b := range list {
		if b.Description == "" {
			t.Errorf("%s has no description", b.Name)
		}
	}
}

// ─── Plan files ───

const samplePlan = `
name: custom
description: read two tables
steps:
  - name: leads
    tier: anon
    path: /rest/v1/${TABLE}?select=*&limit=${LIMIT}
  - name: login
    target: site
    method: post
    path: /api/login
    timeout: 2s
    headers:
      X-Trace: probe
    body:
      email: ${SITE_EMAIL}
      password: ${SITE_PASSWORD}
      tags: [a, "${ROLE}"]
`

func TestParse_AndRequests(t *testing.T) {
	t.Parallel()
	p, err := plan.Parse([]byte(samplePlan))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	reqs, err := p.Requests(plan.Env{Config: testConfig()})
	if err != nil {
		t.Fatalf("Requests: %v", err)
	}
	if len(reqs) != 2 {
		t.Fatalf("len = %d", len(reqs))
	}
	if reqs[0].URL != "https://proj.example.test/rest/v1/leads?select=*&limit=1" {
		t.Errorf("url = %s", reqs[0].URL)
	}
	if reqs[0].Method != probe.MethodGet || reqs[0].Headers["apikey"] != "anon-key-value-0001" {
		t.Errorf("first = %+v", reqs[0])
	}

	login := reqs[1]
	if login.URL != "https://www.example.test/api/login" || login.Method != probe.MethodPost {
		t.Errorf("login = %s %s", login.Method, login.URL)
	}
	if login.Timeout != 2*time.Second {
		t.Errorf("timeout = %s", login.Timeout)
	}
	if login.Headers["X-Trace"] != "probe" {
		t.Errorf("headers = %v", login.Headers)
	}
	if _, ok := login.Headers["apikey"]; ok {
		t.Error("site steps must not carry project keys")
	}
	body := login.Body.(map[string]any)
	if body["email"] != "op@example.test" || body["password"] != "pw-1" {
		t.Errorf("body = %v", body)
	}
	if tags := body["tags"].([]any); tags[1] != "admin" {
		t.Errorf("tags = %v", tags)
	}
}

func TestRequests_UndefinedVar(t *testing.T) {
	t.Parallel()
	p, err := plan.Parse([]byte("name: x\nsteps:\n  - path: /rest/v1/${NOPE}\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	_, err = p.Requests(plan.Env{Config: testConfig()})
	if !errors.Is(err, plan.ErrUndefinedVar) || !strings.Contains(err.Error(), "NOPE") {
		t.Fatalf("err = %v", err)
	}
}

func TestRequests_LiteralDollarKept(t *testing.T) {
	t.Parallel()
	doc := "name: x\nsteps:\n  - name: s\n    method: POST\n    path: /auth/v1/token?grant_type=password&cost=$5\n" +
		"    headers:\n      X-Note: \"$HOME stays\"\n" +
		"    body:\n      email: ${EMAIL}\n      password: \"pa$$w0rd\"\n"
	p, err := plan.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	reqs, err := p.Requests(plan.Env{Config: testConfig()})
	if err != nil {
		t.Fatalf("Requests: %v", err)
	}
	body := reqs[0].Body.(map[string]any)
	if body["password"] != "pa$$w0rd" || body["email"] != "a@b.test" {
		t.Errorf("body = %v", body)
	}
	if reqs[0].Headers["X-Note"] != "$HOME stays" {
		t.Errorf("headers = %v", reqs[0].Headers)
	}
	if !strings.HasSuffix(reqs[0].URL, "&cost=$5") {
		t.Errorf("url = %s", reqs[0].URL)
	}
}

func TestRequests_SiteStepRejectsTier(t *testing.T) {
	t.Parallel()
	p, err := plan.Parse([]byte("name: x\nsteps:\n  - target: site\n    tier: service\n    path: /\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := p.Requests(plan.Env{Config: testConfig()}); err == nil {
		t.Fatal("expected error for tier on a site step")
	}
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"no name":      "steps:\n  - path: /\n",
		"no steps":     "name: x\n",
		"bad target":   "name: x\nsteps:\n  - target: moon\n",
		"bad method":   "name: x\nsteps:\n  - method: TRACE\n",
		"invalid yaml": "name: [",
	}
	for name, doc := range cases {
		if _, err := plan.Parse([]byte(doc)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestResolve_File(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte(samplePlan), 0o600); err != nil {
		t.Fatal(err)
	}
	name, reqs, err := plan.Resolve(path, plan.Env{Config: testConfig()})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if name != "custom" || len(reqs) != 2 {
		t.Fatalf("name=%q len=%d", name, len(reqs))
	}

	if _, _, err := plan.Resolve(filepath.Join(t.TempDir(), "missing.yaml"), plan.Env{Config: testConfig()}); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestResolve_ExamplePlanFile(t *testing.T) {
	t.Parallel()
	name, reqs, err := plan.Resolve(filepath.Join("..", "..", "plans", "existing-user.yaml"), plan.Env{Config: testConfig()})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if name != "existing-user" {
		t.Errorf("name = %q", name)
	}
	want := []string{
		"https://proj.example.test/auth/v1/token?grant_type=password",
		"https://proj.example.test/rest/v1/leads?select=*&limit=1",
		"https://www.example.test/api/auth/signin",
	}
	if len(reqs) != len(want) {
		t.Fatalf("got %d requests: %v", len(reqs), names(reqs))
	}
	for i, w := range want {
		if reqs[i].URL != w {
			t.Errorf("step %d URL = %q, want %q", i, reqs[i].URL, w)
		}
	}
	if reqs[2].Timeout != 5*time.Second || reqs[2].Headers != nil {
		t.Errorf("site step = %+v", reqs[2])
	}
}
