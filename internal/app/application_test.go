package app_test

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/raysh454/authprobe/internal/app"
	"github.com/raysh454/authprobe/internal/cli"
	"github.com/raysh454/authprobe/internal/config"
	"github.com/raysh454/authprobe/internal/logging"
	"github.com/raysh454/authprobe/internal/mockauth"
	"github.com/raysh454/authprobe/internal/report"
	"github.com/raysh454/authprobe/internal/testutil"
)

const (
	anonKey    = "test-anon-key-000000000001"
	serviceKey = "test-service-key-000000002"
)

func newMock(t *testing.T) (*mockauth.Server, *httptest.Server) {
	t.Helper()
	m, err := mockauth.NewServer(mockauth.Config{AnonKey: anonKey, ServiceKey: serviceKey, Logger: &testutil.DummyLogger{}})
	if err != nil {
		t.Fatalf("mockauth: %v", err)
	}
	m.SeedTable("leads", []map[string]any{{"id": 1, "name": "first"}})
	ts := httptest.NewServer(m)
	t.Cleanup(ts.Close)
	return m, ts
}

func testConfig(base string) *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{BaseURL: base, AnonKey: anonKey, ServiceKey: serviceKey},
		Site: config.SiteConfig{
			BaseURL:        base,
			SigninPaths:    []string{"/api/auth/signin", "/api/login"},
			SignupPath:     "/api/auth/signup",
			DiscoveryPaths: []string{"/api/auth/signin"},
			IndicatorPaths: []string{"/rest/v1"},
			Email:          "op@corp.test",
			Password:       "secret1",
		},
		Identity: config.IdentityConfig{Email: "admin@corp.test", Password: "secret1", FullName: "Test User", Role: "admin"},
		Rest:     config.RestConfig{Table: "leads", Limit: 1},
		Probe:    config.ProbeConfig{Timeout: 5 * time.Second, AllowInsecureHTTP: true},
		Output:   config.OutputConfig{ShowHeaders: true, UserFilter: "admin"},
		Logging:  config.LoggingConfig{Level: "warn", Output: "stderr"},
	}
}

func newApp(t *testing.T, cfg *config.Config, args *cli.CLIArgs) (*app.Application, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	a, err := app.NewApplication(cfg, args, &testutil.DummyLogger{}, &out, nil)
	if err != nil {
		t.Fatalf("NewApplication: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a, &out
}

// ─── Component config ──────────────────────────────────────────────────

func TestComponentConfig_Overrides(t *testing.T) {
	t.Parallel()
	cfg := testConfig("https://proj.example.test")
	on := true
	comp := app.ComponentConfig(cfg, &cli.CLIArgs{Analyze: &on, Verbose: true})
	if !comp.RenderOpts.Analyze || comp.LogLevel != logging.LevelDebug {
		t.Fatalf("comp = %+v", comp)
	}
	if comp.ProbeCfg.Timeout != 5*time.Second || !comp.ProbeCfg.AllowInsecureHTTP {
		t.Errorf("probe cfg = %+v", comp.ProbeCfg)
	}
	if comp.WebClientCfg.Timeout != 5*time.Second {
		t.Errorf("webclient cfg = %+v", comp.WebClientCfg)
	}

	plain := app.ComponentConfig(cfg, nil)
	if plain.RenderOpts.Analyze || plain.LogLevel != logging.LevelWarn {
		t.Errorf("plain = %+v", plain)
	}
}

// ─── Runs against the mock ─────────────────────────────────────────────

func TestRun_AuthDebug(t *testing.T) {
	t.Parallel()
	_, ts := newMock(t)
	a, out := newApp(t, testConfig(ts.URL), nil)

	rep, err := a.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Plan != "auth-debug" || len(rep.Entries) != 3 {
		t.Fatalf("report = %+v", rep)
	}
	want := []struct {
		name   string
		status int
	}{
		{"signup", http.StatusOK},
		{"signin", http.StatusBadRequest}, // signup leaves the address unconfirmed
		{"rest-leads", http.StatusOK},
	}
	for i, w := range want {
		e := rep.Entries[i]
		if e.Name != w.name || e.Status != w.status {
			t.Errorf("entry %d = %s %d, want %s %d (%s)", i, e.Name, e.Status, w.name, w.status, e.Body)
		}
	}
	text := out.String()
	for _, s := range []string{"=== auth-debug (3 probes) ===", "Email not confirmed", "=== Summary ==="} {
		if !strings.Contains(text, s) {
			t.Errorf("output missing %q", s)
		}
	}
	if strings.Contains(text, anonKey) {
		t.Error("anon key printed unmasked")
	}
}

func TestRun_AdminSeedThenSignIn(t *testing.T) {
	t.Parallel()
	m, ts := newMock(t)
	path := filepath.Join(t.TempDir(), "seed.json")
	a, out := newApp(t, testConfig(ts.URL), &cli.CLIArgs{Plan: "admin-seed", ReportPath: path})

	rep, err := a.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, e := range rep.Entries {
		if e.Status != http.StatusOK {
			t.Errorf("%s status = %d body = %s", e.Name, e.Status, e.Body)
		}
	}
	users := m.Users()
	if len(users) != 1 || users[0].AppMetadata["role"] != "admin" || !users[0].Confirmed() {
		t.Fatalf("users = %+v", users)
	}

	loaded, err := report.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Entries) != 3 {
		t.Fatalf("loaded entries = %d", len(loaded.Entries))
	}
	if !strings.Contains(out.String(), "Users: 0 total") {
		t.Errorf("user summary missing:\n%s", out.String())
	}
}

func TestRun_SitePlans(t *testing.T) {
	t.Parallel()
	_, ts := newMock(t)
	cfg := testConfig(ts.URL)

	a, _ := newApp(t, cfg, &cli.CLIArgs{Plan: "site-discovery"})
	rep, err := a.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Entries[0].Status != http.StatusNoContent {
		t.Errorf("OPTIONS status = %d", rep.Entries[0].Status)
	}

	a, _ = newApp(t, cfg, &cli.CLIArgs{Plan: "site-auth"})
	rep, err = a.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	last := rep.Entries[len(rep.Entries)-1]
	if last.Name != "signup /api/auth/signup" || last.Status != http.StatusCreated {
		t.Errorf("signup entry = %s %d %s", last.Name, last.Status, last.Body)
	}
}

func TestRun_Realtime(t *testing.T) {
	t.Parallel()
	_, ts := newMock(t)
	a, _ := newApp(t, testConfig(ts.URL), &cli.CLIArgs{Plan: "realtime"})
	rep, err := a.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if e := rep.Entries[0]; e.Status != http.StatusSwitchingProtocols || e.Error != "" {
		t.Fatalf("entry = %+v", e)
	}
	if strings.Contains(rep.Entries[0].URL, anonKey) {
		t.Error("realtime URL key not masked in report")
	}
}

func TestRun_UnreachableStillReports(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.NotFoundHandler())
	base := ts.URL
	ts.Close()

	a, out := newApp(t, testConfig(base), nil)
	rep, err := a.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rep.Entries) != 3 {
		t.Fatalf("entries = %d", len(rep.Entries))
	}
	for _, e := range rep.Entries {
		if e.Error == "" {
			t.Errorf("%s: expected transport error", e.Name)
		}
	}
	if !strings.Contains(out.String(), "ERR") {
		t.Error("summary should mark failures")
	}
}

func TestRun_PlanErrors(t *testing.T) {
	t.Parallel()
	cfg := testConfig("https://proj.example.test")
	cfg.Identity.Email = ""
	a, _ := newApp(t, cfg, nil)
	if _, err := a.Run(context.Background()); err == nil {
		t.Fatal("expected plan error")
	}

	a, _ = newApp(t, testConfig("https://proj.example.test"), &cli.CLIArgs{Plan: "does-not-exist"})
	if _, err := a.Run(context.Background()); err == nil {
		t.Fatal("expected unknown plan error")
	}
}

func TestNewApplication_NilConfig(t *testing.T) {
	t.Parallel()
	if _, err := app.NewApplication(nil, nil, nil, &bytes.Buffer{}, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewApplication_InjectedClient(t *testing.T) {
	t.Parallel()
	wc := &testutil.DummyWebClient{}
	cfg := testConfig("https://proj.example.test")
	a, err := app.NewApplication(cfg, &cli.CLIArgs{Plan: "auth-debug"}, nil, &bytes.Buffer{}, wc)
	if err != nil {
		t.Fatalf("NewApplication: %v", err)
	}
	if _, err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	sent := wc.Sent()
	if len(sent) != 3 || sent[0].URL != "https://proj.example.test/auth/v1/signup" {
		t.Fatalf("sent = %d requests", len(sent))
	}
}

// ─── Main ──────────────────────────────────────────────────────────────

func writeConfig(t *testing.T, base string) string {
	t.Helper()
	doc := fmt.Sprintf(`auth:
  base_url: %s
  anon_key: %s
  service_key: %s
identity:
  email: admin@corp.test
  password: secret1
probe:
  timeout: 5s
  allow_insecure_http: true
`, base, anonKey, serviceKey)
	path := filepath.Join(t.TempDir(), "authprobe.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMain_RunWithConfigFile(t *testing.T) {
	t.Parallel()
	_, ts := newMock(t)
	cfgPath := writeConfig(t, ts.URL)
	reportPath := filepath.Join(t.TempDir(), "run.json")

	var stdout, stderr bytes.Buffer
	code := app.Main(context.Background(), []string{"-config", cfgPath, "-report", reportPath, "auth-users"}, &stdout, &stderr)
	if code != app.ExitOK {
		t.Fatalf("exit = %d stderr = %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "=== auth-users") {
		t.Errorf("stdout:\n%s", stdout.String())
	}
	if _, err := os.Stat(reportPath); err != nil {
		t.Errorf("report not written: %v", err)
	}
}

func TestMain_ProbeFailuresExitZero(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.NotFoundHandler())
	base := ts.URL
	ts.Close()

	var stdout, stderr bytes.Buffer
	if code := app.Main(context.Background(), []string{"-config", writeConfig(t, base)}, &stdout, &stderr); code != app.ExitOK {
		t.Fatalf("exit = %d stderr = %s", code, stderr.String())
	}
}

func TestMain_UsageAndConfigErrors(t *testing.T) {
	t.Parallel()
	var stdout, stderr bytes.Buffer
	if code := app.Main(context.Background(), []string{"-bogus"}, &stdout, &stderr); code != app.ExitUsage {
		t.Errorf("bad flag exit = %d", code)
	}
	if code := app.Main(context.Background(), []string{"-h"}, &stdout, &stderr); code != app.ExitOK {
		t.Errorf("help exit = %d", code)
	}
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	if code := app.Main(context.Background(), []string{"-config", missing}, &stdout, &stderr); code != app.ExitConfig {
		t.Errorf("missing config exit = %d", code)
	}
}

func TestMain_List(t *testing.T) {
	t.Parallel()
	var stdout, stderr bytes.Buffer
	if code := app.Main(context.Background(), []string{"-list"}, &stdout, &stderr); code != app.ExitOK {
		t.Fatalf("exit = %d", code)
	}
	for _, name := range []string{"* auth-debug", "site-auth", "realtime", "admin-seed"} {
		if !strings.Contains(stdout.String(), name) {
			t.Errorf("list missing %q:\n%s", name, stdout.String())
		}
	}
}

func TestMain_Diff(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	a := report.New("auth-debug", time.Now())
	a.Entries = []report.Entry{{Name: "signin", Status: 400, Body: `{"error":"invalid_grant"}`}}
	b := report.New("auth-debug", time.Now())
	b.Entries = []report.Entry{{Name: "signin", Status: 200, Body: `{"token_type":"bearer"}`}}
	pa, pb := filepath.Join(dir, "a.json"), filepath.Join(dir, "b.json")
	if err := a.Write(pa); err != nil {
		t.Fatal(err)
	}
	if err := b.Write(pb); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if code := app.Main(context.Background(), []string{"-diff", pa + "," + pb}, &stdout, &stderr); code != app.ExitOK {
		t.Fatalf("exit = %d stderr = %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "status: 400 -> 200") {
		t.Errorf("diff output:\n%s", stdout.String())
	}

	if code := app.Main(context.Background(), []string{"-diff", pa + "," + filepath.Join(dir, "missing.json")}, &stdout, &stderr); code != app.ExitConfig {
		t.Errorf("missing report exit = %d", code)
	}
}
