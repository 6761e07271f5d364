package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/kalambet/folio/internal/analytics"
	"github.com/kalambet/folio/internal/config"
	"github.com/kalambet/folio/internal/pipeline"
	"github.com/kalambet/folio/internal/profile"
	"github.com/kalambet/folio/internal/tenant"
)

type recordedRequest struct {
	Method string
	Path   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			if resp == "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found_error"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client(token string) *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      token,
		httpClient: ts.server.Client(),
	}
}

// useAPIClient points CLI commands at c for the duration of the test.
func useAPIClient(t *testing.T, c *apiClient) {
	t.Helper()
	old := newAPIClient
	newAPIClient = func() (*apiClient, error) { return c, nil }
	t.Cleanup(func() { newAPIClient = old })
}

func useConfig(t *testing.T, cfg config.Config) {
	t.Helper()
	old := loadConfig
	loadConfig = func() (config.Config, error) { return cfg, nil }
	t.Cleanup(func() { loadConfig = old })
}

func withNoColor(t *testing.T) {
	t.Helper()
	old := noColor
	noColor = true
	t.Cleanup(func() { noColor = old })
}

func captureStderr(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := stderr
	stderr = &buf
	t.Cleanup(func() { stderr = old })
	return &buf
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestResolveHosts(t *testing.T) {
	withNoColor(t)
	var buf bytes.Buffer

	err := resolveHosts(&buf, tenant.DefaultRules(), []string{"alice.cofounds.in", "www.cofounds.in", "bob.localhost:5173"}, false)
	if err != nil {
		t.Fatal(err)
	}
	want := "alice.cofounds.in -> alice\nwww.cofounds.in -> (unresolved)\nbob.localhost:5173 -> bob\n"
	if buf.String() != want {
		t.Errorf("output =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestResolveHosts_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := resolveHosts(&buf, tenant.DefaultRules(), []string{"alice.cofounds.in"}, true); err != nil {
		t.Fatal(err)
	}
	var got struct {
		Host     string `json:"host"`
		Username string `json:"username"`
		Valid    bool   `json:"valid"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("parse %q: %v", buf.String(), err)
	}
	if got.Host != "alice.cofounds.in" || got.Username != "alice" || !got.Valid {
		t.Errorf("got %+v", got)
	}
}

func TestResolveCommand_RequiresHost(t *testing.T) {
	useConfig(t, config.Config{})
	if _, err := execute(t, "resolve"); err == nil {
		t.Fatal("expected error for missing host")
	}
}

func TestResolveCommand_UsesRulesFile(t *testing.T) {
	withNoColor(t)
	path := t.TempDir() + "/rules.yaml"
	if err := os.WriteFile(path, []byte("root_domains: [example.dev]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	useConfig(t, config.Config{Tenant: config.TenantConfig{RulesFile: path}})

	out, err := execute(t, "resolve", "carol.example.dev", "carol.cofounds.in")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !strings.Contains(out, "carol.example.dev -> carol") {
		t.Errorf("custom root domain not applied:\n%s", out)
	}
	if !strings.Contains(out, "carol.cofounds.in -> (unresolved)") {
		t.Errorf("default root domain should be replaced:\n%s", out)
	}
}

func TestFetchPortfolio(t *testing.T) {
	backendSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ada" {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, "no such user")
			return
		}
		fmt.Fprint(w, `{"data":{"userName":"ada","firstName":"Ada","lastName":"Lovelace"}}`)
	}))
	t.Cleanup(backendSrv.Close)

	cfg := config.Config{API: config.APIConfig{BaseURL: backendSrv.URL, Timeout: "5s"}, Cache: config.CacheConfig{TTL: "60s"}}
	loader := pipeline.NewLoader(newBackendClient(cfg, nil), analytics.Nop{})

	var buf bytes.Buffer
	if err := fetchPortfolio(context.Background(), &buf, loader, "ada"); err != nil {
		t.Fatalf("fetchPortfolio: %v", err)
	}
	var p profile.Profile
	if err := json.Unmarshal(buf.Bytes(), &p); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Name != "Ada Lovelace" || p.TemplateID != profile.DefaultTemplateID {
		t.Errorf("profile = %+v", p)
	}

	err := fetchPortfolio(context.Background(), &buf, loader, "nobody")
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("error = %v, want HTTP 404", err)
	}
}

func TestFetchCommand_NotConfigured(t *testing.T) {
	useConfig(t, config.Config{API: config.APIConfig{Timeout: "5s"}, Cache: config.CacheConfig{TTL: "60s"}})

	_, err := execute(t, "fetch", "ada")
	if err == nil {
		t.Fatal("expected error without a backend URL")
	}
	if !strings.Contains(err.Error(), "not set") {
		t.Errorf("error = %q, want it to mention configuration", err)
	}
}

func TestCacheInvalidate(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /admin/cache/ada/invalidate": "",
	})
	useAPIClient(t, ts.client("secret"))

	if _, err := execute(t, "cache", "invalidate", "ada"); err != nil {
		t.Fatalf("cache invalidate: %v", err)
	}
	if len(ts.requests) != 1 {
		t.Fatalf("requests = %d, want 1", len(ts.requests))
	}
	if got := ts.requests[0]; got.Method != http.MethodPost || got.Auth != "Bearer secret" {
		t.Errorf("request = %+v", got)
	}
}

func TestCacheInvalidate_RequiresToken(t *testing.T) {
	ts := newTestServer(t, nil)
	useAPIClient(t, ts.client(""))

	_, err := execute(t, "cache", "invalidate", "ada")
	if err == nil || !strings.Contains(err.Error(), "FOLIO_ADMIN_TOKEN") {
		t.Errorf("error = %v", err)
	}
	if len(ts.requests) != 0 {
		t.Error("no request should be sent without a token")
	}
}

func TestCacheInvalidate_ServerError(t *testing.T) {
	ts := newTestServer(t, nil)
	useAPIClient(t, ts.client("secret"))

	_, err := execute(t, "cache", "invalidate", "ada")
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("error = %v, want server 404", err)
	}
}

func TestStatus_QueriesQueueWithToken(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /health":      `{"status":"ok"}`,
		"GET /admin/queue": `{"pending":1,"running":0,"completed":3,"failed":0}`,
	})
	useAPIClient(t, ts.client("secret"))
	useConfig(t, config.Config{App: config.AppConfig{Env: "production"}})

	if err := showStatus(context.Background()); err != nil {
		t.Fatalf("showStatus: %v", err)
	}
	var paths []string
	for _, r := range ts.requests {
		paths = append(paths, r.Path)
	}
	if strings.Join(paths, ",") != "/health,/admin/queue" {
		t.Errorf("requests = %v", paths)
	}
}

func TestStatus_ServerStopped(t *testing.T) {
	ts := newTestServer(t, nil)
	c := ts.client("secret")
	ts.server.Close()
	useAPIClient(t, c)
	useConfig(t, config.Config{})

	if err := showStatus(context.Background()); err != nil {
		t.Fatalf("showStatus should report, not fail: %v", err)
	}
}

func TestAPIClient_NotReachable(t *testing.T) {
	ts := newTestServer(t, nil)
	c := ts.client("")
	ts.server.Close()

	_, err := c.get(context.Background(), "/health")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestConfigShow(t *testing.T) {
	withNoColor(t)
	useConfig(t, config.Config{API: config.APIConfig{BaseURL: "https://api.example.com"}, Analytics: config.AnalyticsConfig{PostHogKey: "phc_secret"}})

	out, err := execute(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "api.base_url = https://api.example.com") {
		t.Errorf("output missing base url:\n%s", out)
	}
	if strings.Contains(out, "phc_secret") {
		t.Error("config show leaked a secret")
	}
}

func TestConfigSet_WritesFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if _, err := execute(t, "config", "set", "api.base_url", "https://api.example.com"); err != nil {
		t.Fatalf("config set: %v", err)
	}
	if _, err := execute(t, "config", "set", "nope", "x"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestNotices(t *testing.T) {
	withNoColor(t)
	buf := captureStderr(t)

	printSuccess("saved %s", "a")
	printError("failed %d", 2)
	printWarning("careful")
	printStep("next")
	printStatus("Cache", "memory (ttl %s)", "60s")

	want := "✓ saved a\n✗ failed 2\n⚠ careful\n→ next\n  Cache:       memory (ttl 60s)\n"
	if buf.String() != want {
		t.Errorf("output =\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestWarnUnconfigured(t *testing.T) {
	withNoColor(t)
	buf := captureStderr(t)

	if warnUnconfigured(config.Config{API: config.APIConfig{BaseURL: "https://api.example.com"}}) {
		t.Error("configured backend should not warn")
	}
	if buf.Len() != 0 {
		t.Errorf("unexpected output %q", buf.String())
	}

	if !warnUnconfigured(config.Config{}) {
		t.Error("missing base URL should warn")
	}
	if out := buf.String(); !strings.HasPrefix(out, "⚠ ") || !strings.Contains(out, "FOLIO_API_BASE_URL") {
		t.Errorf("warning = %q", out)
	}
}

func TestSetupLogging(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "bogus"} {
		setupLogging(level)
	}
}
