package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freewebtopdf/source-patcher/internal/config"
	"github.com/freewebtopdf/source-patcher/internal/domain"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{}
	cfg.Server.Port = 8080
	cfg.Server.BodyLimit = 1 << 20
	cfg.Server.ReadTimeout = time.Second
	cfg.Server.WriteTimeout = time.Second
	cfg.Workspace.Dir = filepath.Join(dir, "workspace")
	cfg.Workspace.MaxFileSize = 1 << 20
	cfg.Workspace.AtomicWrites = true
	cfg.Rules.Dir = filepath.Join(dir, "rules")
	cfg.Rules.CacheMaxSize = 8
	cfg.Lock.Timeout = time.Second
	cfg.Journal.Enabled = true
	cfg.Journal.Path = filepath.Join(dir, "data", "journal.db")
	cfg.Security.RateLimitRPS = 10
	cfg.Security.RateLimitBurst = 20
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	require.NoError(t, config.Validate(cfg))
	require.NoError(t, cfg.EnsureDirectories())
	return cfg
}

func TestBuildServices(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Rules.Dir, "greet.patch.yaml"), []byte(`
rules:
  - type: replace
    find: hello
    replace: goodbye
`), 0o644))
	src := filepath.Join(cfg.Workspace.Dir, "a.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello world\n"), 0o644))

	ctx := context.Background()
	svc, err := buildServices(ctx, cfg)
	require.NoError(t, err)
	defer svc.Close()

	assert.ElementsMatch(t, []string{"workspace", "rulesets", "cache", "locks", "journal"}, svc.health.Components())
	assert.Nil(t, svc.watcher)

	rep, err := svc.patcher.Run(ctx, domain.PatchRequest{Source: src, RuleSet: "greet"})
	require.NoError(t, err)
	assert.Equal(t, domain.StateWritten, rep.State)

	out, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, "goodbye world\n", string(out))

	entries, err := svc.journal.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "greet", entries[0].RuleSet)

	assert.Equal(t, domain.HealthStatusHealthy, svc.health.CheckHealth(ctx).Status)
}

func TestBuildServices_WatchWithoutJournal(t *testing.T) {
	cfg := testConfig(t)
	cfg.Rules.WatchFiles = true
	cfg.Journal.Enabled = false

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := buildServices(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, svc.watcher)
	assert.Nil(t, svc.journal)
	assert.NotContains(t, svc.health.Components(), "journal")
	assert.Nil(t, svc.routerDeps().Journal, "no typed nil journal reaches the router")

	svc.Close()
}

func TestBuildServices_MissingWorkspace(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workspace.Dir = filepath.Join(t.TempDir(), "missing")

	_, err := buildServices(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workspace")
}

func TestShutdownOnSignal(t *testing.T) {
	app := fiber.New()
	ctx, cancel := context.WithCancel(context.Background())

	cleaned := make(chan struct{})
	go shutdownOnSignal(ctx, app, func() { close(cleaned) })

	cancel()
	select {
	case <-cleaned:
	case <-time.After(5 * time.Second):
		t.Fatal("cleanup did not run after cancellation")
	}
}

func TestPerformHealthCheck(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(int(status.Load()))
	}))
	defer server.Close()

	u, err := url.Parse(server.URL)
	require.NoError(t, err)

	assert.Equal(t, 0, performHealthCheck(u.Port()))

	status.Store(http.StatusServiceUnavailable)
	assert.Equal(t, 1, performHealthCheck(u.Port()))
}
