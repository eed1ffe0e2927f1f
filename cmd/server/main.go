package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/freewebtopdf/source-patcher/docs"
	"github.com/freewebtopdf/source-patcher/internal/api"
	"github.com/freewebtopdf/source-patcher/internal/cache"
	"github.com/freewebtopdf/source-patcher/internal/config"
	"github.com/freewebtopdf/source-patcher/internal/domain"
	"github.com/freewebtopdf/source-patcher/internal/health"
	"github.com/freewebtopdf/source-patcher/internal/journal"
	"github.com/freewebtopdf/source-patcher/internal/loader"
	"github.com/freewebtopdf/source-patcher/internal/lock"
	"github.com/freewebtopdf/source-patcher/internal/patcher"
	"github.com/freewebtopdf/source-patcher/internal/storage"
	"github.com/freewebtopdf/source-patcher/internal/watcher"
)

// @title Source Patcher API
// @version 1.0
// @description Applies ordered, marker-based edits to text files inside a workspace

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @BasePath /
// @schemes http https

// @tag.name Patch
// @tag.description Patch jobs against workspace files

// @tag.name Rule Sets
// @tag.description Named rule set management

// @tag.name History
// @tag.description Journal of past patch runs

// @tag.name System
// @tag.description System health and metrics operations

func main() {
	healthCheck := flag.Bool("health-check", false, "Perform health check and exit")
	flag.Parse()

	if *healthCheck {
		os.Exit(performHealthCheck(os.Getenv("PORT")))
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	config.SetupLogger(cfg.Logging, os.Stderr)

	log.Info().Msg("Source patcher service starting...")

	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatal().Err(err).Msg("Failed to create required directories")
	}

	logStartupConfig(cfg)

	docs.SwaggerInfo.Host = cfg.Server.PublicHost

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := buildServices(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise services")
	}

	result := api.SetupRouter(svc.routerDeps(), api.RouterConfig{
		CORSOrigins:    cfg.Security.CORSOrigins,
		BodyLimit:      cfg.Server.BodyLimit,
		RateLimitRPS:   cfg.Security.RateLimitRPS,
		RateLimitBurst: cfg.Security.RateLimitBurst,
	})
	app := result.App

	app.Server().ReadTimeout = cfg.Server.ReadTimeout
	app.Server().WriteTimeout = cfg.Server.WriteTimeout

	done := make(chan struct{})
	go func() {
		defer close(done)
		shutdownOnSignal(ctx, app, func() {
			result.Cleanup()
			svc.Close()
		})
	}()

	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Info().
		Int("port", cfg.Server.Port).
		Str("addr", serverAddr).
		Msg("Starting HTTP server")

	if err := app.Listen(serverAddr); err != nil {
		log.Fatal().Err(err).Msg("Failed to start HTTP server")
	}
	<-done
	log.Info().Msg("Graceful shutdown completed")
}

// services holds everything the router needs plus what must be closed on exit
type services struct {
	workspace *api.Workspace
	store     *loader.Store
	patcher   *patcher.Service
	journal   *journal.SQLiteJournal
	watcher   *watcher.Watcher
	health    *health.SystemHealthChecker
}

func buildServices(ctx context.Context, cfg *config.Config) (*services, error) {
	ws, err := api.NewWorkspace(cfg.Workspace.Dir)
	if err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}

	validator := domain.NewRuleValidator()
	ruleCache := cache.NewLRUCache(cfg.Rules.CacheMaxSize)
	store := loader.NewStore(cfg.Rules.Dir, validator, ruleCache)
	if err := store.Reload(ctx); err != nil {
		return nil, fmt.Errorf("rule sets: %w", err)
	}

	locks := lock.NewManager(cfg.Lock.Timeout, cfg.Lock.FileLocks)
	files := storage.NewFileStore(storage.Options{
		MaxFileSize: cfg.Workspace.MaxFileSize,
		Atomic:      cfg.Workspace.AtomicWrites,
	})

	svc := &services{
		workspace: ws,
		store:     store,
		health:    health.NewSystemHealthChecker(5 * time.Second),
	}

	opts := []patcher.Option{patcher.WithLocker(locks), patcher.WithRuleSets(store)}
	if cfg.Journal.Enabled {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return nil, fmt.Errorf("journal: %w", err)
		}
		svc.journal = j
		opts = append(opts, patcher.WithJournal(j))
	}
	svc.patcher = patcher.NewService(files, validator, opts...)

	if cfg.Rules.WatchFiles {
		w, err := watcher.New(cfg.Rules.Dir, loader.ValidRuleExtensions, watcher.DefaultDebounce, store.Reload)
		if err != nil {
			svc.Close()
			return nil, fmt.Errorf("watcher: %w", err)
		}
		if err := w.Start(ctx); err != nil {
			svc.Close()
			return nil, fmt.Errorf("watcher: %w", err)
		}
		svc.watcher = w
		log.Info().Str("dir", cfg.Rules.Dir).Msg("Watching rule files")
	}

	svc.health.Register("workspace", health.DirectoryCheck{Path: ws.Root()})
	svc.health.Register("rulesets", store)
	svc.health.Register("cache", ruleCache)
	svc.health.Register("locks", locks)
	if svc.journal != nil {
		svc.health.Register("journal", svc.journal)
	}

	return svc, nil
}

func (s *services) routerDeps() api.RouterDependencies {
	deps := api.RouterDependencies{
		Patcher:       s.patcher,
		Workspace:     s.workspace,
		RuleSets:      s.store,
		HealthChecker: s.health,
	}
	if s.journal != nil {
		deps.Journal = s.journal
	}
	return deps
}

// Close stops the watcher and closes the journal
func (s *services) Close() {
	if s.watcher != nil {
		log.Info().Msg("Stopping rule watcher...")
		s.watcher.Stop()
	}
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close journal")
		}
	}
}

func logStartupConfig(cfg *config.Config) {
	log.Info().
		Int("server_port", cfg.Server.Port).
		Dur("server_read_timeout", cfg.Server.ReadTimeout).
		Dur("server_write_timeout", cfg.Server.WriteTimeout).
		Int("server_body_limit", cfg.Server.BodyLimit).
		Str("server_public_host", cfg.Server.PublicHost).
		Str("workspace_dir", cfg.Workspace.Dir).
		Bool("atomic_writes", cfg.Workspace.AtomicWrites).
		Str("rules_dir", cfg.Rules.Dir).
		Bool("watch_rule_files", cfg.Rules.WatchFiles).
		Int("cache_max_size", cfg.Rules.CacheMaxSize).
		Dur("lock_timeout", cfg.Lock.Timeout).
		Bool("lock_files", cfg.Lock.FileLocks).
		Bool("journal_enabled", cfg.Journal.Enabled).
		Str("journal_path", cfg.Journal.Path).
		Strs("security_cors_origins", cfg.Security.CORSOrigins).
		Str("logging_level", cfg.Logging.Level).
		Str("logging_format", cfg.Logging.Format).
		Msg("Configuration loaded successfully")
}

// shutdownOnSignal stops the server once ctx is cancelled, then runs cleanup
func shutdownOnSignal(ctx context.Context, app *fiber.App, cleanup func()) {
	<-ctx.Done()

	log.Info().Msg("Received shutdown signal, initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	log.Info().Msg("Stopping HTTP server...")
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during HTTP server shutdown")
	}

	cleanup()
}

// performHealthCheck calls the local /health endpoint and returns the exit code
func performHealthCheck(port string) int {
	if port == "" {
		port = "8080"
	}

	client := &http.Client{
		Timeout: 3 * time.Second,
	}

	resp, err := client.Get(fmt.Sprintf("http://localhost:%s/health", port))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		return 1
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		return 1
	}

	fmt.Println("Health check passed")
	return 0
}
