package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/folio/internal/analytics"
	"github.com/kalambet/folio/internal/api"
	"github.com/kalambet/folio/internal/backend"
	"github.com/kalambet/folio/internal/cache"
	"github.com/kalambet/folio/internal/config"
	"github.com/kalambet/folio/internal/pipeline"
	"github.com/kalambet/folio/internal/render"
	"github.com/kalambet/folio/internal/storage"
	"github.com/kalambet/folio/internal/tenant"
)

const (
	shutdownTimeout  = 5 * time.Second
	staleJobAge      = 5 * time.Minute
	cacheSweepPeriod = time.Minute
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve tenant portfolios over HTTP (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func setupLogging(level string) {
	logLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

func loadRules(cfg config.Config) (tenant.Rules, error) {
	if cfg.Tenant.RulesFile == "" {
		return tenant.DefaultRules(), nil
	}
	return tenant.LoadRules(cfg.Tenant.RulesFile)
}

// openCache prefers Redis when configured and reachable. An unreachable
// Redis falls back to the in-process store so rendering keeps working.
func openCache(ctx context.Context, cfg config.Config) (cache.Store, func()) {
	if cfg.Cache.RedisAddr != "" {
		r := cache.NewRedis(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, "folio")
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := r.Ping(pingCtx)
		cancel()
		if err == nil {
			slog.Info("revalidation cache: redis", "addr", cfg.Cache.RedisAddr)
			return r, func() { r.Close() }
		}
		slog.Warn("redis unreachable, using in-memory cache", "addr", cfg.Cache.RedisAddr, "error", err)
		r.Close()
	}

	m := cache.NewMemory()
	go func() {
		t := time.NewTicker(cacheSweepPeriod)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if n := m.Sweep(); n > 0 {
					slog.Debug("cache sweep", "evicted", n)
				}
			}
		}
	}()
	slog.Info("revalidation cache: memory")
	return m, func() {}
}

func newBackendClient(cfg config.Config, store cache.Store) *backend.Client {
	return backend.NewClient(cfg.API.BaseURL, backend.Options{
		Development: cfg.Development(),
		Cache:       store,
		Revalidate:  cfg.CacheTTL(),
		Timeout:     cfg.APITimeout(),
	})
}

// warnUnconfigured tells the operator that pages will show the
// configuration error instead of portfolios.
func warnUnconfigured(cfg config.Config) bool {
	if cfg.API.BaseURL != "" {
		return false
	}
	printWarning("api.base_url is not set; every portfolio will report it (export FOLIO_API_BASE_URL)")
	return true
}

func runServer() error {
	fmt.Fprintf(stderr, "folio version %s\n", version)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	rules, err := loadRules(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeCache := openCache(ctx, cfg)
	defer closeCache()

	client := newBackendClient(cfg, store)
	warnUnconfigured(cfg)

	var (
		sink  analytics.Sink = analytics.Nop{}
		queue api.QueueAdmin
	)
	if cfg.AnalyticsActive() {
		jobs, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer func() {
			if err := jobs.Close(); err != nil {
				printWarning("closing storage: %v", err)
			}
		}()

		if n, err := jobs.RequeueStale(ctx, time.Now().Add(-staleJobAge)); err != nil {
			slog.Warn("requeueing stale analytics jobs", "error", err)
		} else if n > 0 {
			slog.Info("requeued stale analytics jobs", "count", n)
		}

		sink = analytics.NewOutbox(jobs)
		queue = jobs
		worker := analytics.NewWorker(jobs, analytics.NewPostHog(cfg.Analytics.PostHogKey, cfg.Analytics.PostHogHost), time.Second)
		workerDone := make(chan struct{})
		go func() {
			worker.Run(ctx)
			close(workerDone)
		}()
		// The worker must stop before the store closes.
		defer func() {
			stop()
			<-workerDone
		}()
		slog.Info("analytics enabled", "host", cfg.Analytics.PostHogHost)
	} else {
		slog.Info("analytics disabled")
	}

	dispatcher, err := render.NewDispatcher()
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}

	var admin http.Handler
	if cfg.Admin.Token != "" {
		admin = api.NewAdminHandler(api.AdminDeps{Token: cfg.Admin.Token, Queue: queue, Cache: client})
	}

	handler := api.NewSiteHandler(api.SiteDeps{
		Loader:         pipeline.NewLoader(client, sink),
		Renderer:       dispatcher,
		Rules:          rules,
		AllowedOrigins: cfg.AllowedOrigins(),
		Admin:          admin,
	})

	addr := cfg.ListenAddr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		printStep("folio listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		printStep("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
