package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/soundshape/panelsync/internal/adapters/compute"
	"github.com/soundshape/panelsync/internal/adapters/http/api"
	"github.com/soundshape/panelsync/internal/adapters/persist"
	"github.com/soundshape/panelsync/internal/adapters/samplecache"
	"github.com/soundshape/panelsync/internal/app"
	"github.com/soundshape/panelsync/internal/config"
	"github.com/soundshape/panelsync/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 30 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	// Disable default Go metrics collection; the service exposes its own
	// registry and the defaults would duplicate it.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env).
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input).
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	// Durable store first: committed state and cached sessions survive
	// restarts through it.
	store, err := persist.New(
		persist.WithPath(cfg.DataDir),
		persist.WithQueueSize(cfg.PersistQueueSize),
		persist.WithLogger(log),
	)
	if err != nil {
		log.Error(ctx, "failed to open persistence store", logger.Error(err))
		return
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error(ctx, "failed to close persistence store", logger.Error(err))
		}
	}()

	cache := samplecache.New(
		samplecache.WithCapacity(cfg.CacheCapacity),
		samplecache.WithRemovalHook(store.DeleteSession),
		samplecache.WithLogger(log),
	)

	// Rehydrate cached sessions so rebins keep working across a restart.
	// Original timestamps are carried through so eviction order survives
	// the restart; the removal hook prunes any overflow from disk.
	sessions, err := store.LoadSessions(ctx)
	if err != nil {
		log.Warn(ctx, "failed to load persisted sessions; starting cold", logger.Error(err))
	}
	for _, rec := range sessions {
		cache.Rehydrate(ctx, rec.SessionID, rec.SourceLabel, rec.Fingerprint, rec.Samples, rec.CreatedAt)
	}

	computeClient := compute.NewClient(cfg.ComputeURL,
		compute.WithTimeout(time.Duration(cfg.ComputeTimeoutMS)*time.Millisecond),
		compute.WithLogger(log),
	)

	opts := []app.Option{
		app.WithCache(cache),
		app.WithCompute(computeClient),
		app.WithPersister(store),
		app.WithLogger(log),
		app.WithSizeDefaults(cfg.SizeDefaults),
		app.WithMaterialDefaults(cfg.MaterialDefaults),
	}
	if snapshot, ok, err := store.LoadSnapshot(ctx); err != nil {
		log.Warn(ctx, "failed to load persisted snapshot; starting empty", logger.Error(err))
	} else if ok {
		opts = append(opts, app.WithInitialSnapshot(snapshot))
	}

	pipeline := app.New(opts...)

	// HTTP mux and routes.
	mux := http.NewServeMux()
	apiServer := api.NewServer(pipeline, pipeline)
	apiServer.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}
