// Package main is the entrypoint for the nudgegate daemon.
//
// Startup sequence:
//  1. Initialize the structured logger.
//  2. Load and validate configuration (fail fast).
//  3. Open the durable key-value store (sqlite, or in-memory when no path).
//  4. Wire the quota store, deferred queue, policy resolver, admission
//     controller, smart selector, auditor, and purger.
//  5. Run the legacy purge once.
//  6. Start the rollover runner and the HTTP server; block until a signal.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"nudgegate/internal/admission"
	"nudgegate/internal/api"
	"nudgegate/internal/audit"
	"nudgegate/internal/config"
	"nudgegate/internal/delivery"
	"nudgegate/internal/policy"
	"nudgegate/internal/prefs"
	"nudgegate/internal/purge"
	"nudgegate/internal/queue"
	"nudgegate/internal/quota"
	"nudgegate/internal/selector"
	"nudgegate/internal/store"
	"nudgegate/internal/types"
)

// slogAdapter wraps *slog.Logger to implement the types.Logger interface.
// slog.Logger satisfies Info/Warn/Error directly but With returns
// *slog.Logger, so an adapter is necessary.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogAdapter) With(args ...any) types.Logger {
	return &slogAdapter{logger: a.logger.With(args...)}
}

var _ types.Logger = (*slogAdapter)(nil)

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration load failed", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	log := &slogAdapter{logger: logger.With("service", cfg.Service)}

	log.Info("starting", "environment", cfg.Environment, "port", cfg.Server.Port)

	if err := run(cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("daemon exited with error", "error", err.Error())
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

func run(cfg *config.Config, log types.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := types.RealClock{}

	var kv store.Store
	if cfg.Store.Path == "" {
		log.Warn("no store path configured, state will not survive restart")
		kv = store.NewMemory()
	} else {
		sqliteKV, err := store.Open(store.Config{
			Path:        cfg.Store.Path,
			BusyTimeout: cfg.Store.BusyTimeout,
		}, log)
		if err != nil {
			return err
		}
		kv = sqliteKV
	}
	defer kv.Close()

	deliverySvc := delivery.NewMemory(clock, log)
	defer deliverySvc.Close()

	prefProvider := prefs.NewStatic(cfg.Prefs)
	policyCfg := policy.Config{
		DeliveryDay:     cfg.Policy.DeliveryDay,
		WindowStartHour: cfg.Policy.WindowStartHour,
		WindowEndHour:   cfg.Policy.WindowEndHour,
		FallbackHour:    cfg.Policy.FallbackHour,
		FallbackMinute:  cfg.Policy.FallbackMinute,
		QuietStartHour:  cfg.Policy.QuietStartHour,
		QuietEndHour:    cfg.Policy.QuietEndHour,
	}

	quotaStore := quota.New(kv, deliverySvc, cfg.Quota.DeliveryCap, log)
	deferredQueue := queue.New(kv, cfg.Queue.Capacity, log)
	resolver := policy.NewResolver(policyCfg, prefProvider, log)
	controller := admission.NewController(quotaStore, deferredQueue, resolver, deliverySvc, prefProvider, clock, log)
	sel := selector.New(controller, deferredQueue, log)
	runner := selector.NewRunner(clock, quotaStore, sel, log)
	auditor := audit.New(deliverySvc, quotaStore, deferredQueue, policyCfg, clock, log)
	archiver := audit.NewArchiver(cfg.Audit.ArchiveDir, log)
	purger := purge.New(deliverySvc, policyCfg, log)

	if removed, err := purger.RunOnce(ctx); err != nil {
		log.Error("legacy purge failed", "error", err.Error())
	} else if len(removed) > 0 {
		log.Info("legacy purge removed items", "count", len(removed))
	}

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: api.NewServer(controller, auditor, archiver, quotaStore, log).Handler(),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runner.Run(ctx)
	})

	g.Go(func() error {
		log.Info("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
