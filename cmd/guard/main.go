package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/emergenceguard/emergenceguard/internal/api"
	"github.com/emergenceguard/emergenceguard/internal/config"
	"github.com/emergenceguard/emergenceguard/internal/emergency"
	"github.com/emergenceguard/emergenceguard/internal/evaluate"
	"github.com/emergenceguard/emergenceguard/internal/history"
	"github.com/emergenceguard/emergenceguard/internal/monitor"
	"github.com/emergenceguard/emergenceguard/internal/notify"
	"github.com/emergenceguard/emergenceguard/internal/provider"
	"github.com/emergenceguard/emergenceguard/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	var level slog.LevelVar
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: &level}))
	slog.SetDefault(logger)

	slog.Info("emergence-guard starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	level.Set(parseLevel(cfg.Logging.Level))

	slog.Info("config loaded",
		"interval", cfg.Guard.Interval,
		"window_size", cfg.Guard.WindowSize,
		"kappa_threshold", cfg.Guard.Thresholds.Kappa,
		"epsilon_threshold", cfg.Guard.Thresholds.Epsilon,
		"signals_source", cfg.Signals.Source,
		"storage_backend", cfg.Storage.Backend,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Provider resolution: privileged kernel when present and healthy,
	// fallback synthesis otherwise. Never fatal.
	fallback := provider.NewFallback(provider.NewSignalSource(cfg.Signals))
	res := provider.NewResolver(cfg.Provider, fallback).Resolve(ctx)
	slog.Info("provider resolved", "kind", res.Kind, "reason", res.Reason)

	// Emergency sinks: file dump always, history and webhooks when configured.
	sinks := []emergency.Sink{emergency.NewFileSink(cfg.Emergency.Dir)}

	var store *history.Store
	if cfg.Storage.Backend == "sqlite" {
		store, err = history.Open(cfg.Storage.Path, cfg.Storage.Retention)
		if err != nil {
			slog.Error("failed to open history store", "err", err)
			os.Exit(1)
		}
		defer store.Close()
		go store.Run(ctx)
		sinks = append(sinks, store)
	}

	if len(cfg.Emergency.Webhooks) > 0 {
		sinks = append(sinks, notify.New(cfg.Emergency.Webhooks))
	}

	ctrl := emergency.NewController(cfg.Emergency.WriteTimeout, sinks...)

	mon := monitor.New(monitor.Config{
		Provider:     res.Provider,
		ProviderKind: res.Kind,
		Thresholds: evaluate.Thresholds{
			Kappa:         cfg.Guard.Thresholds.Kappa,
			Epsilon:       cfg.Guard.Thresholds.Epsilon,
			WarningMargin: cfg.Guard.WarningMargin,
		},
		Interval:      cfg.Guard.Interval,
		SampleTimeout: cfg.Guard.SampleTimeout,
		WindowSize:    cfg.Guard.WindowSize,
		Controller:    ctrl,
		Recorder:      recorderOrNil(store),
	})
	go mon.Run(ctx)

	// Watch config file for hot-reload. Monitoring parameters are immutable;
	// only the logging level is applied.
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			level.Set(parseLevel(updated.Logging.Level))
			slog.Info("log level applied", "level", updated.Logging.Level)
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	// WebSocket hub broadcasts the status report to connected dashboards.
	hub := ws.New(mon, cfg.Server.WSInterval)
	go hub.Run(ctx)

	// Combined HTTP server: REST API + WebSocket hub on HTTPPort.
	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", api.APIKeyMiddleware(
		cfg.Server.Auth.Mode,
		cfg.Server.Auth.EffectiveHeader(),
		cfg.Server.Auth.Key(),
		api.New(mon, eventsOrNil(store)),
	))
	httpMux.Handle("/ws/stream", hub)

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: httpMux,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("emergence-guard shutting down")
	httpSrv.Shutdown(context.Background()) //nolint:errcheck
}

// recorderOrNil avoids a typed-nil interface when storage is disabled.
func recorderOrNil(store *history.Store) monitor.Recorder {
	if store == nil {
		return nil
	}
	return store
}

// eventsOrNil avoids a typed-nil interface when storage is disabled.
func eventsOrNil(store *history.Store) api.EventSource {
	if store == nil {
		return nil
	}
	return store
}

func parseLevel(s string) slog.Level {
	switch s {
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
