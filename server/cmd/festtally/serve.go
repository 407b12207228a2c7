package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/festtally/festtally/server/internal/alerts"
	"github.com/festtally/festtally/server/internal/api"
	"github.com/festtally/festtally/server/internal/config"
	"github.com/festtally/festtally/server/internal/metrics"
	"github.com/festtally/festtally/server/internal/page"
	"github.com/festtally/festtally/server/internal/pipeline"
	"github.com/festtally/festtally/server/internal/store"
	"github.com/festtally/festtally/server/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard, JSON API, live refresh and metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), *configPath)
		},
	}
}

func serve(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	level := setupLogging(os.Stdout, cfg.Logging)

	slog.Info("festtally starting",
		"config", configPath,
		"http_port", cfg.Server.HTTPPort,
		"feed_url", cfg.Feed.URL,
		"refresh_interval", cfg.Server.RefreshInterval,
		"fallback", cfg.Fallback.Enabled,
	)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := metrics.New()
	last := store.New[*pipeline.Result](cfg.Fallback.MaxAge)
	alertEngine := alerts.New(cfg.Alerts)
	runner := pipeline.New(cfg,
		pipeline.WithStore(last),
		pipeline.WithMetrics(m),
		pipeline.WithStatusHook(alertEngine.Evaluate),
	)
	pres := page.NewPresenter()
	hub := ws.New(runner, pres, m)

	mux := http.NewServeMux()
	mux.Handle("/", page.NewHandler(runner, pres))
	mux.Handle("/api/", api.New(runner, alertEngine, m))
	mux.Handle("/ws/stream", hub)
	mux.Handle("/metrics", m.Handler())

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("festtally shutting down")
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer scancel()
		return httpSrv.Shutdown(sctx)
	})
	g.Go(func() error {
		last.Run(gctx)
		return nil
	})
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	if configPath != "" {
		g.Go(func() error {
			return config.Watch(gctx, configPath, func(c *config.Config) {
				runner.SetConfig(c)
				alertEngine.SetConfig(c.Alerts)
				level.Set(parseLevel(c.Logging.Level))
			})
		})
	}

	err = g.Wait()
	alertEngine.Wait()
	return err
}
