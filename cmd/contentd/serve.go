package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpserver "github.com/fyrsmithlabs/contentfactory/internal/http"
	"github.com/fyrsmithlabs/contentfactory/internal/ingest"
	"github.com/fyrsmithlabs/contentfactory/internal/learner"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API, NATS metric ingestion and the retention sweep",
		Long: `Serve the HTTP API on server.host:server.http_port.

When nats.url is set, metric submissions are consumed from nats.metrics_subject
and a RunCompleted event is published to nats.events_subject after every run.
When guardrails.watch is set, the style guide is reloaded on change.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(ctx, cfg, appOptions{connectNATS: true})
			if err != nil {
				return err
			}
			defer a.Close()
			return serve(ctx, a)
		},
	}
}

// serve runs every background service of a until ctx is done.
func serve(ctx context.Context, a *app) error {
	cfg := a.cfg
	z := a.logger.Underlying()

	a.logger.Info(ctx, "starting contentd",
		zap.String("version", version),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout),
	)

	if a.watcher != nil {
		go a.watcher.Run(ctx)
	}

	sweeper, err := learner.NewSweeper(a.learner, cfg.Learner.SweepInterval)
	if err != nil {
		return err
	}
	if err := sweeper.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := sweeper.Stop(); err != nil {
			a.logger.Warn(ctx, "stopping retention sweep", zap.Error(err))
		}
	}()

	if a.nc != nil {
		sub, err := ingest.NewSubscriber(a.nc, cfg.NATS.MetricsSubject, a.learner, 0, z.Named("ingest"))
		if err != nil {
			return err
		}
		if err := sub.Start(); err != nil {
			return err
		}
		defer func() {
			if err := sub.Stop(); err != nil {
				a.logger.Warn(ctx, "draining metric subscription", zap.Error(err))
			}
		}()
	}

	srv, err := httpserver.NewServer(a.controller, a.learner, a.store, z.Named("http"), &httpserver.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info(ctx, "shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
