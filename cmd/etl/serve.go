package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	httpadapter "github.com/couchcryptid/weather-backup-etl/internal/adapter/http"
	"github.com/couchcryptid/weather-backup-etl/internal/scheduler"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the pipeline on an interval and serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			return serve(cmd.Context(), a)
		},
	}
}

func serve(parent context.Context, a *app) error {
	cfg, logger := a.cfg, a.logger

	srv := httpadapter.NewServer(cfg.HTTPAddr, a.pipeline, a.store, httpadapter.Options{
		RunTimeout:   cfg.HTTPRunTimeout,
		CleanedTable: cfg.WeatherCleanedTable,
	}, logger)
	sched := scheduler.New(a.pipeline, cfg.RunInterval, cfg.RunOnStart, nil, logger)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	srvErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			srvErr <- err
		}
	}()

	// Start interval trigger.
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		sched.Start(ctx)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-srvErr:
		stop()
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-schedDone:
	case <-shutdownCtx.Done():
		logger.Warn("scheduler did not stop before shutdown timeout")
	}

	logger.Info("shutdown complete")
	return runErr
}
