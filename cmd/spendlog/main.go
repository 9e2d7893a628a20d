package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"golang.org/x/sync/errgroup"

	"spendlog/internal/backend"
	"spendlog/internal/cli"
	apphttp "spendlog/internal/http"
	applog "spendlog/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendConfig)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err, applog.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}

	srv := apphttp.NewServer(":"+cfg.Port, result.Store, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMin,
		CacheTTL:           cfg.SummaryCacheTTL,
		BlockSuspicious:    cfg.BlockSuspicious,
		Logger:             logger,
	})
	srv.MaxHeaderBytes = 1 << 16

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting spendlog server",
			"port", cfg.Port,
			applog.FieldBackend, cfg.DataBackend,
			"amqp_enabled", result.AMQPEnabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		cli.RunCleanup(logger, cfg.ShutdownTimeout, func() { closeBackend(logger, result.Cleanup) })
		os.Exit(1)
	}

	cli.RunCleanup(logger, cfg.ShutdownTimeout, func() { closeBackend(logger, result.Cleanup) })
	logger.Info("Server stopped gracefully")
}

func closeBackend(logger *applog.Logger, cleanup backend.CleanupFunc) {
	if err := cleanup(); err != nil {
		logger.Warn("Backend cleanup failed", applog.FieldError, err)
	}
}
