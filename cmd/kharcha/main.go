package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"kharcha/internal/assistant"
	"kharcha/internal/auth"
	"kharcha/internal/cache"
	"kharcha/internal/cli"
	"kharcha/internal/config"
	"kharcha/internal/export"
	apphttp "kharcha/internal/http"
	"kharcha/internal/log"
	"kharcha/internal/metrics"
	"kharcha/internal/refresh"
	"kharcha/internal/services"
)

func main() {
	cli.LoadEnvFile()

	cfg := config.Load()
	logger := cli.SetupLogger(log.ComponentApp, cfg)
	cli.MustValidate(logger, cfg.Validate)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, cancel := cli.ShutdownContext(logger)
	defer cancel()

	transport := cli.OpenTransport(ctx, logger, cfg)
	defer transport.Cleanup()

	appMetrics := metrics.New()
	refresher := refresh.New(repo, refresh.WithObserver(appMetrics))
	exporter := export.NewExporter(cfg.ExportCacheTTL)

	caches := cache.NewManager()
	caches.Register(exporter.Cache())
	caches.Start(ctx, time.Minute)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Ledger:    services.NewLedgerService(repo, appMetrics.Publisher(transport.Transport)),
		Store:     repo,
		Refresher: refresher,
		Tokens:    auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL),
		Exporter:  exporter,
		Assistant: assistant.NewBuilder(cfg.Currency),
		Metrics:   appMetrics,
		Currency:  cfg.Currency,

		MutationsPerMinute: cfg.MutationsPerMinute,
	})

	refreshDone := make(chan struct{})
	go func() {
		defer close(refreshDone)
		if err := refresher.Run(ctx, appMetrics.Source(transport.Transport), cfg.RefreshInterval); err != nil {
			logger.Error("Snapshot refresher stopped", log.FieldError, err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	}()

	logger.Info("Starting kharcha server",
		"port", cfg.Port,
		"notify_backend", cfg.NotifyBackend,
		"currency", cfg.Currency)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		cancel()
		<-refreshDone
		os.Exit(1)
	}

	<-refreshDone
	refresher.Wait()
	caches.Wait()
	logger.Info("Server stopped gracefully")
}
