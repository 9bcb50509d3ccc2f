package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"kharcha/internal/cli"
	"kharcha/internal/config"
	"kharcha/internal/log"
	"kharcha/internal/metrics"
	"kharcha/internal/notify"
	"kharcha/internal/refresh"
	"kharcha/internal/sheets"
	gsheet "kharcha/internal/sheets/google"
	mem "kharcha/internal/sheets/memory"
	"kharcha/internal/worker"
)

// pollInterval replaces a disabled refresh interval when change events from
// the API cannot reach this process.
const pollInterval = time.Minute

func main() {
	cli.LoadEnvFile()

	cfg := config.Load()
	logger := cli.SetupLogger(log.ComponentWorker, cfg)
	logger.Info("Starting kharcha-worker")
	cli.MustValidate(logger, cfg.ValidateWorker)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, cancel := cli.ShutdownContext(logger)
	defer cancel()

	target := openMirror(ctx, logger, cfg)

	appMetrics := metrics.New()
	interval := cfg.RefreshInterval

	transport := cli.OpenTransport(ctx, logger, cfg)
	defer transport.Cleanup()

	var (
		source     notify.Source
		mirrorOpts []worker.MirrorOption
	)
	if transport.Shared {
		source = appMetrics.Source(transport.Transport)
	} else {
		// The API's in-process hub is not visible here; poll the store.
		if interval <= 0 {
			interval = pollInterval
		}
		logger.Warn("No change broker configured, polling the store", "interval", interval.String())
	}
	if transport.Locker != nil {
		mirrorOpts = append(mirrorOpts, worker.WithLocker(transport.Locker))
	}

	refresher := refresh.New(repo, refresh.WithObserver(appMetrics))
	w := worker.New(refresher, source, worker.NewMirror(target, mirrorOpts...), interval)

	metricsSrv := newMetricsServer(":"+cfg.MetricsPort, appMetrics, refresher)
	go func() {
		logger.Info("Serving worker metrics", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server error", log.FieldError, err)
			cancel()
		}
	}()

	if err := w.Run(ctx); err != nil {
		logger.Error("Worker stopped", log.FieldError, err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Metrics server shutdown error", log.FieldError, err)
	}
	logger.Info("Worker shutdown complete")
}

// openMirror returns the Google Sheets mirror when a spreadsheet is
// configured, and an in-memory sink otherwise.
func openMirror(ctx context.Context, logger *log.Logger, cfg *config.Config) sheets.SnapshotMirror {
	if !cfg.SheetsEnabled() {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, mirroring to memory")
		return mem.New()
	}
	client, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets mirror enabled",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName)
	return client
}

func newMetricsServer(addr string, m *metrics.Metrics, r *refresh.Refresher) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		if r.Current().Stale() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("stale\n"))
			return
		}
		_, _ = w.Write([]byte("ok\n"))
	})
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
