// Package cli holds the startup steps shared by the kharcha binaries.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"kharcha/internal/backend"
	"kharcha/internal/config"
	"kharcha/internal/log"
	"kharcha/internal/storage"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger installs the configured slog handler as the default logger.
func SetupLogger(component string, cfg *config.Config) *log.Logger {
	return log.Setup(component, cfg.LogFormat, cfg.LogLevel)
}

// MustValidate exits the process when validate fails.
func MustValidate(logger *log.Logger, validate func() error) {
	if err := validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
}

// InitSQLite opens the ledger store or exits the process.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}

// OpenTransport opens the configured change-event backend or exits the
// process.
func OpenTransport(ctx context.Context, logger *log.Logger, cfg *config.Config) *backend.Result {
	bcfg, err := transportConfig(logger, cfg)
	if err == nil {
		var res *backend.Result
		res, err = backend.NewFactory(logger.Logger).Open(ctx, bcfg)
		if err == nil {
			return res
		}
	}
	logger.Error("Failed to initialize change notification", log.FieldError, err, "backend", cfg.NotifyBackend)
	os.Exit(1)
	return nil
}

// transportConfig names the subscribing process after the logger's component.
func transportConfig(logger *log.Logger, cfg *config.Config) (backend.Config, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return backend.Config{}, err
	}
	bcfg.Consumer = logger.Component()
	return bcfg, nil
}

// ShutdownContext returns a context cancelled on SIGINT or SIGTERM.
func ShutdownContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
