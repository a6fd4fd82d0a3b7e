// Package cli provides common CLI initialization utilities shared by the
// bills subcommands.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"bills/internal/config"
	"bills/internal/log"
	"bills/internal/storage"
)

// LoadEnvFile loads a .env file for local use. A missing file is not an
// error; the process environment always wins over the file.
func LoadEnvFile(files ...string) {
	_ = godotenv.Load(files...)
}

// SetupLogger initializes structured logging on w at the given level and
// format ("text" or "json") and makes it the default logger. Reports go to
// stdout, so callers normally pass os.Stderr.
func SetupLogger(w io.Writer, level slog.Level, format string) *log.Logger {
	logger := log.New(log.Config{
		Level:     level,
		Component: log.ComponentApp,
		Format:    format,
		Output:    w,
	})
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration from the environment, applies
// overrides such as command-line flags, then validates the result.
func LoadAndValidateConfig(logger *log.Logger, overrides ...func(*config.Config)) (*config.Config, error) {
	cfg := config.Load()
	for _, apply := range overrides {
		apply(cfg)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		return nil, err
	}
	return cfg, nil
}

// InitSQLite opens the ledger mirror at dbPath.
func InitSQLite(logger *log.Logger, dbPath string) (*storage.SQLiteRepository, error) {
	repo, err := storage.NewSQLiteRepository(dbPath, logger)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, log.FieldPath, dbPath)
		return nil, fmt.Errorf("init sqlite: %w", err)
	}
	return repo, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM. A merge
// in progress stops at the next file boundary and leaves the previous
// ledger in place.
func SignalContext(parent context.Context, logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
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
