package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"hisab/internal/backup"
	"hisab/internal/cache"
	"hisab/internal/config"
	"hisab/internal/core"
	apphttp "hisab/internal/http"
	"hisab/internal/log"
	"hisab/internal/services"
	"hisab/internal/storage"
)

func main() {
	// .env is optional; real env vars win either way.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := log.New(log.Config{Level: parseLevel(cfg.LogLevel), Component: log.ComponentApp})
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", log.FieldError, err)
		os.Exit(1)
	}

	sqlite, err := storage.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Error("open database", log.FieldError, err, "path", cfg.DBPath)
		os.Exit(1)
	}
	defer sqlite.Close()

	store := storage.NewSnapshotStore(sqlite)
	ctx := context.Background()

	// Schema migration runs before anything reads the store. A failed step
	// leaves the recorded version at the last good step, so the next start
	// resumes from there instead of re-running completed work.
	migration, err := services.NewMigrator(store, logger).MigrateData(ctx)
	if err != nil {
		logger.Error("schema migration", log.FieldError, err)
		os.Exit(1)
	}
	if len(migration.Errors) > 0 {
		logger.Error("schema migration stopped",
			log.FieldVersion, migration.ToVersion, "errors", strings.Join(migration.Errors, "; "))
		os.Exit(1)
	}
	if migration.Migrated {
		logger.Info("schema migrated",
			"from", migration.FromVersion, "to", migration.ToVersion)
	}

	// Startup integrity pass is read-only: problems are reported, data is
	// never mutated here.
	if snap, err := store.LoadSnapshot(ctx); err != nil {
		logger.Warn("startup integrity check skipped", log.FieldError, err)
	} else {
		report := services.ValidateSnapshot(snap, core.DateOf(time.Now()))
		for _, issue := range report.Errors {
			logger.Warn("integrity error", "kind", issue.Kind, "entity", issue.Entity,
				"id", issue.ID, "detail", issue.Message)
		}
		logger.Info("startup integrity check",
			"valid", report.IsValid, "errors", len(report.Errors), "warnings", len(report.Warnings))
	}

	monthCache := cache.NewLRUCache[*core.AggregatedMonth](cfg.CacheSize, cfg.CacheTTL)
	cacheManager := cache.NewManager()
	cacheManager.Register(monthCache)
	cacheManager.StartCleanup(cfg.CacheCleanupInterval)
	defer cacheManager.Stop()

	months := services.NewMonthService(store, monthCache, logger)
	remediator := services.NewRemediator(store, months, logger)
	reconciler := services.NewReconciler(store, months, logger)
	importer := backup.NewImporter(store, months, logger)

	srv := apphttp.NewServer(":"+cfg.Port, store, months, remediator, reconciler, importer, logger)

	shutdownCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("shutdown signal received", "signal", sig.String())

		stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer stopCancel()

		if err := srv.Shutdown(stopCtx); err != nil {
			logger.Error("server shutdown", log.FieldError, err)
		}
		cancel()
	}()

	logger.Info("starting hisab server", "port", cfg.Port, "db", cfg.DBPath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-shutdownCtx.Done()
	logger.Info("server stopped")
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
