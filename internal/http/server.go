// Package http is presentation glue over the engine: a small JSON API with
// no aggregation, validation or remediation logic of its own.
package http

import (
	"net/http"
	"time"

	"hisab/internal/backup"
	"hisab/internal/log"
	"hisab/internal/services"
	"hisab/internal/storage"
)

// Server wires the engine services behind HTTP handlers.
type Server struct {
	store      *storage.SnapshotStore
	months     *services.MonthService
	remediator *services.Remediator
	reconciler *services.Reconciler
	importer   *backup.Importer
	logger     *log.Logger
	started    time.Time
}

// NewServer configures routes and returns a ready-to-run http.Server.
func NewServer(addr string, store *storage.SnapshotStore, months *services.MonthService,
	remediator *services.Remediator, reconciler *services.Reconciler,
	importer *backup.Importer, logger *log.Logger) *http.Server {

	s := &Server{
		store:      store,
		months:     months,
		remediator: remediator,
		reconciler: reconciler,
		importer:   importer,
		logger:     logger.WithComponent(log.ComponentHTTP),
		started:    time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/api/months/", s.handleMonth)
	mux.HandleFunc("/api/integrity", s.handleIntegrity)
	mux.HandleFunc("/api/ref-errors", s.handleRefErrorScan)
	mux.HandleFunc("/api/ref-errors/fix", s.handleRefErrorFix)
	mux.HandleFunc("/api/overrides", s.handleOverrides)
	mux.HandleFunc("/api/balances/sync", s.handleBalanceSync)
	mux.HandleFunc("/api/backup/import", s.handleBackupImport)

	handler := log.Middleware(s.logger)(s.withRequestLogging(mux))

	return &http.Server{
		Addr:           addr,
		Handler:        handler,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}
}
