package http

import (
	"io"
	"net/http"
	"strings"
	"time"

	"hisab/internal/core"
	"hisab/internal/log"
	"hisab/internal/services"
)

// handleHealth performs a basic liveness check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).String(),
	})
}

// handleReady checks that storage answers before reporting ready.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, _, err := s.store.SchemaVersion(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"checks": map[string]string{"storage": err.Error()},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
		"checks": map[string]string{"storage": "ok"},
	})
}

// handleMonth serves GET /api/months/{YYYY-MM}: the aggregated month plus
// its bucket totals.
func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/api/months/")
	monthID, err := core.ParseMonthID(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid month id, expected YYYY-MM")
		return
	}

	month, err := s.months.Month(r.Context(), monthID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "aggregate month", log.FieldMonth, monthID, log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to build month")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"month":  month,
		"totals": core.CalculateBucketTotals(month),
	})
}

// handleIntegrity serves the read-only validation report.
func (s *Server) handleIntegrity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	snap, err := s.store.LoadSnapshot(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "load snapshot", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to load data")
		return
	}

	writeJSON(w, http.StatusOK, services.ValidateSnapshot(snap, core.DateOf(time.Now())))
}

func (s *Server) handleRefErrorScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	result, err := s.remediator.ScanRefErrors(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "ref-error scan", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "scan failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type fixRequest struct {
	Issues                      []core.RefErrorIssue `json:"issues"`
	DryRun                      bool                 `json:"dryRun"`
	ApplyOverridesForNonFixable bool                 `json:"applyOverridesForNonFixable"`
}

// handleRefErrorFix applies fixes for previously scanned issues. When the
// request carries no issue list, a fresh scan supplies it.
func (s *Server) handleRefErrorFix(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req fixRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if len(req.Issues) == 0 {
		scan, err := s.remediator.ScanRefErrors(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "scan failed")
			return
		}
		req.Issues = scan.Issues
	}

	result, err := s.remediator.ApplyRefErrorFixes(r.Context(), req.Issues, req.DryRun, req.ApplyOverridesForNonFixable)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "apply fixes", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "fix failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type overrideRequest struct {
	MonthID   string  `json:"monthId"`
	AccountID string  `json:"accountId"`
	Amount    *string `json:"amount"`
}

// handleOverrides sets (POST) or clears (DELETE) a remaining-cash override.
func (s *Server) handleOverrides(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req overrideRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	monthID, err := core.ParseMonthID(req.MonthID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid month id")
		return
	}
	if strings.TrimSpace(req.AccountID) == "" {
		writeError(w, http.StatusBadRequest, "accountId required")
		return
	}

	if r.Method == http.MethodDelete {
		if err := s.remediator.ClearRemainingCashOverride(r.Context(), monthID, req.AccountID); err != nil {
			writeError(w, http.StatusInternalServerError, "clear override failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
		return
	}

	if req.Amount == nil {
		writeError(w, http.StatusBadRequest, "amount required")
		return
	}
	amount, err := core.ParseAmount(*req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	if err := s.remediator.SetRemainingCashOverride(r.Context(), monthID, req.AccountID, amount); err != nil {
		writeError(w, http.StatusInternalServerError, "set override failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "set"})
}

func (s *Server) handleBalanceSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	results, err := s.reconciler.SyncAccountBalances(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "balance sync", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "sync failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// handleBackupImport accepts a backup document body; ?replace=true swaps
// collections wholesale instead of merging.
func (s *Server) handleBackupImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 32<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body failed")
		return
	}
	replaceMode := r.URL.Query().Get("replace") == "true"

	result, err := s.importer.Import(r.Context(), body, replaceMode)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "backup import", log.FieldError, err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}
