package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/claude/ironlog/internal/importer"
	"github.com/claude/ironlog/internal/storage"
)

const maxImportBytes = 16 << 20

func (s *Server) handleAlphaImport(w http.ResponseWriter, r *http.Request) {
	uid, ok := userIDFromContext(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unidentified user"})
		return
	}
	st, ok := s.store(w, r)
	if !ok {
		return
	}
	dryRun, _ := strconv.ParseBool(r.URL.Query().Get("dry_run"))

	start := time.Now()
	body := http.MaxBytesReader(w, r.Body, maxImportBytes)
	stats, err := importer.New(s.log, dryRun).Import(r.Context(), st, body)
	if !dryRun {
		s.logImport(uid, "alpha", stats, err, int(time.Since(start).Milliseconds()))
	}
	if err != nil {
		s.log.Error("alpha import failed", "error", err)
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, errorBody{Error: err.Error(), State: stats})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleImportLogs(w http.ResponseWriter, r *http.Request) {
	uid, ok := userIDFromContext(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unidentified user"})
		return
	}
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	logs, err := s.importLogs.QueryImportLogs(r.Context(), uid, limit)
	if err != nil {
		s.log.Error("querying import logs", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	if logs == nil {
		logs = []storage.ImportLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}

// logImport records an import's outcome when an import log store is wired.
func (s *Server) logImport(uid int, source string, stats *importer.Stats, importErr error, durationMs int) {
	if s.importLogs == nil {
		return
	}
	entry := storage.ImportLog{
		UserID:     uid,
		Source:     source,
		Status:     "success",
		DurationMs: &durationMs,
	}
	if stats != nil {
		entry.SessionsReceived = stats.SessionsReceived
		entry.WorkoutsCreated = stats.WorkoutsCreated
		entry.SetsImported = stats.SetsImported
	}
	if importErr != nil {
		msg := importErr.Error()
		entry.Status = "error"
		entry.ErrorMessage = &msg
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.importLogs.InsertImportLog(ctx, entry); err != nil {
		s.log.Error("failed to log import", "source", source, "error", err)
	}
}
