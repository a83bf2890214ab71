// handlers/admin_handler.go
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gewnthar/agendawatch/logger"
	"github.com/gewnthar/agendawatch/services"
)

// CycleRunner runs one discovery-through-notification cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) (*services.CycleReport, error)
}

// AdminHandler triggers run cycles on demand.
type AdminHandler struct {
	runner CycleRunner
	log    *slog.Logger
}

func NewAdminHandler(runner CycleRunner, log *slog.Logger) *AdminHandler {
	return &AdminHandler{runner: runner, log: logger.OrDiscard(log).With("component", "http")}
}

// RunCycle handles POST /api/admin/run-cycle. It responds 409 while another
// cycle is running and 502 when the listing page could not be fetched.
func (h *AdminHandler) RunCycle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondWithError(w, h.log, http.StatusMethodNotAllowed, "Only POST method is allowed")
		return
	}

	report, err := h.runner.RunCycle(r.Context())
	switch {
	case errors.Is(err, services.ErrCycleInProgress):
		respondWithError(w, h.log, http.StatusConflict, "A run cycle is already in progress")
	case err != nil && report != nil:
		h.log.Error("run cycle aborted", "run_id", report.Run.RunID, "error", err)
		respondWithJSON(w, h.log, http.StatusBadGateway, map[string]interface{}{
			"error":  err.Error(),
			"report": report,
		})
	case err != nil:
		respondWithError(w, h.log, http.StatusInternalServerError, "Run cycle failed: "+err.Error())
	default:
		respondWithJSON(w, h.log, http.StatusOK, report)
	}
}
