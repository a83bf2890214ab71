// handlers/meeting_handler.go
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gewnthar/agendawatch/logger"
	"github.com/gewnthar/agendawatch/models"
)

const (
	defaultListLimit = 10
	maxListLimit     = 100
)

// MeetingReader is the read-only view of the store served over HTTP.
type MeetingReader interface {
	ListRecent(ctx context.Context, limit int, search string) ([]models.Meeting, error)
	Get(ctx context.Context, id string) (*models.Meeting, error)
	Stats(ctx context.Context) (*models.MeetingStats, error)
	Ping(ctx context.Context) error
}

// MeetingHandler serves the meeting list, detail, stats and health endpoints.
type MeetingHandler struct {
	store MeetingReader
	log   *slog.Logger
}

func NewMeetingHandler(store MeetingReader, log *slog.Logger) *MeetingHandler {
	return &MeetingHandler{store: store, log: logger.OrDiscard(log).With("component", "http")}
}

// ListMeetings handles GET /api/meetings?limit=&q=
func (h *MeetingHandler) ListMeetings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondWithError(w, h.log, http.StatusMethodNotAllowed, "Only GET method is allowed")
		return
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondWithError(w, h.log, http.StatusBadRequest, "Invalid 'limit': must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	meetings, err := h.store.ListRecent(r.Context(), limit, r.URL.Query().Get("q"))
	if err != nil {
		respondWithError(w, h.log, http.StatusInternalServerError, "Failed to list meetings: "+err.Error())
		return
	}
	respondWithJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"meetings": meetings,
		"count":    len(meetings),
	})
}

// GetMeeting handles GET /api/meetings/{id}
func (h *MeetingHandler) GetMeeting(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondWithError(w, h.log, http.StatusMethodNotAllowed, "Only GET method is allowed")
		return
	}

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/meetings/"), "/")
	if id == "" || strings.Contains(id, "/") {
		respondWithError(w, h.log, http.StatusBadRequest, "Invalid path. Expected /api/meetings/{id}")
		return
	}

	meeting, err := h.store.Get(r.Context(), id)
	if errors.Is(err, models.ErrNotFound) {
		respondWithError(w, h.log, http.StatusNotFound, "Meeting '"+id+"' not found")
		return
	}
	if err != nil {
		respondWithError(w, h.log, http.StatusInternalServerError, "Failed to load meeting: "+err.Error())
		return
	}
	respondWithJSON(w, h.log, http.StatusOK, meeting)
}

// Stats handles GET /api/stats
func (h *MeetingHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondWithError(w, h.log, http.StatusMethodNotAllowed, "Only GET method is allowed")
		return
	}

	stats, err := h.store.Stats(r.Context())
	if err != nil {
		respondWithError(w, h.log, http.StatusInternalServerError, "Failed to load stats: "+err.Error())
		return
	}
	respondWithJSON(w, h.log, http.StatusOK, stats)
}

// Health handles GET /api/health
func (h *MeetingHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.log.Error("health check failed: database ping error", "error", err)
		respondWithJSON(w, h.log, http.StatusServiceUnavailable, map[string]string{
			"status":  "error",
			"message": "database connection error",
		})
		return
	}
	respondWithJSON(w, h.log, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "agendawatch is healthy",
	})
}
