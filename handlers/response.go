// handlers/response.go
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// respondWithJSON writes payload as a JSON response.
func respondWithJSON(w http.ResponseWriter, log *slog.Logger, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error("failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":"Failed to marshal JSON response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// respondWithError writes {"error": message}.
func respondWithError(w http.ResponseWriter, log *slog.Logger, code int, message string) {
	if code >= http.StatusInternalServerError {
		log.Error("API error", "status", code, "message", message)
	} else {
		log.Debug("API error", "status", code, "message", message)
	}
	respondWithJSON(w, log, code, map[string]string{"error": message})
}
