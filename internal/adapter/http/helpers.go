package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type statusResponse struct {
	Status string `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	writeJSON(w, code, statusResponse{Status: status})
}
