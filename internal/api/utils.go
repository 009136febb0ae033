package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// timestampLayout is RFC 3339 in UTC with millisecond precision
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

type ErrorResponse struct {
	Error string `json:"error"`
}

func timestamp() string {
	return time.Now().UTC().Format(timestampLayout)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
