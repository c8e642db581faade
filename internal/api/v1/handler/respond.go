package handler

import (
	"encoding/json"
	"net/http"
)

// errorBody is the JSON error shape for billing and account endpoints.
type errorBody struct {
	Error            string `json:"error"`
	Details          string `json:"details,omitempty"`
	AccountSuspended bool   `json:"accountSuspended,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, errorBody{Error: msg, Details: details})
}
