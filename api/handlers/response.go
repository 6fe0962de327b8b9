package handlers

import (
	"encoding/json"
	"net/http"
)

const (
	headerContentType = "Content-Type"
	applicationJSON   = "application/json"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(headerContentType, applicationJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// MessageResponse is the body of responses that only carry a message.
type MessageResponse struct {
	Message string `json:"message"`
}
