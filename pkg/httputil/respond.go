// pkg/httputil/respond.go
package httputil

import (
	"encoding/json"
	"net/http"
)

// Envelope is the wire format every admin/doc endpoint answers with.
// The denial shape {"success":false,"error":...} is load-bearing: external
// tooling matches on it, so it must not change.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func WriteJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func Success(w http.ResponseWriter, data any, status int) {
	WriteJSON(w, Envelope{Success: true, Data: data}, status)
}

func Fail(w http.ResponseWriter, msg string, status int) {
	WriteJSON(w, Envelope{Success: false, Error: msg}, status)
}
