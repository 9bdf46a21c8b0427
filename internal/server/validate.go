package server

import (
	"encoding/json"
	"net/http"
)

// FieldViolation describes one invalid request field.
type FieldViolation struct {
	Field       string `json:"field"`
	Description string `json:"description"`
}

// apiError is the JSON error envelope returned by every handler.
type apiError struct {
	Error      string           `json:"error"`
	Stderr     string           `json:"stderr,omitempty"`
	Violations []FieldViolation `json:"violations,omitempty"`
}

func addViolation(violations *[]FieldViolation, field, desc string) {
	*violations = append(*violations, FieldViolation{Field: field, Description: desc})
}

// writeViolations reports accumulated field violations as a 400, or does
// nothing and returns false when there are none.
func writeViolations(w http.ResponseWriter, violations []FieldViolation) bool {
	if len(violations) == 0 {
		return false
	}
	writeJSON(w, http.StatusBadRequest, apiError{
		Error:      "validation failed",
		Violations: violations,
	})
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiError{Error: msg})
}
