package app

import (
	"encoding/json"
	"net/http"

	"gfi-bot/internal/schema"
)

// All API responses share the envelope {"code": <int>, "result": ...}. The
// code mirrors the HTTP status so clients reading only the body see it too.

func writeResult(w http.ResponseWriter, code int, result any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	body := map[string]any{"code": code, "result": result}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeResult(w, code, message)
}

// writeValidationError reports every offending field of a rejected body.
func writeValidationError(w http.ResponseWriter, verr *schema.ValidationError) {
	fields := make([]map[string]any, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		fields = append(fields, map[string]any{
			"field":   f.Path,
			"message": f.Reason,
		})
	}
	writeResult(w, http.StatusBadRequest, fields)
}
