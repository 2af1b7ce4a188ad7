package errors

import (
	"encoding/json"
	"net/http"
)

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationError struct {
	Code    string           `json:"code"`
	Message string           `json:"message"`
	Errors  []FieldViolation `json:"errors,omitempty"`
}

type RateLimitError struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	RetryAfterSec int64  `json:"retry_after_sec"`
}

func Write(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
