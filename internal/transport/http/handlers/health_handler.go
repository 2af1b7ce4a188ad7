package handlers

import (
	"net/http"

	httperrors "github.com/pkoziel/ogloszybko/internal/transport/http/errors"
)

type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, _ *http.Request) {
	httperrors.Write(w, http.StatusOK, map[string]string{"status": "ok"})
}
