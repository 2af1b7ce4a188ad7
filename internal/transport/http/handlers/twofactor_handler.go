package handlers

import (
	"errors"
	"net/http"

	authsvc "github.com/pkoziel/ogloszybko/internal/services/auth"
	twofactorsvc "github.com/pkoziel/ogloszybko/internal/services/twofactor"
	"github.com/pkoziel/ogloszybko/internal/transport/http/dto"
	httperrors "github.com/pkoziel/ogloszybko/internal/transport/http/errors"
)

type TwoFactorHandler struct {
	service *twofactorsvc.Service
}

func NewTwoFactorHandler(service *twofactorsvc.Service) *TwoFactorHandler {
	return &TwoFactorHandler{service: service}
}

func (h *TwoFactorHandler) Setup(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "TWO_FACTOR_UNAVAILABLE", "two factor service is unavailable")
		return
	}

	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	setup, err := h.service.BeginSetup(r.Context(), identity.UserID, "")
	if err != nil {
		handleTwoFactorError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.TwoFactorSetupResponse{
		Secret:     setup.Secret,
		OTPAuthURL: setup.OTPAuthURL,
		QRCode:     setup.QRCode,
	})
}

func (h *TwoFactorHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "TWO_FACTOR_UNAVAILABLE", "two factor service is unavailable")
		return
	}

	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	var req dto.TwoFactorVerifyRequest
	if err := decodeJSON(r, &req); err != nil || req.Token == "" {
		writeBadRequest(w, "INVALID_REQUEST", "token is required")
		return
	}

	if err := h.service.ConfirmSetup(r.Context(), identity.UserID, req.Token); err != nil {
		handleTwoFactorError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.OKResponse{Success: true})
}

func handleTwoFactorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, twofactorsvc.ErrAlreadyEnabled):
		writeBadRequest(w, "TWO_FACTOR_ENABLED", "two factor is already enabled")
	case errors.Is(err, twofactorsvc.ErrNotConfigured):
		writeBadRequest(w, "TWO_FACTOR_NOT_CONFIGURED", "two factor setup not found")
	case errors.Is(err, twofactorsvc.ErrInvalidCode):
		writeBadRequest(w, "INVALID_TOKEN", "invalid token")
	default:
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
	}
}
