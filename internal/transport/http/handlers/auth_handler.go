package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	authsvc "github.com/pkoziel/ogloszybko/internal/services/auth"
	"github.com/pkoziel/ogloszybko/internal/transport/http/dto"
	httperrors "github.com/pkoziel/ogloszybko/internal/transport/http/errors"
)

type AuthHandler struct {
	service *authsvc.Service
}

func NewAuthHandler(service *authsvc.Service) *AuthHandler {
	return &AuthHandler{service: service}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "AUTH_SERVICE_UNAVAILABLE", "auth service is unavailable")
		return
	}

	var req dto.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	user, err := h.service.Register(r.Context(), req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		handleAuthError(w, err)
		return
	}

	httperrors.Write(w, http.StatusCreated, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "AUTH_SERVICE_UNAVAILABLE", "auth service is unavailable")
		return
	}

	var req dto.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	session, err := h.service.Login(r.Context(), req.Email, req.Password, req.TOTPCode)
	if err != nil {
		handleAuthError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.SessionResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      session.User,
	})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "AUTH_SERVICE_UNAVAILABLE", "auth service is unavailable")
		return
	}

	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	user, err := h.service.GetUser(r.Context(), identity.UserID)
	if err != nil {
		handleAuthError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, user)
}

func handleAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, authsvc.ErrInvalidInput):
		writeBadRequest(w, "INVALID_REQUEST", "request validation failed")
	case errors.Is(err, authsvc.ErrEmailTaken):
		httperrors.Write(w, http.StatusConflict, httperrors.APIError{
			Code:    "EMAIL_TAKEN",
			Message: "email is already registered",
		})
	case errors.Is(err, authsvc.ErrTwoFactorRequired):
		writeUnauthorized(w, "TWO_FACTOR_REQUIRED", "two factor code required")
	case errors.Is(err, authsvc.ErrUnauthorized):
		writeUnauthorized(w, "UNAUTHORIZED", "authentication failed")
	default:
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
	}
}

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeBadRequest(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusBadRequest, httperrors.APIError{Code: code, Message: message})
}

func writeUnauthorized(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{Code: code, Message: message})
}

func writeNotFound(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusNotFound, httperrors.APIError{Code: code, Message: message})
}

func writeInternal(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{Code: code, Message: message})
}
