package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	authsvc "github.com/pkoziel/ogloszybko/internal/services/auth"
	favoritessvc "github.com/pkoziel/ogloszybko/internal/services/favorites"
	"github.com/pkoziel/ogloszybko/internal/transport/http/dto"
	httperrors "github.com/pkoziel/ogloszybko/internal/transport/http/errors"
)

type FavoritesHandler struct {
	service *favoritessvc.Service
}

func NewFavoritesHandler(service *favoritessvc.Service) *FavoritesHandler {
	return &FavoritesHandler{service: service}
}

func (h *FavoritesHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "FAVORITES_UNAVAILABLE", "favorites service is unavailable")
		return
	}

	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	listingID, err := strconv.ParseInt(chi.URLParam(r, "listingID"), 10, 64)
	if err != nil || listingID <= 0 {
		writeBadRequest(w, "INVALID_REQUEST", "invalid listing id")
		return
	}

	favorited, err := h.service.Toggle(r.Context(), identity.UserID, listingID)
	if err != nil {
		if errors.Is(err, favoritessvc.ErrValidation) {
			writeBadRequest(w, "VALIDATION_ERROR", "invalid favorite request")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to toggle favorite")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.FavoriteToggleResponse{Favorited: favorited})
}

func (h *FavoritesHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "FAVORITES_UNAVAILABLE", "favorites service is unavailable")
		return
	}

	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	items, err := h.service.List(r.Context(), identity.UserID)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to fetch favorites")
		return
	}

	httperrors.Write(w, http.StatusOK, items)
}
