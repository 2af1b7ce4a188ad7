package handlers

import (
	"errors"
	"net/http"
	"strconv"

	analyticssvc "github.com/pkoziel/ogloszybko/internal/services/analytics"
	authsvc "github.com/pkoziel/ogloszybko/internal/services/auth"
	"github.com/pkoziel/ogloszybko/internal/transport/http/dto"
	httperrors "github.com/pkoziel/ogloszybko/internal/transport/http/errors"
)

type AnalyticsHandler struct {
	service *analyticssvc.Service
}

func NewAnalyticsHandler(service *analyticssvc.Service) *AnalyticsHandler {
	return &AnalyticsHandler{service: service}
}

func (h *AnalyticsHandler) DailyViews(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "ANALYTICS_UNAVAILABLE", "analytics service is unavailable")
		return
	}

	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	listingID, ok := listingIDParam(w, r, "id")
	if !ok {
		return
	}

	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			days = parsed
		}
	}

	views, err := h.service.DailyViews(r.Context(), identity.UserID, listingID, days)
	if err != nil {
		if errors.Is(err, analyticssvc.ErrNotFound) {
			writeNotFound(w, "LISTING_NOT_FOUND", "listing not found or unauthorized")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to fetch analytics")
		return
	}

	payload := make([]dto.DailyViews, 0, len(views))
	for _, day := range views {
		payload = append(payload, dto.DailyViews{Date: day.Date, Views: day.Views})
	}

	httperrors.Write(w, http.StatusOK, payload)
}
