package handlers

import (
	"net/http"

	categoriessvc "github.com/pkoziel/ogloszybko/internal/services/categories"
	httperrors "github.com/pkoziel/ogloszybko/internal/transport/http/errors"
)

type CategoriesHandler struct {
	service *categoriessvc.Service
}

func NewCategoriesHandler(service *categoriessvc.Service) *CategoriesHandler {
	return &CategoriesHandler{service: service}
}

func (h *CategoriesHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "CATEGORIES_UNAVAILABLE", "categories service is unavailable")
		return
	}

	categories, err := h.service.List(r.Context())
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to fetch categories")
		return
	}

	httperrors.Write(w, http.StatusOK, categories)
}
