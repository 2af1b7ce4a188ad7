package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pkoziel/ogloszybko/internal/domain/enums"
	authsvc "github.com/pkoziel/ogloszybko/internal/services/auth"
	listingssvc "github.com/pkoziel/ogloszybko/internal/services/listings"
	"github.com/pkoziel/ogloszybko/internal/services/moderation"
	"github.com/pkoziel/ogloszybko/internal/transport/http/dto"
	httperrors "github.com/pkoziel/ogloszybko/internal/transport/http/errors"
)

const maxMultipartMemory = 32 << 20

type ListingsHandler struct {
	service      *listingssvc.Service
	maxImageSize int64
}

func NewListingsHandler(service *listingssvc.Service, maxImageSize int64) *ListingsHandler {
	if maxImageSize <= 0 {
		maxImageSize = 5 << 20
	}
	return &ListingsHandler{service: service, maxImageSize: maxImageSize}
}

func (h *ListingsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "LISTINGS_UNAVAILABLE", "listings service is unavailable")
		return
	}

	query := listingssvc.ListQuery{
		Location: r.URL.Query().Get("location"),
		Search:   r.URL.Query().Get("search"),
		Sort:     enums.ParseListingSort(r.URL.Query().Get("sortBy")),
	}
	if raw := r.URL.Query().Get("categoryId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeBadRequest(w, "INVALID_REQUEST", "invalid categoryId")
			return
		}
		query.CategoryID = &id
	}
	if raw := r.URL.Query().Get("minPrice"); raw != "" {
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeBadRequest(w, "INVALID_REQUEST", "invalid minPrice")
			return
		}
		query.MinPrice = &price
	}
	if raw := r.URL.Query().Get("maxPrice"); raw != "" {
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeBadRequest(w, "INVALID_REQUEST", "invalid maxPrice")
			return
		}
		query.MaxPrice = &price
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			query.Limit = limit
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if offset, err := strconv.Atoi(raw); err == nil {
			query.Offset = offset
		}
	}

	items, err := h.service.List(r.Context(), query)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to fetch listings")
		return
	}

	httperrors.Write(w, http.StatusOK, items)
}

func (h *ListingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "LISTINGS_UNAVAILABLE", "listings service is unavailable")
		return
	}

	listingID, ok := listingIDParam(w, r, "id")
	if !ok {
		return
	}

	details, err := h.service.Get(r.Context(), listingID, listingssvc.ViewContext{
		UserAgent: r.UserAgent(),
		IPAddress: clientIP(r),
		Referrer:  r.Referer(),
	})
	if err != nil {
		handleListingError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, details)
}

func (h *ListingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "LISTINGS_UNAVAILABLE", "listings service is unavailable")
		return
	}

	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid multipart form")
		return
	}

	input := listingssvc.SubmitInput{
		Title:        r.FormValue("title"),
		Description:  r.FormValue("description"),
		Location:     r.FormValue("location"),
		Price:        optionalFormValue(r, "price"),
		ContactPhone: optionalFormValue(r, "contactPhone"),
		ContactEmail: optionalFormValue(r, "contactEmail"),
	}
	if raw := r.FormValue("categoryId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeBadRequest(w, "INVALID_REQUEST", "invalid categoryId")
			return
		}
		input.CategoryID = id
	}

	images, err := h.readImages(r)
	if err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "failed to read uploaded images")
		return
	}
	input.Images = images

	result, err := h.service.Submit(r.Context(), identity.UserID, input)
	if err != nil {
		handleListingError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.SubmitListingResponse{
		Listing: result.Listing,
		Images:  result.Images,
		Moderation: dto.ModerationResult{
			Approved:        result.Approved,
			TextModeration:  verdictPayload(result.TextVerdict),
			ImageModeration: verdictPayload(result.ImageVerdict.Verdict()),
		},
	})
}

func (h *ListingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "LISTINGS_UNAVAILABLE", "listings service is unavailable")
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

	var req dto.UpdateListingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	listing, err := h.service.Edit(r.Context(), identity.UserID, listingID, listingssvc.UpdateInput{
		CategoryID:   req.CategoryID,
		Title:        req.Title,
		Description:  req.Description,
		Price:        req.Price,
		Location:     req.Location,
		ContactPhone: req.ContactPhone,
		ContactEmail: req.ContactEmail,
	})
	if err != nil {
		handleListingError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, listing)
}

func (h *ListingsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "LISTINGS_UNAVAILABLE", "listings service is unavailable")
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

	if err := h.service.Delete(r.Context(), identity.UserID, listingID); err != nil {
		handleListingError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.OKResponse{Success: true})
}

func (h *ListingsHandler) My(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "LISTINGS_UNAVAILABLE", "listings service is unavailable")
		return
	}

	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	items, err := h.service.ListOwn(r.Context(), identity.UserID)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to fetch your listings")
		return
	}

	httperrors.Write(w, http.StatusOK, items)
}

func (h *ListingsHandler) readImages(r *http.Request) ([]listingssvc.ImageUpload, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}

	files := r.MultipartForm.File["images"]
	images := make([]listingssvc.ImageUpload, 0, len(files))
	for _, header := range files {
		file, err := header.Open()
		if err != nil {
			return nil, err
		}

		// One byte past the limit is enough for validation to flag the file.
		data, err := io.ReadAll(io.LimitReader(file, h.maxImageSize+1))
		_ = file.Close()
		if err != nil {
			return nil, err
		}

		images = append(images, listingssvc.ImageUpload{
			FileName:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	return images, nil
}

func handleListingError(w http.ResponseWriter, err error) {
	var verr *listingssvc.ValidationError
	switch {
	case errors.As(err, &verr):
		violations := make([]httperrors.FieldViolation, 0, len(verr.Fields))
		for _, f := range verr.Fields {
			violations = append(violations, httperrors.FieldViolation{Field: f.Field, Message: f.Message})
		}
		httperrors.Write(w, http.StatusBadRequest, httperrors.ValidationError{
			Code:    "VALIDATION_ERROR",
			Message: "invalid listing data",
			Errors:  violations,
		})
	case errors.Is(err, listingssvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid listing data")
	case errors.Is(err, listingssvc.ErrNotFound):
		writeNotFound(w, "LISTING_NOT_FOUND", "listing not found or unauthorized")
	default:
		writeInternal(w, "INTERNAL_ERROR", "failed to process listing")
	}
}

func verdictPayload(v moderation.Verdict) dto.VerdictPayload {
	reasons := v.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	return dto.VerdictPayload{
		Approved:   v.Approved,
		Confidence: v.Confidence,
		Reasons:    reasons,
		Category:   v.Category,
	}
}

func listingIDParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeBadRequest(w, "INVALID_REQUEST", "invalid listing id")
		return 0, false
	}
	return id, true
}

func optionalFormValue(r *http.Request, name string) *string {
	value := strings.TrimSpace(r.FormValue(name))
	if value == "" {
		return nil
	}
	return &value
}

func clientIP(r *http.Request) string {
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx > 0 && !strings.HasSuffix(host, "]") {
		host = host[:idx]
	}
	return strings.Trim(host, "[]")
}
