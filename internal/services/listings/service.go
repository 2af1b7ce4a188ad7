package listings

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pkoziel/ogloszybko/internal/domain/enums"
	"github.com/pkoziel/ogloszybko/internal/domain/model"
	"github.com/pkoziel/ogloszybko/internal/pkg/validate"
	pgrepo "github.com/pkoziel/ogloszybko/internal/repo/postgres"
	"github.com/pkoziel/ogloszybko/internal/services/media"
	"github.com/pkoziel/ogloszybko/internal/services/moderation"
)

const (
	maxTitleLength    = 200
	maxLocationLength = 200

	// A verdict needs both an approved flag and real confidence before a
	// listing goes live without a human look.
	autoApproveConfidence = 0.8

	autoApprovedNote = "Auto-approved by AI"
)

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = pgrepo.ErrListingNotFound
)

type FieldError struct {
	Field   string
	Message string
}

// ValidationError carries per-field violations back to the HTTP layer. It
// unwraps to ErrValidation so callers can branch with errors.Is.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation error: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

type Store interface {
	Create(ctx context.Context, rec pgrepo.CreateListingRecord) (model.Listing, error)
	GetDetails(ctx context.Context, id int64) (model.ListingDetails, error)
	List(ctx context.Context, filter pgrepo.ListingFilter) ([]model.ListingDetails, error)
	UpdateOwned(ctx context.Context, id, userID int64, rec pgrepo.UpdateListingRecord) (model.Listing, error)
	DeleteOwned(ctx context.Context, id, userID int64) error
	IncrementViewCount(ctx context.Context, id int64) error
	AddImage(ctx context.Context, listingID int64, imageURL, altText string, sortOrder int) (model.ListingImage, error)
	ListImages(ctx context.Context, listingID int64) ([]model.ListingImage, error)
}

type CategoryNamer interface {
	GetName(ctx context.Context, id int64) (string, error)
}

// Moderator is the content oracle. Verdicts are returned without an error:
// an unreachable or misbehaving oracle yields a low-confidence rejection
// that routes the listing to manual review.
type Moderator interface {
	CheckText(ctx context.Context, title, description, categoryLabel string, price *string) moderation.Verdict
	CheckImage(ctx context.Context, image []byte) moderation.Verdict
}

type ImageStore interface {
	ValidateImage(contentType string, size int64) error
	UploadListingImage(ctx context.Context, userID int64, fileName, contentType string, body io.Reader, size int64) (media.StoredImage, error)
	DeleteByURL(ctx context.Context, publicURL string) error
}

type ViewRecorder interface {
	InsertView(ctx context.Context, rec pgrepo.ViewRecord) error
}

type Service struct {
	store      Store
	categories CategoryNamer
	moderator  Moderator
	images     ImageStore
	views      ViewRecorder
	log        *zap.Logger
	maxImages  int
	now        func() time.Time
}

type ImageUpload struct {
	FileName    string
	ContentType string
	Data        []byte
}

type SubmitInput struct {
	CategoryID   int64
	Title        string
	Description  string
	Price        *string
	Location     string
	ContactPhone *string
	ContactEmail *string
	Images       []ImageUpload
}

type UpdateInput struct {
	CategoryID   *int64
	Title        *string
	Description  *string
	Price        *string
	Location     *string
	ContactPhone *string
	ContactEmail *string
}

// Submission is the outcome of a publication attempt: the stored listing and
// the verdicts the decision was made from.
type Submission struct {
	Listing      model.Listing
	Images       []model.ListingImage
	Approved     bool
	TextVerdict  moderation.Verdict
	ImageVerdict moderation.ImageVerdict
}

type ListQuery struct {
	CategoryID *int64
	Location   string
	MinPrice   *float64
	MaxPrice   *float64
	Search     string
	Sort       enums.ListingSort
	Limit      int
	Offset     int
}

// ViewContext describes the request that opened a listing page, for the
// analytics trail.
type ViewContext struct {
	UserAgent string
	IPAddress string
	Referrer  string
}

func NewService(store Store, categories CategoryNamer, moderator Moderator, images ImageStore, views ViewRecorder, maxImages int, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if maxImages <= 0 {
		maxImages = 10
	}

	return &Service{
		store:      store,
		categories: categories,
		moderator:  moderator,
		images:     images,
		views:      views,
		log:        log,
		maxImages:  maxImages,
		now:        time.Now,
	}
}

// Submit runs the publication workflow: validate, consult the oracle, then
// persist. The oracle is only called once the input is known to be valid, and
// only the first image is ever checked.
func (s *Service) Submit(ctx context.Context, userID int64, input SubmitInput) (Submission, error) {
	if s.store == nil || s.moderator == nil || s.categories == nil {
		return Submission{}, fmt.Errorf("listings dependencies are not configured")
	}
	if userID <= 0 {
		return Submission{}, ErrValidation
	}

	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	input.Location = strings.TrimSpace(input.Location)

	if err := s.validateSubmit(input); err != nil {
		return Submission{}, err
	}

	categoryLabel, err := s.categories.GetName(ctx, input.CategoryID)
	if errors.Is(err, pgrepo.ErrCategoryNotFound) {
		return Submission{}, &ValidationError{Fields: []FieldError{{Field: "categoryId", Message: "unknown category"}}}
	}
	if err != nil {
		return Submission{}, fmt.Errorf("resolve category: %w", err)
	}

	textVerdict := s.moderator.CheckText(ctx, input.Title, input.Description, categoryLabel, input.Price)

	imageVerdict := moderation.AbsentImage()
	if len(input.Images) > 0 {
		imageVerdict = moderation.CheckedImage(s.moderator.CheckImage(ctx, input.Images[0].Data))
	}

	approved := textVerdict.Approved &&
		imageVerdict.Verdict().Approved &&
		textVerdict.Confidence > autoApproveConfidence &&
		imageVerdict.Verdict().Confidence > autoApproveConfidence

	status := enums.ModerationStatusPending
	notes := reviewNote(textVerdict, imageVerdict.Verdict())
	if approved {
		status = enums.ModerationStatusApproved
		notes = autoApprovedNote
	}

	listing, err := s.store.Create(ctx, pgrepo.CreateListingRecord{
		UserID:           userID,
		CategoryID:       input.CategoryID,
		Title:            input.Title,
		Description:      input.Description,
		Price:            input.Price,
		Location:         input.Location,
		ContactPhone:     input.ContactPhone,
		ContactEmail:     input.ContactEmail,
		IsApproved:       approved,
		ModerationStatus: status,
		ModerationNotes:  notes,
		PublishedNow:     approved,
	})
	if err != nil {
		return Submission{}, fmt.Errorf("create listing: %w", err)
	}

	stored, err := s.attachImages(ctx, userID, listing.ID, input.Title, input.Images)
	if err != nil {
		return Submission{}, err
	}

	return Submission{
		Listing:      listing,
		Images:       stored,
		Approved:     approved,
		TextVerdict:  textVerdict,
		ImageVerdict: imageVerdict,
	}, nil
}

// Edit updates an owned listing and unconditionally sends it back to the
// moderation queue. The edited content is not re-checked by the oracle; a
// human moderator picks it up from pending.
func (s *Service) Edit(ctx context.Context, userID, listingID int64, input UpdateInput) (model.Listing, error) {
	if s.store == nil {
		return model.Listing{}, fmt.Errorf("listings store is nil")
	}
	if userID <= 0 || listingID <= 0 {
		return model.Listing{}, ErrNotFound
	}

	if err := s.validateUpdate(&input); err != nil {
		return model.Listing{}, err
	}

	listing, err := s.store.UpdateOwned(ctx, listingID, userID, pgrepo.UpdateListingRecord{
		CategoryID:   input.CategoryID,
		Title:        input.Title,
		Description:  input.Description,
		Price:        input.Price,
		Location:     input.Location,
		ContactPhone: input.ContactPhone,
		ContactEmail: input.ContactEmail,
	})
	if err != nil {
		return model.Listing{}, err
	}
	return listing, nil
}

// Delete removes an owned listing. Backing image objects are cleaned up best
// effort after the row is gone; a failed object delete never resurrects the
// listing.
func (s *Service) Delete(ctx context.Context, userID, listingID int64) error {
	if s.store == nil {
		return fmt.Errorf("listings store is nil")
	}
	if userID <= 0 || listingID <= 0 {
		return ErrNotFound
	}

	images, err := s.store.ListImages(ctx, listingID)
	if err != nil {
		return fmt.Errorf("list listing images: %w", err)
	}

	if err := s.store.DeleteOwned(ctx, listingID, userID); err != nil {
		return err
	}

	if s.images != nil {
		for _, img := range images {
			if err := s.images.DeleteByURL(ctx, img.ImageURL); err != nil {
				s.log.Warn("delete listing image object",
					zap.Int64("listing_id", listingID),
					zap.String("image_url", img.ImageURL),
					zap.Error(err))
			}
		}
	}

	return nil
}

// Get returns listing details and records the view. The counter increment
// happens inside the database; the analytics row is best effort.
func (s *Service) Get(ctx context.Context, listingID int64, view ViewContext) (model.ListingDetails, error) {
	if s.store == nil {
		return model.ListingDetails{}, fmt.Errorf("listings store is nil")
	}

	details, err := s.store.GetDetails(ctx, listingID)
	if err != nil {
		return model.ListingDetails{}, err
	}

	if err := s.store.IncrementViewCount(ctx, listingID); err != nil {
		s.log.Warn("increment view count", zap.Int64("listing_id", listingID), zap.Error(err))
	} else {
		details.ViewCount++
	}

	if s.views != nil {
		if err := s.views.InsertView(ctx, pgrepo.ViewRecord{
			ListingID: listingID,
			UserAgent: view.UserAgent,
			IPAddress: view.IPAddress,
			Referrer:  view.Referrer,
		}); err != nil {
			s.log.Warn("record listing view", zap.Int64("listing_id", listingID), zap.Error(err))
		}
	}

	return details, nil
}

// List returns the public feed: active, approved listings only.
func (s *Service) List(ctx context.Context, query ListQuery) ([]model.ListingDetails, error) {
	if s.store == nil {
		return nil, fmt.Errorf("listings store is nil")
	}

	return s.store.List(ctx, pgrepo.ListingFilter{
		CategoryID: query.CategoryID,
		Location:   query.Location,
		MinPrice:   query.MinPrice,
		MaxPrice:   query.MaxPrice,
		Search:     query.Search,
		Sort:       query.Sort,
		Limit:      query.Limit,
		Offset:     query.Offset,
	})
}

// ListOwn returns every listing of one user, pending and rejected included.
func (s *Service) ListOwn(ctx context.Context, userID int64) ([]model.ListingDetails, error) {
	if s.store == nil {
		return nil, fmt.Errorf("listings store is nil")
	}
	if userID <= 0 {
		return nil, ErrValidation
	}

	return s.store.List(ctx, pgrepo.ListingFilter{OwnerID: &userID, Limit: 100})
}

func (s *Service) attachImages(ctx context.Context, userID, listingID int64, title string, uploads []ImageUpload) ([]model.ListingImage, error) {
	if len(uploads) == 0 {
		return []model.ListingImage{}, nil
	}
	if s.images == nil {
		return nil, fmt.Errorf("image storage is not configured")
	}

	stored := make([]model.ListingImage, 0, len(uploads))
	for i, upload := range uploads {
		obj, err := s.images.UploadListingImage(ctx, userID, upload.FileName, upload.ContentType,
			bytes.NewReader(upload.Data), int64(len(upload.Data)))
		if err != nil {
			return nil, fmt.Errorf("upload image %d: %w", i+1, err)
		}

		altText := fmt.Sprintf("%s - Image %d", title, i+1)
		image, err := s.store.AddImage(ctx, listingID, obj.URL, altText, i)
		if err != nil {
			return nil, fmt.Errorf("attach image %d: %w", i+1, err)
		}
		stored = append(stored, image)
	}

	return stored, nil
}

func (s *Service) validateSubmit(input SubmitInput) error {
	var fields []FieldError

	if !validate.Required(input.Title) {
		fields = append(fields, FieldError{Field: "title", Message: "title is required"})
	} else if !validate.MaxLen(input.Title, maxTitleLength) {
		fields = append(fields, FieldError{Field: "title", Message: "title is too long"})
	}
	if !validate.Required(input.Description) {
		fields = append(fields, FieldError{Field: "description", Message: "description is required"})
	}
	if input.CategoryID <= 0 {
		fields = append(fields, FieldError{Field: "categoryId", Message: "category is required"})
	}
	if !validate.Required(input.Location) {
		fields = append(fields, FieldError{Field: "location", Message: "location is required"})
	} else if !validate.MaxLen(input.Location, maxLocationLength) {
		fields = append(fields, FieldError{Field: "location", Message: "location is too long"})
	}
	if input.Price != nil && !validate.Price(*input.Price) {
		fields = append(fields, FieldError{Field: "price", Message: "price must be a non-negative number"})
	}
	if len(input.Images) > s.maxImages {
		fields = append(fields, FieldError{Field: "images", Message: fmt.Sprintf("at most %d images allowed", s.maxImages)})
	}
	if s.images != nil {
		for i, img := range input.Images {
			if err := s.images.ValidateImage(img.ContentType, int64(len(img.Data))); err != nil {
				fields = append(fields, FieldError{
					Field:   fmt.Sprintf("images[%d]", i),
					Message: err.Error(),
				})
			}
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (s *Service) validateUpdate(input *UpdateInput) error {
	var fields []FieldError

	if input.Title != nil {
		trimmed := strings.TrimSpace(*input.Title)
		input.Title = &trimmed
		if trimmed == "" {
			fields = append(fields, FieldError{Field: "title", Message: "title cannot be empty"})
		} else if !validate.MaxLen(trimmed, maxTitleLength) {
			fields = append(fields, FieldError{Field: "title", Message: "title is too long"})
		}
	}
	if input.Description != nil && !validate.Required(*input.Description) {
		fields = append(fields, FieldError{Field: "description", Message: "description cannot be empty"})
	}
	if input.CategoryID != nil && *input.CategoryID <= 0 {
		fields = append(fields, FieldError{Field: "categoryId", Message: "invalid category"})
	}
	if input.Location != nil {
		trimmed := strings.TrimSpace(*input.Location)
		input.Location = &trimmed
		if trimmed == "" {
			fields = append(fields, FieldError{Field: "location", Message: "location cannot be empty"})
		} else if !validate.MaxLen(trimmed, maxLocationLength) {
			fields = append(fields, FieldError{Field: "location", Message: "location is too long"})
		}
	}
	if input.Price != nil && !validate.Price(*input.Price) {
		fields = append(fields, FieldError{Field: "price", Message: "price must be a non-negative number"})
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func reviewNote(text, image moderation.Verdict) string {
	return fmt.Sprintf("AI Moderation - Text: %s | Images: %s",
		strings.Join(text.Reasons, ", "), strings.Join(image.Reasons, ", "))
}
