package listings

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/pkoziel/ogloszybko/internal/domain/enums"
	"github.com/pkoziel/ogloszybko/internal/domain/model"
	pgrepo "github.com/pkoziel/ogloszybko/internal/repo/postgres"
	"github.com/pkoziel/ogloszybko/internal/services/media"
	"github.com/pkoziel/ogloszybko/internal/services/moderation"
)

type fakeStore struct {
	mu       sync.Mutex
	nextID   int64
	listings map[int64]model.Listing
	images   map[int64][]model.ListingImage
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nextID:   1,
		listings: map[int64]model.Listing{},
		images:   map[int64][]model.ListingImage{},
	}
}

func (f *fakeStore) Create(_ context.Context, rec pgrepo.CreateListingRecord) (model.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	listing := model.Listing{
		ID:               f.nextID,
		UserID:           rec.UserID,
		CategoryID:       rec.CategoryID,
		Title:            rec.Title,
		Description:      rec.Description,
		Price:            rec.Price,
		Location:         rec.Location,
		ContactPhone:     rec.ContactPhone,
		ContactEmail:     rec.ContactEmail,
		IsActive:         true,
		IsApproved:       rec.IsApproved,
		ModerationStatus: rec.ModerationStatus,
		ModerationNotes:  &rec.ModerationNotes,
	}
	if rec.PublishedNow {
		now := listing.CreatedAt
		listing.PublishedAt = &now
	}
	f.nextID++
	f.listings[listing.ID] = listing
	return listing, nil
}

func (f *fakeStore) GetDetails(_ context.Context, id int64) (model.ListingDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	listing, ok := f.listings[id]
	if !ok {
		return model.ListingDetails{}, pgrepo.ErrListingNotFound
	}
	return model.ListingDetails{Listing: listing, Images: f.images[id]}, nil
}

func (f *fakeStore) List(_ context.Context, filter pgrepo.ListingFilter) ([]model.ListingDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	items := make([]model.ListingDetails, 0)
	for _, listing := range f.listings {
		if filter.OwnerID != nil {
			if listing.UserID != *filter.OwnerID {
				continue
			}
		} else if !listing.IsActive || !listing.IsApproved {
			continue
		}
		items = append(items, model.ListingDetails{Listing: listing})
	}
	return items, nil
}

func (f *fakeStore) UpdateOwned(_ context.Context, id, userID int64, rec pgrepo.UpdateListingRecord) (model.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	listing, ok := f.listings[id]
	if !ok || listing.UserID != userID {
		return model.Listing{}, pgrepo.ErrListingNotFound
	}

	if rec.CategoryID != nil {
		listing.CategoryID = *rec.CategoryID
	}
	if rec.Title != nil {
		listing.Title = *rec.Title
	}
	if rec.Description != nil {
		listing.Description = *rec.Description
	}
	if rec.Price != nil {
		listing.Price = rec.Price
	}
	if rec.Location != nil {
		listing.Location = *rec.Location
	}
	listing.IsApproved = false
	listing.ModerationStatus = enums.ModerationStatusPending
	listing.PublishedAt = nil

	f.listings[id] = listing
	return listing, nil
}

func (f *fakeStore) DeleteOwned(_ context.Context, id, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	listing, ok := f.listings[id]
	if !ok || listing.UserID != userID {
		return pgrepo.ErrListingNotFound
	}
	delete(f.listings, id)
	delete(f.images, id)
	return nil
}

func (f *fakeStore) IncrementViewCount(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	listing, ok := f.listings[id]
	if !ok {
		return pgrepo.ErrListingNotFound
	}
	listing.ViewCount++
	f.listings[id] = listing
	return nil
}

func (f *fakeStore) AddImage(_ context.Context, listingID int64, imageURL, altText string, sortOrder int) (model.ListingImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	image := model.ListingImage{
		ID:        int64(len(f.images[listingID]) + 1),
		ListingID: listingID,
		ImageURL:  imageURL,
		AltText:   altText,
		SortOrder: sortOrder,
	}
	f.images[listingID] = append(f.images[listingID], image)
	return image, nil
}

func (f *fakeStore) ListImages(_ context.Context, listingID int64) ([]model.ListingImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.ListingImage{}, f.images[listingID]...), nil
}

type fakeCategories struct {
	names map[int64]string
}

func (f *fakeCategories) GetName(_ context.Context, id int64) (string, error) {
	name, ok := f.names[id]
	if !ok {
		return "", pgrepo.ErrCategoryNotFound
	}
	return name, nil
}

type fakeModerator struct {
	textVerdict  moderation.Verdict
	imageVerdict moderation.Verdict
	textCalls    int
	imageCalls   int
	lastImage    []byte
}

func (f *fakeModerator) CheckText(_ context.Context, _, _, _ string, _ *string) moderation.Verdict {
	f.textCalls++
	return f.textVerdict
}

func (f *fakeModerator) CheckImage(_ context.Context, image []byte) moderation.Verdict {
	f.imageCalls++
	f.lastImage = image
	return f.imageVerdict
}

type fakeImages struct {
	maxSize int64
	uploads int
	deleted []string
	failPut bool
}

func (f *fakeImages) ValidateImage(contentType string, size int64) error {
	if size <= 0 || !strings.HasPrefix(contentType, "image/") {
		return media.ErrInvalidImage
	}
	if f.maxSize > 0 && size > f.maxSize {
		return media.ErrImageTooLarge
	}
	return nil
}

func (f *fakeImages) UploadListingImage(_ context.Context, userID int64, fileName, _ string, _ io.Reader, _ int64) (media.StoredImage, error) {
	if f.failPut {
		return media.StoredImage{}, fmt.Errorf("storage down")
	}
	f.uploads++
	key := fmt.Sprintf("listings/%d/%d_%s", userID, f.uploads, fileName)
	return media.StoredImage{Key: key, URL: "https://cdn.test/bucket/" + key}, nil
}

func (f *fakeImages) DeleteByURL(_ context.Context, publicURL string) error {
	f.deleted = append(f.deleted, publicURL)
	return nil
}

type fakeViews struct {
	mu      sync.Mutex
	records []pgrepo.ViewRecord
	fail    bool
}

func (f *fakeViews) InsertView(_ context.Context, rec pgrepo.ViewRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return fmt.Errorf("analytics down")
	}
	f.records = append(f.records, rec)
	return nil
}

func approvedVerdict(confidence float64) moderation.Verdict {
	return moderation.Verdict{Approved: true, Confidence: confidence, Reasons: []string{}, Category: moderation.CategoryAppropriate}
}

func rejectedVerdict(confidence float64, reason string) moderation.Verdict {
	return moderation.Verdict{Approved: false, Confidence: confidence, Reasons: []string{reason}, Category: "prohibited_items"}
}

func newTestService(store *fakeStore, mod *fakeModerator, imgs *fakeImages, views *fakeViews) *Service {
	categories := &fakeCategories{names: map[int64]string{1: "Elektronika"}}
	return NewService(store, categories, mod, imgs, views, 10, nil)
}

func validInput() SubmitInput {
	price := "150.00"
	return SubmitInput{
		CategoryID:  1,
		Title:       "Rower górski",
		Description: "Prawie nowy rower górski, mało używany.",
		Price:       &price,
		Location:    "Kraków",
	}
}

func jpeg(n int) ImageUpload {
	return ImageUpload{
		FileName:    fmt.Sprintf("photo-%d.jpg", n),
		ContentType: "image/jpeg",
		Data:        []byte(fmt.Sprintf("jpeg-bytes-%d", n)),
	}
}

func TestSubmitAutoApproves(t *testing.T) {
	store := newFakeStore()
	mod := &fakeModerator{textVerdict: approvedVerdict(0.95), imageVerdict: approvedVerdict(0.9)}
	svc := newTestService(store, mod, &fakeImages{}, nil)

	input := validInput()
	input.Images = []ImageUpload{jpeg(1)}

	result, err := svc.Submit(context.Background(), 42, input)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if !result.Approved {
		t.Fatalf("expected auto-approval")
	}
	listing := result.Listing
	if !listing.IsApproved || listing.ModerationStatus != enums.ModerationStatusApproved {
		t.Fatalf("unexpected moderation state: approved=%v status=%s", listing.IsApproved, listing.ModerationStatus)
	}
	if listing.PublishedAt == nil {
		t.Fatalf("approved listing must carry a publication timestamp")
	}
	if listing.ModerationNotes == nil || *listing.ModerationNotes != "Auto-approved by AI" {
		t.Fatalf("unexpected moderation notes: %v", listing.ModerationNotes)
	}
}

func TestSubmitBorderlineConfidenceStaysPending(t *testing.T) {
	// 0.8 exactly is not enough: the threshold is strict.
	store := newFakeStore()
	mod := &fakeModerator{textVerdict: approvedVerdict(0.8), imageVerdict: approvedVerdict(1)}
	svc := newTestService(store, mod, &fakeImages{}, nil)

	result, err := svc.Submit(context.Background(), 42, validInput())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if result.Approved {
		t.Fatalf("confidence of exactly 0.8 must not auto-approve")
	}
	if result.Listing.ModerationStatus != enums.ModerationStatusPending {
		t.Fatalf("expected pending status, got %s", result.Listing.ModerationStatus)
	}
	if result.Listing.PublishedAt != nil {
		t.Fatalf("pending listing must not be published")
	}
}

func TestSubmitWithoutImagesNeverBlocksOnImage(t *testing.T) {
	store := newFakeStore()
	mod := &fakeModerator{textVerdict: approvedVerdict(0.95)}
	svc := newTestService(store, mod, &fakeImages{}, nil)

	result, err := svc.Submit(context.Background(), 42, validInput())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if !result.Approved {
		t.Fatalf("text-only submission with a clean verdict must auto-approve")
	}
	if result.ImageVerdict.Present() {
		t.Fatalf("no image was submitted, verdict must be absent")
	}
	if mod.imageCalls != 0 {
		t.Fatalf("oracle image check must not run without images, got %d calls", mod.imageCalls)
	}
}

func TestSubmitRejectedImageBlocksApproval(t *testing.T) {
	store := newFakeStore()
	mod := &fakeModerator{
		textVerdict:  approvedVerdict(0.95),
		imageVerdict: rejectedVerdict(0.9, "weapon visible in photo"),
	}
	svc := newTestService(store, mod, &fakeImages{}, nil)

	input := validInput()
	input.Images = []ImageUpload{jpeg(1)}

	result, err := svc.Submit(context.Background(), 42, input)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if result.Approved {
		t.Fatalf("rejected image must block auto-approval")
	}
	notes := *result.Listing.ModerationNotes
	if !strings.Contains(notes, "weapon visible in photo") {
		t.Fatalf("image reasons missing from notes: %q", notes)
	}
	if !strings.HasPrefix(notes, "AI Moderation - Text: ") {
		t.Fatalf("unexpected notes format: %q", notes)
	}
}

func TestSubmitModeratesOnlyFirstImage(t *testing.T) {
	store := newFakeStore()
	mod := &fakeModerator{textVerdict: approvedVerdict(0.95), imageVerdict: approvedVerdict(0.9)}
	svc := newTestService(store, mod, &fakeImages{}, nil)

	input := validInput()
	for i := 1; i <= 5; i++ {
		input.Images = append(input.Images, jpeg(i))
	}

	result, err := svc.Submit(context.Background(), 42, input)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if mod.imageCalls != 1 {
		t.Fatalf("only the first image goes to the oracle, got %d calls", mod.imageCalls)
	}
	if string(mod.lastImage) != "jpeg-bytes-1" {
		t.Fatalf("oracle saw the wrong image: %q", mod.lastImage)
	}

	if len(result.Images) != 5 {
		t.Fatalf("all uploaded images must be attached, got %d", len(result.Images))
	}
	for i, image := range result.Images {
		wantAlt := fmt.Sprintf("Rower górski - Image %d", i+1)
		if image.AltText != wantAlt {
			t.Fatalf("image %d alt text = %q, want %q", i, image.AltText, wantAlt)
		}
		if image.SortOrder != i {
			t.Fatalf("image %d sort order = %d", i, image.SortOrder)
		}
	}
}

func TestSubmitValidationRunsBeforeOracle(t *testing.T) {
	store := newFakeStore()
	mod := &fakeModerator{textVerdict: approvedVerdict(0.95)}
	svc := newTestService(store, mod, &fakeImages{maxSize: 16}, nil)

	cases := []struct {
		name   string
		mutate func(*SubmitInput)
		field  string
	}{
		{"missing title", func(in *SubmitInput) { in.Title = "  " }, "title"},
		{"missing description", func(in *SubmitInput) { in.Description = "" }, "description"},
		{"missing location", func(in *SubmitInput) { in.Location = "" }, "location"},
		{"bad price", func(in *SubmitInput) { bad := "-5"; in.Price = &bad }, "price"},
		{"title too long", func(in *SubmitInput) { in.Title = strings.Repeat("a", 201) }, "title"},
		{"oversized image", func(in *SubmitInput) {
			in.Images = []ImageUpload{{FileName: "a.jpg", ContentType: "image/jpeg", Data: make([]byte, 17)}}
		}, "images[0]"},
		{"too many images", func(in *SubmitInput) {
			for i := 0; i < 11; i++ {
				in.Images = append(in.Images, jpeg(i))
			}
		}, "images"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := validInput()
			tc.mutate(&input)

			_, err := svc.Submit(context.Background(), 42, input)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			found := false
			for _, f := range verr.Fields {
				if f.Field == tc.field {
					found = true
				}
			}
			if !found {
				t.Fatalf("violation for %q missing in %+v", tc.field, verr.Fields)
			}
		})
	}

	if mod.textCalls != 0 || mod.imageCalls != 0 {
		t.Fatalf("oracle must not be consulted for invalid input: text=%d image=%d", mod.textCalls, mod.imageCalls)
	}
	if len(store.listings) != 0 {
		t.Fatalf("invalid input must not create listings")
	}
}

func TestSubmitUnknownCategory(t *testing.T) {
	store := newFakeStore()
	mod := &fakeModerator{textVerdict: approvedVerdict(0.95)}
	svc := newTestService(store, mod, &fakeImages{}, nil)

	input := validInput()
	input.CategoryID = 999

	_, err := svc.Submit(context.Background(), 42, input)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for unknown category, got %v", err)
	}
	if mod.textCalls != 0 {
		t.Fatalf("oracle must not run for an unknown category")
	}
}

func TestSubmitOracleFailureRoutesToManualReview(t *testing.T) {
	store := newFakeStore()
	mod := &fakeModerator{textVerdict: moderation.ErrorVerdict("API error - requires manual review")}
	svc := newTestService(store, mod, &fakeImages{}, nil)

	result, err := svc.Submit(context.Background(), 42, validInput())
	if err != nil {
		t.Fatalf("an oracle failure must not fail the submission: %v", err)
	}

	if result.Approved {
		t.Fatalf("oracle failure must fail closed")
	}
	if result.Listing.ModerationStatus != enums.ModerationStatusPending {
		t.Fatalf("expected pending, got %s", result.Listing.ModerationStatus)
	}
	if !strings.Contains(*result.Listing.ModerationNotes, "API error - requires manual review") {
		t.Fatalf("failure reason missing from notes: %q", *result.Listing.ModerationNotes)
	}
}

func TestEditResetsModerationWithoutOracle(t *testing.T) {
	store := newFakeStore()
	mod := &fakeModerator{textVerdict: approvedVerdict(0.95)}
	svc := newTestService(store, mod, &fakeImages{}, nil)

	submitted, err := svc.Submit(context.Background(), 42, validInput())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !submitted.Approved {
		t.Fatalf("fixture listing should start approved")
	}
	oracleCallsAfterSubmit := mod.textCalls

	newTitle := "Rower górski - obniżona cena"
	updated, err := svc.Edit(context.Background(), 42, submitted.Listing.ID, UpdateInput{Title: &newTitle})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}

	if updated.Title != newTitle {
		t.Fatalf("title not updated: %q", updated.Title)
	}
	if updated.IsApproved || updated.ModerationStatus != enums.ModerationStatusPending {
		t.Fatalf("edit must reset moderation: approved=%v status=%s", updated.IsApproved, updated.ModerationStatus)
	}
	if updated.PublishedAt != nil {
		t.Fatalf("edited listing must be unpublished")
	}
	if mod.textCalls != oracleCallsAfterSubmit {
		t.Fatalf("edit must not re-consult the oracle")
	}
}

func TestEditForeignListingIsNotFound(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeModerator{textVerdict: approvedVerdict(0.95)}, &fakeImages{}, nil)

	submitted, err := svc.Submit(context.Background(), 42, validInput())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	newTitle := "hijacked"
	if _, err := svc.Edit(context.Background(), 7, submitted.Listing.ID, UpdateInput{Title: &newTitle}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign edit must look like not found, got %v", err)
	}
	if _, err := svc.Edit(context.Background(), 42, 9999, UpdateInput{Title: &newTitle}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing listing must be not found, got %v", err)
	}
}

func TestDeleteCleansUpImages(t *testing.T) {
	store := newFakeStore()
	imgs := &fakeImages{}
	svc := newTestService(store, &fakeModerator{textVerdict: approvedVerdict(0.95), imageVerdict: approvedVerdict(0.9)}, imgs, nil)

	input := validInput()
	input.Images = []ImageUpload{jpeg(1), jpeg(2)}
	submitted, err := svc.Submit(context.Background(), 42, input)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := svc.Delete(context.Background(), 7, submitted.Listing.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign delete must be not found, got %v", err)
	}
	if len(imgs.deleted) != 0 {
		t.Fatalf("foreign delete must not remove objects")
	}

	if err := svc.Delete(context.Background(), 42, submitted.Listing.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(imgs.deleted) != 2 {
		t.Fatalf("expected 2 object deletes, got %d", len(imgs.deleted))
	}
	if _, ok := store.listings[submitted.Listing.ID]; ok {
		t.Fatalf("listing row should be gone")
	}
}

func TestGetRecordsViewAndIncrementsCounter(t *testing.T) {
	store := newFakeStore()
	views := &fakeViews{}
	svc := newTestService(store, &fakeModerator{textVerdict: approvedVerdict(0.95)}, &fakeImages{}, views)

	submitted, err := svc.Submit(context.Background(), 42, validInput())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	details, err := svc.Get(context.Background(), submitted.Listing.ID, ViewContext{
		UserAgent: "go-test",
		IPAddress: "203.0.113.9",
		Referrer:  "https://example.test/",
	})
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if details.ViewCount != 1 {
		t.Fatalf("expected view count 1, got %d", details.ViewCount)
	}
	if len(views.records) != 1 || views.records[0].IPAddress != "203.0.113.9" {
		t.Fatalf("unexpected analytics records: %+v", views.records)
	}
}

func TestGetSurvivesAnalyticsFailure(t *testing.T) {
	store := newFakeStore()
	views := &fakeViews{fail: true}
	svc := newTestService(store, &fakeModerator{textVerdict: approvedVerdict(0.95)}, &fakeImages{}, views)

	submitted, err := svc.Submit(context.Background(), 42, validInput())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := svc.Get(context.Background(), submitted.Listing.ID, ViewContext{}); err != nil {
		t.Fatalf("analytics failure must not fail the read: %v", err)
	}
}

func TestConcurrentViewsNeverLoseCounts(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeModerator{textVerdict: approvedVerdict(0.95)}, &fakeImages{}, &fakeViews{})

	submitted, err := svc.Submit(context.Background(), 42, validInput())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	const viewers = 100
	var wg sync.WaitGroup
	wg.Add(viewers)
	for i := 0; i < viewers; i++ {
		go func() {
			defer wg.Done()
			_, _ = svc.Get(context.Background(), submitted.Listing.ID, ViewContext{})
		}()
	}
	wg.Wait()

	store.mu.Lock()
	got := store.listings[submitted.Listing.ID].ViewCount
	store.mu.Unlock()
	if got != viewers {
		t.Fatalf("expected %d views, got %d", viewers, got)
	}
}

func TestListOwnIncludesPending(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeModerator{textVerdict: approvedVerdict(0.5)}, &fakeImages{}, nil)

	if _, err := svc.Submit(context.Background(), 42, validInput()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	public, err := svc.List(context.Background(), ListQuery{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(public) != 0 {
		t.Fatalf("pending listing must not appear in the public feed")
	}

	own, err := svc.ListOwn(context.Background(), 42)
	if err != nil {
		t.Fatalf("list own: %v", err)
	}
	if len(own) != 1 {
		t.Fatalf("owner must see their pending listing, got %d", len(own))
	}
}
