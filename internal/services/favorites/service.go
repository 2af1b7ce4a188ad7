package favorites

import (
	"context"
	"errors"
	"fmt"

	"github.com/pkoziel/ogloszybko/internal/domain/model"
	pgrepo "github.com/pkoziel/ogloszybko/internal/repo/postgres"
)

var ErrValidation = errors.New("validation error")

type FavoriteStore interface {
	Toggle(ctx context.Context, userID, listingID int64) (bool, error)
	ListListingIDs(ctx context.Context, userID int64) ([]int64, error)
}

type ListingReader interface {
	GetDetails(ctx context.Context, id int64) (model.ListingDetails, error)
}

type Service struct {
	store    FavoriteStore
	listings ListingReader
}

func NewService(store FavoriteStore, listings ListingReader) *Service {
	return &Service{store: store, listings: listings}
}

// Toggle flips the favorite state and reports whether the listing is now
// favorited.
func (s *Service) Toggle(ctx context.Context, userID, listingID int64) (bool, error) {
	if s.store == nil {
		return false, fmt.Errorf("favorites store is nil")
	}
	if userID <= 0 || listingID <= 0 {
		return false, ErrValidation
	}
	return s.store.Toggle(ctx, userID, listingID)
}

// List returns the user's favorited listings with full details. Listings
// deleted since they were favorited are silently skipped.
func (s *Service) List(ctx context.Context, userID int64) ([]model.ListingDetails, error) {
	if s.store == nil || s.listings == nil {
		return nil, fmt.Errorf("favorites dependencies are not configured")
	}
	if userID <= 0 {
		return nil, ErrValidation
	}

	ids, err := s.store.ListListingIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list favorite ids: %w", err)
	}

	items := make([]model.ListingDetails, 0, len(ids))
	for _, id := range ids {
		details, err := s.listings.GetDetails(ctx, id)
		if errors.Is(err, pgrepo.ErrListingNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load favorite listing %d: %w", id, err)
		}
		items = append(items, details)
	}

	return items, nil
}
