package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/pkoziel/ogloszybko/internal/domain/model"
	pgrepo "github.com/pkoziel/ogloszybko/internal/repo/postgres"
)

const (
	defaultDays = 30
	maxDays     = 365
)

var ErrNotFound = pgrepo.ErrListingNotFound

type ViewsStore interface {
	DailyViews(ctx context.Context, listingID int64, since time.Time) ([]pgrepo.DailyViews, error)
}

type ListingReader interface {
	GetByID(ctx context.Context, id int64) (model.Listing, error)
}

type Service struct {
	views    ViewsStore
	listings ListingReader
	now      func() time.Time
}

func NewService(views ViewsStore, listings ListingReader) *Service {
	return &Service{
		views:    views,
		listings: listings,
		now:      time.Now,
	}
}

// DailyViews returns per-day view counts for an owned listing. A foreign or
// missing listing is reported as not found either way.
func (s *Service) DailyViews(ctx context.Context, userID, listingID int64, days int) ([]pgrepo.DailyViews, error) {
	if s.views == nil || s.listings == nil {
		return nil, fmt.Errorf("analytics dependencies are not configured")
	}
	if userID <= 0 || listingID <= 0 {
		return nil, ErrNotFound
	}

	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.UserID != userID {
		return nil, ErrNotFound
	}

	if days <= 0 {
		days = defaultDays
	}
	if days > maxDays {
		days = maxDays
	}

	since := s.now().UTC().AddDate(0, 0, -days)
	return s.views.DailyViews(ctx, listingID, since)
}
