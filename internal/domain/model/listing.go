package model

import (
	"time"

	"github.com/pkoziel/ogloszybko/internal/domain/enums"
)

type Listing struct {
	ID               int64                  `json:"id"`
	UserID           int64                  `json:"user_id"`
	CategoryID       int64                  `json:"category_id"`
	Title            string                 `json:"title"`
	Description      string                 `json:"description"`
	Price            *string                `json:"price,omitempty"`
	Location         string                 `json:"location"`
	ContactPhone     *string                `json:"contact_phone,omitempty"`
	ContactEmail     *string                `json:"contact_email,omitempty"`
	IsActive         bool                   `json:"is_active"`
	IsApproved       bool                   `json:"is_approved"`
	IsFeatured       bool                   `json:"is_featured"`
	ModerationStatus enums.ModerationStatus `json:"moderation_status"`
	ModerationNotes  *string                `json:"moderation_notes,omitempty"`
	ViewCount        int64                  `json:"view_count"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
	PublishedAt      *time.Time             `json:"published_at,omitempty"`
}

type ListingImage struct {
	ID        int64     `json:"id"`
	ListingID int64     `json:"listing_id"`
	ImageURL  string    `json:"image_url"`
	AltText   string    `json:"alt_text,omitempty"`
	SortOrder int       `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
}

// ListingDetails is a listing joined with its category, owner summary and
// ordered images, as served on public read endpoints.
type ListingDetails struct {
	Listing
	Category *Category    `json:"category,omitempty"`
	Owner    OwnerSummary `json:"user"`
	Images   []ListingImage `json:"images"`
}

type OwnerSummary struct {
	ID        int64   `json:"id"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
}
