package dto

import "github.com/pkoziel/ogloszybko/internal/domain/model"

type VerdictPayload struct {
	Approved   bool     `json:"approved"`
	Confidence float64  `json:"confidence"`
	Reasons    []string `json:"reasons"`
	Category   string   `json:"category"`
}

type ModerationResult struct {
	Approved        bool           `json:"approved"`
	TextModeration  VerdictPayload `json:"textModeration"`
	ImageModeration VerdictPayload `json:"imageModeration"`
}

type SubmitListingResponse struct {
	Listing    model.Listing        `json:"listing"`
	Images     []model.ListingImage `json:"images"`
	Moderation ModerationResult     `json:"moderation"`
}

type UpdateListingRequest struct {
	CategoryID   *int64  `json:"category_id,omitempty"`
	Title        *string `json:"title,omitempty"`
	Description  *string `json:"description,omitempty"`
	Price        *string `json:"price,omitempty"`
	Location     *string `json:"location,omitempty"`
	ContactPhone *string `json:"contact_phone,omitempty"`
	ContactEmail *string `json:"contact_email,omitempty"`
}
