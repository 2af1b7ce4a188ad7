package dto

type FavoriteToggleResponse struct {
	Favorited bool `json:"favorited"`
}
