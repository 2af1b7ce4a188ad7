package dto

type DailyViews struct {
	Date  string `json:"date"`
	Views int64  `json:"views"`
}
