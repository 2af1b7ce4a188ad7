package model

import "time"

type User struct {
	ID               int64     `json:"id"`
	Email            string    `json:"email"`
	FirstName        *string   `json:"first_name,omitempty"`
	LastName         *string   `json:"last_name,omitempty"`
	Phone            *string   `json:"phone,omitempty"`
	TwoFactorEnabled bool      `json:"two_factor_enabled"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
