package models

import (
	"time"
)

type Brand struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	ImagePath string    `json:"image_path"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}
