package models

import "time"

type Card struct {
	ID        int64     `json:"id"`       // Primary key
	CardUID   string    `json:"card_uid"` // Normalized uppercase hex, no separators
	CreatedAt time.Time `json:"created_at"`
}
