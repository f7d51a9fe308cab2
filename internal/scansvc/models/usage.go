package models

import "time"

type Usage struct {
	ID          int64     `json:"id"`                // Primary key
	AllowanceID int64     `json:"card_allowance_id"` // FK to card_allowances(id), unique
	CreatedAt   time.Time `json:"created_at"`
}
