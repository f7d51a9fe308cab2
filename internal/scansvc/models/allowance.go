package models

import "time"

// Allowance lets a card redeem one usage of Type on Date.
type Allowance struct {
	ID     int64  `json:"id"`             // Primary key
	CardID int64  `json:"card_id"`        // FK to cards(id)
	Date   string `json:"allowance_date"` // Calendar day, YYYY-MM-DD
	Type   string `json:"type"`           // Lowercase category, e.g. "lunch"

	// UsedAt is only populated by listing queries.
	UsedAt *time.Time `json:"used_at,omitempty"`
}
