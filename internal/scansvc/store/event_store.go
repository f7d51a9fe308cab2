package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/strcr/nfc-meals/internal/scansvc/models"
)

type EventStore struct {
	db *pgxpool.Pool
}

func NewEventStore(db *pgxpool.Pool) *EventStore {
	return &EventStore{db: db}
}

func (s *EventStore) CreateEvent(ctx context.Context, message string) (*models.Event, error) {
	query := `
		INSERT INTO events (message)
		VALUES ($1)
		RETURNING id, message, created_at
	`

	ev := &models.Event{}
	if err := s.db.QueryRow(ctx, query, message).Scan(&ev.ID, &ev.Message, &ev.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	return ev, nil
}

// ListEvents returns the newest events first.
func (s *EventStore) ListEvents(ctx context.Context, limit int) ([]*models.Event, error) {
	if limit <= 0 || limit > EventFeedLimit {
		limit = EventFeedLimit
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, message, created_at
		FROM events
		ORDER BY id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := make([]*models.Event, 0, limit)
	for rows.Next() {
		var ev models.Event
		if err := rows.Scan(&ev.ID, &ev.Message, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return events, nil
}
