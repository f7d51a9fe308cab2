package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/strcr/nfc-meals/internal/scansvc/models"
)

type CardStore struct {
	db *pgxpool.Pool
}

func NewCardStore(db *pgxpool.Pool) *CardStore {
	return &CardStore{db: db}
}

// GetCardByUID returns ErrNotFound when no card carries uid.
func (s *CardStore) GetCardByUID(ctx context.Context, uid string) (*models.Card, error) {
	query := `
		SELECT id, card_uid, created_at
		FROM cards
		WHERE card_uid = $1
		LIMIT 1
	`

	var card models.Card
	err := s.db.QueryRow(ctx, query, uid).Scan(
		&card.ID,
		&card.CardUID,
		&card.CreatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("card %s: %w", uid, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get card by uid: %w", err)
	}

	return &card, nil
}

func (s *CardStore) CreateCard(ctx context.Context, uid string) (*models.Card, error) {
	query := `
		INSERT INTO cards (card_uid)
		VALUES ($1)
		RETURNING id, card_uid, created_at
	`

	card := &models.Card{}
	err := s.db.QueryRow(ctx, query, uid).Scan(
		&card.ID,
		&card.CardUID,
		&card.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("card %s: %w", uid, ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to create card: %w", err)
	}

	return card, nil
}
