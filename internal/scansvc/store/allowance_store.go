package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/strcr/nfc-meals/internal/scansvc/models"
)

type AllowanceStore struct {
	db *pgxpool.Pool
}

func NewAllowanceStore(db *pgxpool.Pool) *AllowanceStore {
	return &AllowanceStore{db: db}
}

// GetAllowance finds the allowance of cardID for the given calendar date and type.
func (s *AllowanceStore) GetAllowance(ctx context.Context, cardID int64, date, allowanceType string) (*models.Allowance, error) {
	query := `
		SELECT id, card_id, to_char(allowance_date, 'YYYY-MM-DD'), type
		FROM card_allowances
		WHERE card_id = $1
		  AND allowance_date = $2::date
		  AND type = $3
		LIMIT 1
	`

	var a models.Allowance
	err := s.db.QueryRow(ctx, query, cardID, date, allowanceType).Scan(
		&a.ID,
		&a.CardID,
		&a.Date,
		&a.Type,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("allowance %s/%s for card %d: %w", date, allowanceType, cardID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get allowance: %w", err)
	}

	return &a, nil
}

func (s *AllowanceStore) CreateAllowance(ctx context.Context, cardID int64, date, allowanceType string) (*models.Allowance, error) {
	query := `
		INSERT INTO card_allowances (card_id, allowance_date, type)
		VALUES ($1, $2::date, $3)
		RETURNING id, card_id, to_char(allowance_date, 'YYYY-MM-DD'), type
	`

	a := &models.Allowance{}
	err := s.db.QueryRow(ctx, query, cardID, date, allowanceType).Scan(
		&a.ID,
		&a.CardID,
		&a.Date,
		&a.Type,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("allowance %s/%s for card %d: %w", date, allowanceType, cardID, ErrDuplicate)
		}
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("card %d: %w", cardID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to create allowance: %w", err)
	}

	return a, nil
}

// ListAllowances returns every allowance of a card, oldest date first, with UsedAt set
// for the redeemed ones.
func (s *AllowanceStore) ListAllowances(ctx context.Context, cardID int64) ([]*models.Allowance, error) {
	query := `
		SELECT a.id, a.card_id, to_char(a.allowance_date, 'YYYY-MM-DD'), a.type, u.created_at
		FROM card_allowances a
		LEFT JOIN usages u ON u.card_allowance_id = a.id
		WHERE a.card_id = $1
		ORDER BY a.allowance_date, a.type
	`

	rows, err := s.db.Query(ctx, query, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list allowances: %w", err)
	}
	defer rows.Close()

	var allowances []*models.Allowance
	for rows.Next() {
		var a models.Allowance
		if err := rows.Scan(&a.ID, &a.CardID, &a.Date, &a.Type, &a.UsedAt); err != nil {
			return nil, fmt.Errorf("scan allowance row: %w", err)
		}
		allowances = append(allowances, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return allowances, nil
}
