package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/strcr/nfc-meals/internal/scansvc/models"
)

type UsageStore struct {
	db *pgxpool.Pool
}

func NewUsageStore(db *pgxpool.Pool) *UsageStore {
	return &UsageStore{db: db}
}

// CreateUsageIfUnused records a usage for the allowance unless one already exists.
// It returns the usage row and whether this call created it. The unique constraint on
// usages(card_allowance_id) makes concurrent callers agree on a single winner.
func (s *UsageStore) CreateUsageIfUnused(ctx context.Context, allowanceID int64) (*models.Usage, bool, error) {
	// The fallback SELECT reads the statement snapshot, so it only returns a row
	// that was committed before this statement started.
	const query = `
WITH inserted AS (
  INSERT INTO usages (card_allowance_id)
  VALUES ($1)
  ON CONFLICT (card_allowance_id) DO NOTHING
  RETURNING id, card_allowance_id, created_at
)
SELECT id, card_allowance_id, created_at, true FROM inserted
UNION ALL
SELECT id, card_allowance_id, created_at, false FROM usages WHERE card_allowance_id = $1
LIMIT 1;
`
	u := &models.Usage{}
	var created bool
	err := s.db.QueryRow(ctx, query, allowanceID).Scan(
		&u.ID,
		&u.AllowanceID,
		&u.CreatedAt,
		&created,
	)
	if err != nil {
		// zero rows means a concurrent insert committed after our snapshot
		if isNoRows(err) {
			existing, getErr := s.GetUsageByAllowance(ctx, allowanceID)
			if getErr != nil {
				return nil, false, getErr
			}
			return existing, false, nil
		}
		if isForeignKeyViolation(err) {
			return nil, false, fmt.Errorf("allowance %d: %w", allowanceID, ErrNotFound)
		}
		return nil, false, fmt.Errorf("failed to create usage: %w", err)
	}

	return u, created, nil
}

func (s *UsageStore) GetUsageByAllowance(ctx context.Context, allowanceID int64) (*models.Usage, error) {
	query := `
		SELECT id, card_allowance_id, created_at
		FROM usages
		WHERE card_allowance_id = $1
	`

	u := &models.Usage{}
	err := s.db.QueryRow(ctx, query, allowanceID).Scan(&u.ID, &u.AllowanceID, &u.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("usage for allowance %d: %w", allowanceID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get usage: %w", err)
	}

	return u, nil
}
