// Package sqlite is the single-file storage backend. It implements the same
// repository methods as the Postgres stores and is what the tests run against.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-sqlite3"
	"github.com/strcr/nfc-meals/internal/scansvc/models"
	"github.com/strcr/nfc-meals/internal/scansvc/store"
)

type Store struct {
	db *sql.DB
}

// New opens (and creates if needed) the database at path. Use ":memory:" for an
// ephemeral database.
func New(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// a single writer; also keeps ":memory:" on one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) GetCardByUID(ctx context.Context, uid string) (*models.Card, error) {
	var card models.Card
	err := s.db.QueryRowContext(ctx,
		`SELECT id, card_uid, created_at FROM cards WHERE card_uid = ? LIMIT 1`, uid,
	).Scan(&card.ID, &card.CardUID, &card.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("card %s: %w", uid, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get card by uid: %w", err)
	}
	return &card, nil
}

func (s *Store) CreateCard(ctx context.Context, uid string) (*models.Card, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO cards (card_uid) VALUES (?)`, uid)
	if err != nil {
		if isConstraint(err, sqlite3.ErrConstraintUnique) {
			return nil, fmt.Errorf("card %s: %w", uid, store.ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to create card: %w", err)
	}
	if _, err := res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("failed to read card id: %w", err)
	}
	return s.GetCardByUID(ctx, uid)
}

func (s *Store) GetAllowance(ctx context.Context, cardID int64, date, allowanceType string) (*models.Allowance, error) {
	var a models.Allowance
	err := s.db.QueryRowContext(ctx, `
		SELECT id, card_id, allowance_date, type
		FROM card_allowances
		WHERE card_id = ? AND allowance_date = ? AND type = ?
		LIMIT 1`, cardID, date, allowanceType,
	).Scan(&a.ID, &a.CardID, &a.Date, &a.Type)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("allowance %s/%s for card %d: %w", date, allowanceType, cardID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get allowance: %w", err)
	}
	return &a, nil
}

func (s *Store) CreateAllowance(ctx context.Context, cardID int64, date, allowanceType string) (*models.Allowance, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO card_allowances (card_id, allowance_date, type) VALUES (?, ?, ?)`,
		cardID, date, allowanceType)
	if err != nil {
		if isConstraint(err, sqlite3.ErrConstraintUnique) {
			return nil, fmt.Errorf("allowance %s/%s for card %d: %w", date, allowanceType, cardID, store.ErrDuplicate)
		}
		if isConstraint(err, sqlite3.ErrConstraintForeignKey) {
			return nil, fmt.Errorf("card %d: %w", cardID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to create allowance: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read allowance id: %w", err)
	}
	return &models.Allowance{ID: id, CardID: cardID, Date: date, Type: allowanceType}, nil
}

func (s *Store) ListAllowances(ctx context.Context, cardID int64) ([]*models.Allowance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.card_id, a.allowance_date, a.type, u.created_at
		FROM card_allowances a
		LEFT JOIN usages u ON u.card_allowance_id = a.id
		WHERE a.card_id = ?
		ORDER BY a.allowance_date, a.type`, cardID)
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

// CreateUsageIfUnused inserts a usage unless the allowance already has one and
// reports whether this call created it.
func (s *Store) CreateUsageIfUnused(ctx context.Context, allowanceID int64) (*models.Usage, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO usages (card_allowance_id) VALUES (?)
		ON CONFLICT (card_allowance_id) DO NOTHING`, allowanceID)
	if err != nil {
		if isConstraint(err, sqlite3.ErrConstraintForeignKey) {
			return nil, false, fmt.Errorf("allowance %d: %w", allowanceID, store.ErrNotFound)
		}
		return nil, false, fmt.Errorf("failed to create usage: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	u := &models.Usage{}
	err = tx.QueryRowContext(ctx,
		`SELECT id, card_allowance_id, created_at FROM usages WHERE card_allowance_id = ?`, allowanceID,
	).Scan(&u.ID, &u.AllowanceID, &u.CreatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read usage: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit tx: %w", err)
	}
	return u, affected == 1, nil
}

func (s *Store) GetUsageByAllowance(ctx context.Context, allowanceID int64) (*models.Usage, error) {
	u := &models.Usage{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, card_allowance_id, created_at FROM usages WHERE card_allowance_id = ?`, allowanceID,
	).Scan(&u.ID, &u.AllowanceID, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("usage for allowance %d: %w", allowanceID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get usage: %w", err)
	}
	return u, nil
}

func (s *Store) CreateEvent(ctx context.Context, message string) (*models.Event, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO events (message) VALUES (?)`, message)
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read event id: %w", err)
	}

	ev := &models.Event{}
	err = s.db.QueryRowContext(ctx,
		`SELECT id, message, created_at FROM events WHERE id = ?`, id,
	).Scan(&ev.ID, &ev.Message, &ev.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to read event: %w", err)
	}
	return ev, nil
}

func (s *Store) ListEvents(ctx context.Context, limit int) ([]*models.Event, error) {
	if limit <= 0 || limit > store.EventFeedLimit {
		limit = store.EventFeedLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, message, created_at FROM events ORDER BY id DESC LIMIT ?`, limit)
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

func isConstraint(err error, code sqlite3.ErrNoExtended) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == code
}
