package service

import (
	"context"

	"github.com/strcr/nfc-meals/internal/scansvc/models"
)

// Lookups return store.ErrNotFound for absent rows; any other error is a storage failure.

type CardRepo interface {
	GetCardByUID(ctx context.Context, uid string) (*models.Card, error)
	CreateCard(ctx context.Context, uid string) (*models.Card, error)
}

type AllowanceRepo interface {
	GetAllowance(ctx context.Context, cardID int64, date, allowanceType string) (*models.Allowance, error)
	CreateAllowance(ctx context.Context, cardID int64, date, allowanceType string) (*models.Allowance, error)
	ListAllowances(ctx context.Context, cardID int64) ([]*models.Allowance, error)
}

type UsageRepo interface {
	CreateUsageIfUnused(ctx context.Context, allowanceID int64) (*models.Usage, bool, error)
}

type EventRepo interface {
	CreateEvent(ctx context.Context, message string) (*models.Event, error)
	ListEvents(ctx context.Context, limit int) ([]*models.Event, error)
}

// Repositories bundles the storage handles a backend provides.
type Repositories struct {
	Cards      CardRepo
	Allowances AllowanceRepo
	Usages     UsageRepo
	Events     EventRepo
}
