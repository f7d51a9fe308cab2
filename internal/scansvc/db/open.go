package db

import (
	"context"
	"fmt"

	"github.com/strcr/nfc-meals/internal/scansvc/service"
	"github.com/strcr/nfc-meals/internal/scansvc/store"
	"github.com/strcr/nfc-meals/internal/scansvc/store/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Storage is an opened backend with its repositories.
type Storage struct {
	Driver string
	Repos  service.Repositories

	migrate func(context.Context) error
	close   func() error
}

// Open connects to the backend named by driver. For sqlite, dsn is a file path
// or ":memory:".
func Open(ctx context.Context, driver, dsn string) (*Storage, error) {
	switch driver {
	case DriverPostgres:
		pool, err := Connect(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return &Storage{
			Driver: driver,
			Repos: service.Repositories{
				Cards:      store.NewCardStore(pool),
				Allowances: store.NewAllowanceStore(pool),
				Usages:     store.NewUsageStore(pool),
				Events:     store.NewEventStore(pool),
			},
			migrate: func(ctx context.Context) error { return Migrate(ctx, pool) },
			close: func() error {
				pool.Close()
				return nil
			},
		}, nil
	case DriverSQLite:
		s, err := sqlite.New(dsn)
		if err != nil {
			return nil, err
		}
		return &Storage{
			Driver: driver,
			Repos: service.Repositories{
				Cards:      s,
				Allowances: s,
				Usages:     s,
				Events:     s,
			},
			migrate: s.Migrate,
			close:   s.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}
}

func (s *Storage) Migrate(ctx context.Context) error {
	return s.migrate(ctx)
}

func (s *Storage) Close() error {
	return s.close()
}
