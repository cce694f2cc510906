package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = errors.New("record not found")

// DatabasePool defines the interface for database pool operations.
// This interface allows for both real pool and mock pool implementations.
type DatabasePool interface {
	// QueryRow executes a query that is expected to return at most one row.
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	// Exec executes a query without returning any rows.
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	// Query executes a query that returns rows.
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// Repositories bundles every table accessor over one pool.
type Repositories struct {
	Prices        *PriceRepository
	Fundamentals  *FundamentalsRepository
	Scorecards    *ScorecardRepository
	Notifications *NotificationRepository
	Watchlist     *WatchlistRepository
}

// NewRepositories wires all repositories to pool.
func NewRepositories(pool DatabasePool) *Repositories {
	return &Repositories{
		Prices:        NewPriceRepository(pool),
		Fundamentals:  NewFundamentalsRepository(pool),
		Scorecards:    NewScorecardRepository(pool),
		Notifications: NewNotificationRepository(pool),
		Watchlist:     NewWatchlistRepository(pool),
	}
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
