package database

import (
	"context"
	"fmt"
	"strings"
)

// WatchlistEntry is one symbol followed by one user.
type WatchlistEntry struct {
	UserID string `json:"user_id" db:"user_id"`
	Symbol string `json:"symbol" db:"symbol"`
}

// WatchlistRepository handles the watchlist table.
type WatchlistRepository struct {
	pool DatabasePool
}

// NewWatchlistRepository creates a new watchlist repository.
func NewWatchlistRepository(pool DatabasePool) *WatchlistRepository {
	return &WatchlistRepository{pool: pool}
}

// WatchedSymbols returns the set of symbols on any user's watchlist.
func (r *WatchlistRepository) WatchedSymbols(ctx context.Context) (map[string]bool, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT symbol FROM watchlist`)
	if err != nil {
		return nil, fmt.Errorf("failed to load watched symbols: %w", err)
	}
	defer rows.Close()

	watched := make(map[string]bool)
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("failed to scan watched symbol: %w", err)
		}
		watched[strings.ToUpper(symbol)] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating watched symbols: %w", err)
	}
	return watched, nil
}

// ListForUser returns the symbols userID follows, alphabetically.
func (r *WatchlistRepository) ListForUser(ctx context.Context, userID string) ([]WatchlistEntry, error) {
	query := `
		SELECT user_id, symbol
		FROM watchlist
		WHERE user_id = $1
		ORDER BY symbol ASC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get watchlist: %w", err)
	}
	defer rows.Close()

	entries := []WatchlistEntry{}
	for rows.Next() {
		var entry WatchlistEntry
		if err := rows.Scan(&entry.UserID, &entry.Symbol); err != nil {
			return nil, fmt.Errorf("failed to scan watchlist entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating watchlist entries: %w", err)
	}
	return entries, nil
}

// Add follows symbol for userID. Adding an existing entry is a no-op.
func (r *WatchlistRepository) Add(ctx context.Context, userID, symbol string) (*WatchlistEntry, error) {
	entry := &WatchlistEntry{UserID: userID, Symbol: strings.ToUpper(strings.TrimSpace(symbol))}
	query := `
		INSERT INTO watchlist (user_id, symbol)
		VALUES ($1, $2)
		ON CONFLICT (user_id, symbol) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, query, entry.UserID, entry.Symbol); err != nil {
		return nil, fmt.Errorf("failed to add %s to watchlist: %w", entry.Symbol, err)
	}
	return entry, nil
}

// Remove unfollows symbol. It returns ErrNotFound when the entry is absent.
func (r *WatchlistRepository) Remove(ctx context.Context, userID, symbol string) error {
	query := `DELETE FROM watchlist WHERE user_id = $1 AND symbol = $2`

	result, err := r.pool.Exec(ctx, query, userID, strings.ToUpper(strings.TrimSpace(symbol)))
	if err != nil {
		return fmt.Errorf("failed to remove %s from watchlist: %w", symbol, err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
