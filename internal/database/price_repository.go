package database

import (
	"context"
	"fmt"
	"time"

	"github.com/irfndi/sepa-screener/internal/models"
)

// PriceRepository reads daily bars from stock_prices.
type PriceRepository struct {
	pool DatabasePool
}

func NewPriceRepository(pool DatabasePool) *PriceRepository {
	return &PriceRepository{pool: pool}
}

// UniverseForDate lists the symbols that have a bar on date.
func (r *PriceRepository) UniverseForDate(ctx context.Context, date time.Time) ([]string, error) {
	query := `
		SELECT DISTINCT symbol
		FROM stock_prices
		WHERE date = $1
		ORDER BY symbol
	`

	rows, err := r.pool.Query(ctx, query, models.DateOnly(date))
	if err != nil {
		return nil, fmt.Errorf("failed to load universe: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("failed to scan universe symbol: %w", err)
		}
		symbols = append(symbols, symbol)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating universe: %w", err)
	}
	return symbols, nil
}

// GetSeries loads bars for symbol in [from, to], oldest first.
func (r *PriceRepository) GetSeries(ctx context.Context, symbol string, from, to time.Time) (models.PriceSeries, error) {
	query := `
		SELECT date, open, high, low, close, volume
		FROM stock_prices
		WHERE symbol = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
	`

	series := models.PriceSeries{Symbol: symbol}
	rows, err := r.pool.Query(ctx, query, symbol, models.DateOnly(from), models.DateOnly(to))
	if err != nil {
		return series, fmt.Errorf("failed to load prices for %s: %w", symbol, err)
	}
	defer rows.Close()

	for rows.Next() {
		var bar models.PriceBar
		if err := rows.Scan(&bar.Date, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
			return series, fmt.Errorf("failed to scan price bar for %s: %w", symbol, err)
		}
		bar.Date = models.DateOnly(bar.Date)
		series.Bars = append(series.Bars, bar)
	}
	if err := rows.Err(); err != nil {
		return series, fmt.Errorf("error iterating prices for %s: %w", symbol, err)
	}
	return series, nil
}
