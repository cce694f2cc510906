package database

import (
	"context"
	"fmt"

	"github.com/irfndi/sepa-screener/internal/models"
)

// FundamentalsRepository reads earnings, income statements and ticker
// reference data.
type FundamentalsRepository struct {
	pool DatabasePool
}

func NewFundamentalsRepository(pool DatabasePool) *FundamentalsRepository {
	return &FundamentalsRepository{pool: pool}
}

// GetFundamentals loads all earnings records and income statements of
// symbol. Both lists may be empty.
func (r *FundamentalsRepository) GetFundamentals(ctx context.Context, symbol string) (models.Fundamentals, error) {
	var f models.Fundamentals

	earnings, err := r.pool.Query(ctx, `
		SELECT report_date, fiscal_year, fiscal_quarter, eps_actual, eps_estimate,
		       surprise_pct, revenue_actual, is_scheduled
		FROM earnings
		WHERE symbol = $1
		ORDER BY report_date ASC
	`, symbol)
	if err != nil {
		return f, fmt.Errorf("failed to load earnings for %s: %w", symbol, err)
	}
	for earnings.Next() {
		rec := models.EarningsRecord{Symbol: symbol}
		if err := earnings.Scan(
			&rec.ReportDate,
			&rec.FiscalYear,
			&rec.FiscalQuarter,
			&rec.EPSActual,
			&rec.EPSEstimate,
			&rec.SurprisePct,
			&rec.RevenueActual,
			&rec.IsScheduled,
		); err != nil {
			earnings.Close()
			return f, fmt.Errorf("failed to scan earnings for %s: %w", symbol, err)
		}
		rec.ReportDate = models.DateOnly(rec.ReportDate)
		f.Earnings = append(f.Earnings, rec)
	}
	earnings.Close()
	if err := earnings.Err(); err != nil {
		return f, fmt.Errorf("error iterating earnings for %s: %w", symbol, err)
	}

	statements, err := r.pool.Query(ctx, `
		SELECT fiscal_year, fiscal_quarter, period_end, eps_diluted, revenue
		FROM income_statements
		WHERE symbol = $1
		ORDER BY period_end ASC
	`, symbol)
	if err != nil {
		return f, fmt.Errorf("failed to load income statements for %s: %w", symbol, err)
	}
	defer statements.Close()
	for statements.Next() {
		st := models.IncomeStatement{Symbol: symbol}
		if err := statements.Scan(&st.FiscalYear, &st.FiscalQuarter, &st.PeriodEnd, &st.EPSDiluted, &st.Revenue); err != nil {
			return f, fmt.Errorf("failed to scan income statement for %s: %w", symbol, err)
		}
		st.PeriodEnd = models.DateOnly(st.PeriodEnd)
		f.Statements = append(f.Statements, st)
	}
	if err := statements.Err(); err != nil {
		return f, fmt.Errorf("error iterating income statements for %s: %w", symbol, err)
	}
	return f, nil
}

// GetDetails returns the reference row of symbol, or nil when there is none.
func (r *FundamentalsRepository) GetDetails(ctx context.Context, symbol string) (*models.TickerDetails, error) {
	query := `
		SELECT symbol, name, market_cap, active, list_date, sector
		FROM ticker_details
		WHERE symbol = $1
	`

	var (
		d      models.TickerDetails
		name   *string
		sector *string
	)
	err := r.pool.QueryRow(ctx, query, symbol).Scan(&d.Symbol, &name, &d.MarketCap, &d.Active, &d.ListDate, &sector)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load ticker details for %s: %w", symbol, err)
	}
	if name != nil {
		d.Name = *name
	}
	if sector != nil {
		d.Sector = *sector
	}
	if d.ListDate != nil {
		ld := models.DateOnly(*d.ListDate)
		d.ListDate = &ld
	}
	return &d, nil
}
