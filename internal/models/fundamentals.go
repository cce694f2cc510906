package models

import "time"

// EarningsRecord is one quarterly report or a scheduled (future) report date.
type EarningsRecord struct {
	Symbol        string    `json:"symbol" db:"symbol"`
	ReportDate    time.Time `json:"report_date" db:"report_date"`
	FiscalYear    int       `json:"fiscal_year" db:"fiscal_year"`
	FiscalQuarter int       `json:"fiscal_quarter" db:"fiscal_quarter"`
	EPSActual     *float64  `json:"eps_actual,omitempty" db:"eps_actual"`
	EPSEstimate   *float64  `json:"eps_estimate,omitempty" db:"eps_estimate"`
	SurprisePct   *float64  `json:"surprise_pct,omitempty" db:"surprise_pct"`
	RevenueActual *float64  `json:"revenue_actual,omitempty" db:"revenue_actual"`
	IsScheduled   bool      `json:"is_scheduled" db:"is_scheduled"`
}

// IncomeStatement holds quarterly fundamentals.
type IncomeStatement struct {
	Symbol        string    `json:"symbol" db:"symbol"`
	FiscalYear    int       `json:"fiscal_year" db:"fiscal_year"`
	FiscalQuarter int       `json:"fiscal_quarter" db:"fiscal_quarter"`
	PeriodEnd     time.Time `json:"period_end" db:"period_end"`
	EPSDiluted    *float64  `json:"eps_diluted,omitempty" db:"eps_diluted"`
	Revenue       *float64  `json:"revenue,omitempty" db:"revenue"`
}

// TickerDetails is optional reference data about a listing.
type TickerDetails struct {
	Symbol    string     `json:"symbol" db:"symbol"`
	Name      string     `json:"name" db:"name"`
	MarketCap *float64   `json:"market_cap,omitempty" db:"market_cap"`
	Active    bool       `json:"active" db:"active"`
	ListDate  *time.Time `json:"list_date,omitempty" db:"list_date"`
	Sector    string     `json:"sector" db:"sector"`
}

// Fundamentals groups the optional fundamental inputs of one symbol.
type Fundamentals struct {
	Earnings   []EarningsRecord  `json:"earnings"`
	Statements []IncomeStatement `json:"statements"`
}

// Empty reports whether no fundamental data exists.
func (f Fundamentals) Empty() bool {
	return len(f.Earnings) == 0 && len(f.Statements) == 0
}
