// Package screener composes the indicator, stage, pattern, earnings and
// signal engines into one scorecard per symbol and date.
package screener

import (
	"fmt"
	"time"

	"github.com/irfndi/sepa-screener/internal/earnings"
	"github.com/irfndi/sepa-screener/internal/indicators"
	"github.com/irfndi/sepa-screener/internal/models"
	"github.com/irfndi/sepa-screener/internal/patterns"
	"github.com/irfndi/sepa-screener/internal/signals"
	"github.com/irfndi/sepa-screener/internal/strength"
	"github.com/irfndi/sepa-screener/internal/trend"
	"github.com/irfndi/sepa-screener/internal/utils"
)

// Config bundles the tunables of every engine stage.
type Config struct {
	MinBars  int                 `mapstructure:"min_bars"`
	VCP      patterns.VCPConfig  `mapstructure:"vcp"`
	Base     patterns.BaseConfig `mapstructure:"base"`
	Earnings earnings.Config     `mapstructure:"earnings"`
	Signals  signals.Config      `mapstructure:"signals"`
}

// DefaultConfig needs 50 bars before a symbol is scored.
func DefaultConfig() Config {
	return Config{
		MinBars:  50,
		VCP:      patterns.DefaultVCPConfig(),
		Base:     patterns.DefaultBaseConfig(),
		Earnings: earnings.DefaultConfig(),
		Signals:  signals.DefaultConfig(),
	}
}

// SymbolInput is the per-symbol data loaded for a run.
type SymbolInput struct {
	Series        models.PriceSeries
	Fundamentals  models.Fundamentals
	Details       *models.TickerDetails
	PreviousStage *models.Stage
}

// RunContext is shared read-only by every evaluation of a run.
type RunContext struct {
	Date      time.Time
	Composite models.MarketComposite
	RS        map[string]*float64
	SectorRS  map[string]float64
}

// NewRunContext ranks the cross-section. returns holds each symbol's
// trailing-90-day return and sectorOf its sector, when known.
func NewRunContext(date time.Time, composite models.MarketComposite, returns map[string]*float64, sectorOf map[string]string) RunContext {
	return RunContext{
		Date:      models.DateOnly(date),
		Composite: composite,
		RS:        strength.RankRelativeStrength(returns, composite),
		SectorRS:  strength.SectorStrength(sectorOf, returns, composite),
	}
}

// Return90d is the trailing-90-day return used for relative strength.
func Return90d(series models.PriceSeries, date time.Time) *float64 {
	bars := series.Truncate(date).Bars
	if len(bars) == 0 {
		return nil
	}
	return indicators.CalendarReturn(bars, bars[len(bars)-1].Date, indicators.RSReturnCalendar)
}

// Analyzer evaluates symbols. It holds no mutable state and is safe for
// concurrent use.
type Analyzer struct {
	cfg Config
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(cfg Config) *Analyzer {
	return &Analyzer{cfg: cfg}
}

// Config returns the analyzer configuration.
func (a *Analyzer) Config() Config {
	return a.cfg
}

// Scorable reports whether Evaluate would score series on date. Only
// scorable symbols belong in the relative-strength cross-section.
func (a *Analyzer) Scorable(series models.PriceSeries, date time.Time) bool {
	_, err := a.scorable(series, models.DateOnly(date))
	return err == nil
}

func (a *Analyzer) scorable(in models.PriceSeries, date time.Time) (models.PriceSeries, error) {
	if err := in.Validate(); err != nil {
		return models.PriceSeries{}, err
	}
	series := in.Truncate(date)
	last, ok := series.Last()
	if !ok || !models.DateOnly(last.Date).Equal(date) {
		return models.PriceSeries{}, fmt.Errorf("%s: no bar on %s: %w", in.Symbol, date.Format(models.DateLayout), utils.ErrInsufficientHistory)
	}
	if len(series.Bars) < a.cfg.MinBars {
		return models.PriceSeries{}, fmt.Errorf("%s: %d bars, need %d: %w", in.Symbol, len(series.Bars), a.cfg.MinBars, utils.ErrInsufficientHistory)
	}
	return series, nil
}

// Evaluate builds the scorecard of one symbol. It fails with
// utils.ErrInsufficientHistory when the symbol has no bar on the run date or
// too few bars, and with a validation error when the series is malformed.
func (a *Analyzer) Evaluate(in SymbolInput, run RunContext) (models.Scorecard, error) {
	symbol := in.Series.Symbol
	date := models.DateOnly(run.Date)
	series, err := a.scorable(in.Series, date)
	if err != nil {
		return models.Scorecard{}, err
	}

	snap := indicators.Compute(series, date)
	rs := run.RS[symbol]

	eq := earnings.Evaluate(date, in.Fundamentals.Earnings, in.Fundamentals.Statements, a.cfg.Earnings)
	var earningsPass *bool
	if eq.HasEarningsData {
		earningsPass = eq.PassesEarnings
	}
	template := trend.Evaluate(snap, rs, earningsPass)
	vcp := patterns.DetectVCP(series, date, a.cfg.VCP)
	base := patterns.DetectPrimaryBase(series, date, in.Details, a.cfg.Base)

	card := models.Scorecard{
		Symbol:          symbol,
		Date:            date,
		Close:           snap.Close,
		MarketReturn90d: run.Composite.Return90d,
		RSRating:        rs,
		Indicators:      snap,
		Template:        template,
		VCP:             vcp,
		PrimaryBase:     base,
		Earnings:        eq,
	}
	if in.Details != nil {
		card.Sector = in.Details.Sector
		card.MarketCapTier = strength.MarketCapTier(in.Details.MarketCap)
		if v, ok := run.SectorRS[in.Details.Sector]; ok && in.Details.Sector != "" {
			card.SectorRS = utils.Float(v)
		}
	}

	card.Buy = signals.EvaluateBuyer(signals.BuyerInput{
		Snapshot:    snap,
		Template:    template,
		VCP:         vcp,
		PrimaryBase: base,
		Earnings:    eq,
		RSRating:    rs,
		SectorRS:    card.SectorRS,
	}, a.cfg.Signals)
	card.Holder = signals.EvaluateHolder(signals.HolderInput{
		Snapshot:      snap,
		Stage:         template.Stage,
		PreviousStage: in.PreviousStage,
	}, a.cfg.Signals)
	return card, nil
}
