package patterns

import (
	"time"

	"github.com/irfndi/sepa-screener/internal/models"
	"github.com/irfndi/sepa-screener/internal/utils"
)

// BaseConfig tunes the primary-base detector.
type BaseConfig struct {
	NewIssueBars  int     `mapstructure:"new_issue_bars"`
	MinBaseBars   int     `mapstructure:"min_base_bars"`
	MinCorrection float64 `mapstructure:"min_correction_pct"`
	MaxCorrection float64 `mapstructure:"max_correction_pct"`
	BreakdownPct  float64 `mapstructure:"breakdown_pct"`
	ExcludeRecent int     `mapstructure:"exclude_recent_bars"`
	BarsPerWeek   int     `mapstructure:"bars_per_week"`
}

// DefaultBaseConfig treats anything listed for less than a trading year as a new issue.
func DefaultBaseConfig() BaseConfig {
	return BaseConfig{
		NewIssueBars:  252,
		MinBaseBars:   15,
		MinCorrection: 8,
		MaxCorrection: 50,
		BreakdownPct:  3,
		ExcludeRecent: 5,
		BarsPerWeek:   5,
	}
}

// baseBand is the deepest correction allowed for a base of at least minWeeks.
type baseBand struct {
	minWeeks      float64
	maxCorrection float64
}

var baseBands = []baseBand{
	{minWeeks: 8, maxCorrection: 50},
	{minWeeks: 5, maxCorrection: 35},
	{minWeeks: 3, maxCorrection: 25},
}

// DetectPrimaryBase tracks the first consolidation after a listing.
// details may be nil.
func DetectPrimaryBase(series models.PriceSeries, date time.Time, details *models.TickerDetails, cfg BaseConfig) models.PrimaryBaseState {
	bars := series.Truncate(date).Bars

	days := daysSinceListing(bars, details, cfg.NewIssueBars)
	if days == nil {
		return models.PrimaryBaseState{Status: models.BaseNotApplicable}
	}
	state := models.PrimaryBaseState{DaysSinceIPO: days}
	if *days >= cfg.NewIssueBars {
		state.Status = models.BaseNotApplicable
		return state
	}
	state.IsNewIssue = true
	if *days < cfg.MinBaseBars || len(bars) == 0 {
		state.Status = models.BaseTooEarly
		return state
	}

	listed := bars[len(bars)-min(*days, len(bars)):]
	hi := 0
	for i, b := range listed {
		if b.High > listed[hi].High {
			hi = i
		}
	}
	high := listed[hi].High
	last := len(listed) - 1

	// The established low leaves out the most recent bars so a fresh
	// undercut can be told apart from the base itself. A base younger than
	// that window measures its correction to today.
	established := 0.0
	low := listed[hi].Low
	if end := len(listed) - cfg.ExcludeRecent; end > hi {
		for _, b := range listed[hi:end] {
			low = min(low, b.Low)
		}
		established = low
	} else {
		for _, b := range listed[hi:] {
			low = min(low, b.Low)
		}
	}

	perWeek := float64(max(cfg.BarsPerWeek, 1))
	weeks := utils.Round(float64(last-hi)/perWeek, 1)
	state.BaseWeeks = utils.Float(weeks)
	if high > 0 {
		state.CorrectionPct = utils.Float(utils.Round((high-low)/high*100, 2))
	}

	closePrice := listed[last].Close
	switch {
	case state.CorrectionPct != nil && *state.CorrectionPct > cfg.MaxCorrection:
		state.Status = models.BaseFailed
	case established > 0 && closePrice < established*(1-cfg.BreakdownPct/100):
		state.Status = models.BaseFailed
	case state.CorrectionPct != nil && inBand(weeks, *state.CorrectionPct, cfg.MinCorrection):
		state.Status = models.BaseComplete
	default:
		state.Status = models.BaseForming
	}
	state.HasPrimaryBase = state.Status == models.BaseComplete
	return state
}

// daysSinceListing counts bars since the listing date. Without a listing date
// a series shorter than the new-issue threshold is taken to start at listing.
func daysSinceListing(bars []models.PriceBar, details *models.TickerDetails, threshold int) *int {
	if details != nil && details.ListDate != nil {
		listed := models.DateOnly(*details.ListDate)
		n := 0
		for _, b := range bars {
			if !b.Date.Before(listed) {
				n++
			}
		}
		return &n
	}
	if len(bars) < threshold {
		n := len(bars)
		return &n
	}
	return nil
}

func inBand(weeks, correction, minCorrection float64) bool {
	if correction < minCorrection {
		return false
	}
	for _, band := range baseBands {
		if weeks >= band.minWeeks {
			return correction <= band.maxCorrection
		}
	}
	return false
}
