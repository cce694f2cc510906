package models

import "time"

// IndicatorSnapshot holds the indicator values of one symbol on one date.
// Nil means the value could not be computed from the available history.
type IndicatorSnapshot struct {
	Date     time.Time `json:"date"`
	BarCount int       `json:"bar_count"`
	Close    float64   `json:"close"`
	High     float64   `json:"high"`
	Volume   float64   `json:"volume"`

	SMA50  *float64 `json:"sma_50"`
	SMA150 *float64 `json:"sma_150"`
	SMA200 *float64 `json:"sma_200"`
	EMA10  *float64 `json:"ema_10"`
	EMA21  *float64 `json:"ema_21"`

	SMA200Prior20     *float64 `json:"sma_200_prior_20"`
	MA200TrendingUp   bool     `json:"ma_200_trending_up"`
	MA200TrendingDown bool     `json:"ma_200_trending_down"`
	MA200Trend20dPct  *float64 `json:"ma_200_trend_20d_pct"`

	ATR14  *float64 `json:"atr_14"`
	ATRPct *float64 `json:"atr_pct"`

	High52Week          *float64 `json:"high_52w"`
	Low52Week           *float64 `json:"low_52w"`
	PctFromHigh         *float64 `json:"pct_from_high"`
	PctFromLow          *float64 `json:"pct_from_low"`
	Is52WeekHigh        bool     `json:"is_52w_high"`
	DaysSince52WeekHigh *int     `json:"days_since_52w_high"`

	Return1M  *float64 `json:"return_1m"`
	Return3M  *float64 `json:"return_3m"`
	Return6M  *float64 `json:"return_6m"`
	Return12M *float64 `json:"return_12m"`
	Return90d *float64 `json:"return_90d"`

	AvgDollarVolume50 *float64 `json:"avg_dollar_volume_50d"`
	VolumeRatio       *float64 `json:"volume_ratio"`

	SwingLow   *float64 `json:"swing_low"`
	Resistance *float64 `json:"resistance_20d"`

	PrevClose  *float64 `json:"prev_close"`
	PrevEMA10  *float64 `json:"prev_ema_10"`
	PrevEMA21  *float64 `json:"prev_ema_21"`
	PrevSMA50  *float64 `json:"prev_sma_50"`
	PrevSMA200 *float64 `json:"prev_sma_200"`
}

// MovingAverage returns the current value behind a trailing method.
func (s IndicatorSnapshot) MovingAverage(m TrailingMethod) *float64 {
	switch m {
	case TrailEMA10:
		return s.EMA10
	case TrailEMA21:
		return s.EMA21
	case TrailMA50:
		return s.SMA50
	case TrailMA200:
		return s.SMA200
	}
	return nil
}

// PrevMovingAverage returns the previous bar's value behind a trailing method.
func (s IndicatorSnapshot) PrevMovingAverage(m TrailingMethod) *float64 {
	switch m {
	case TrailEMA10:
		return s.PrevEMA10
	case TrailEMA21:
		return s.PrevEMA21
	case TrailMA50:
		return s.PrevSMA50
	case TrailMA200:
		return s.PrevSMA200
	}
	return nil
}

// CompositeComponent is one benchmark's contribution to the market composite.
type CompositeComponent struct {
	Symbol    string   `json:"symbol"`
	Weight    float64  `json:"weight"`
	Return90d *float64 `json:"return_90d"`
}

// MarketComposite is the weighted benchmark return for one analysis date.
// It is computed once per run and shared read-only by every evaluation.
type MarketComposite struct {
	Date       time.Time            `json:"date"`
	Return90d  float64              `json:"return_90d"`
	WeightUsed float64              `json:"weight_used"`
	Components []CompositeComponent `json:"components"`
}

// StageClassification is the trend-template verdict for one symbol and date.
type StageClassification struct {
	Stage           Stage              `json:"stage"`
	CriteriaPassed  int                `json:"criteria_passed"`
	CriteriaFailed  []Criterion        `json:"criteria_failed"`
	Criteria        map[Criterion]bool `json:"criteria"`
	PassesMinervini bool               `json:"passes_minervini"`
}

// Contraction is one peak-to-trough pullback inside a VCP.
type Contraction struct {
	PeakDate        time.Time `json:"peak_date"`
	PeakPrice       float64   `json:"peak_price"`
	TroughDate      time.Time `json:"trough_date"`
	TroughPrice     float64   `json:"trough_price"`
	DepthPct        float64   `json:"depth_pct"`
	AvgVolume       float64   `json:"avg_volume"`
	VolumeDeclining bool      `json:"volume_declining"`
}

// VcpResult is the output of the volatility contraction detector.
type VcpResult struct {
	Detected             bool          `json:"vcp_detected"`
	Score                float64       `json:"vcp_score"`
	ContractionCount     int           `json:"contraction_count"`
	LatestContractionPct *float64      `json:"latest_contraction_pct"`
	VolumeContraction    bool          `json:"volume_contraction"`
	PivotPrice           *float64      `json:"pivot_price"`
	LastContractionLow   *float64      `json:"last_contraction_low"`
	Contractions         []Contraction `json:"contractions,omitempty"`
}

// PrimaryBaseState describes the first base of a newly listed instrument.
type PrimaryBaseState struct {
	IsNewIssue     bool       `json:"is_new_issue"`
	DaysSinceIPO   *int       `json:"days_since_ipo"`
	HasPrimaryBase bool       `json:"has_primary_base"`
	BaseWeeks      *float64   `json:"base_weeks"`
	CorrectionPct  *float64   `json:"correction_pct"`
	Status         BaseStatus `json:"status"`
}

// EarningsSurprise is the most recent reported surprise.
type EarningsSurprise struct {
	ReportDate  time.Time `json:"report_date"`
	SurprisePct float64   `json:"surprise_pct"`
}

// EarningsQuality is the fundamental score of one symbol.
type EarningsQuality struct {
	HasEarningsData      bool              `json:"has_earnings_data"`
	EPSGrowthYoY         *float64          `json:"eps_growth_yoy"`
	EPSGrowthQoQ         *float64          `json:"eps_growth_qoq"`
	RevenueGrowthYoY     *float64          `json:"revenue_growth_yoy"`
	EarningsAcceleration *bool             `json:"earnings_acceleration"`
	AccelerationStreak   *int              `json:"acceleration_streak"`
	AvgSurprisePct       *float64          `json:"avg_surprise_pct"`
	BeatRate             *float64          `json:"beat_rate"`
	HasUpcomingEarnings  *bool             `json:"has_upcoming_earnings"`
	DaysUntilEarnings    *int              `json:"days_until_earnings"`
	NextEarningsDate     *time.Time        `json:"next_earnings_date"`
	Score                *float64          `json:"earnings_quality_score"`
	PassesEarnings       *bool             `json:"passes_earnings"`
	LatestSurprise       *EarningsSurprise `json:"latest_surprise,omitempty"`
}

// EarningsWithin reports whether a scheduled report falls inside the buffer.
func (e EarningsQuality) EarningsWithin(days int) bool {
	return e.DaysUntilEarnings != nil && *e.DaysUntilEarnings <= days
}

// BuySignal is the decision for someone without a position.
type BuySignal struct {
	Signal                 BuySignalType `json:"signal"`
	Reasons                []Reason      `json:"reasons"`
	EntryLow               *float64      `json:"entry_low"`
	EntryHigh              *float64      `json:"entry_high"`
	StopLoss               *float64      `json:"stop_loss"`
	SellTargetConservative *float64      `json:"sell_target_conservative"`
	SellTargetPrimary      *float64      `json:"sell_target_primary"`
	SellTargetAggressive   *float64      `json:"sell_target_aggressive"`
	PartialProfitAt        *float64      `json:"partial_profit_at"`
	RiskRewardRatio        *float64      `json:"risk_reward_ratio"`
	RiskPercent            *float64      `json:"risk_percent"`
}

// HolderSignal is the decision for someone holding a position.
type HolderSignal struct {
	Signal         HolderSignalType `json:"signal"`
	Reasons        []Reason         `json:"reasons"`
	StopInitial    *float64         `json:"stop_initial"`
	StopTrailing   *float64         `json:"stop_trailing"`
	TrailingMethod *TrailingMethod  `json:"trailing_method"`
}
