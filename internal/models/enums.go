package models

// Stage is the market-cycle phase of an instrument.
type Stage int

const (
	StageBasing    Stage = 1
	StageAdvancing Stage = 2
	StageTopping   Stage = 3
	StageDeclining Stage = 4
)

// Valid reports whether s is one of the four stages.
func (s Stage) Valid() bool {
	return s >= StageBasing && s <= StageDeclining
}

func (s Stage) String() string {
	switch s {
	case StageBasing:
		return "Stage 1 (basing)"
	case StageAdvancing:
		return "Stage 2 (advancing)"
	case StageTopping:
		return "Stage 3 (topping)"
	case StageDeclining:
		return "Stage 4 (declining)"
	default:
		return "unknown stage"
	}
}

// BuySignalType is the buyer-side decision.
type BuySignalType string

const (
	SignalBuy  BuySignalType = "BUY"
	SignalWait BuySignalType = "WAIT"
	SignalPass BuySignalType = "PASS"
)

// Valid reports whether t is a known buyer signal.
func (t BuySignalType) Valid() bool {
	switch t {
	case SignalBuy, SignalWait, SignalPass:
		return true
	}
	return false
}

// HolderSignalType is the holder-side decision.
type HolderSignalType string

const (
	SignalHold HolderSignalType = "HOLD"
	SignalSell HolderSignalType = "SELL"
)

// Valid reports whether t is a known holder signal.
func (t HolderSignalType) Valid() bool {
	return t == SignalHold || t == SignalSell
}

// BaseStatus is the primary-base state of a new issue.
type BaseStatus string

const (
	BaseNotApplicable BaseStatus = "N/A"
	BaseTooEarly      BaseStatus = "TOO_EARLY"
	BaseForming       BaseStatus = "FORMING"
	BaseComplete      BaseStatus = "COMPLETE"
	BaseFailed        BaseStatus = "FAILED"
)

// Valid reports whether s is a known base status.
func (s BaseStatus) Valid() bool {
	switch s {
	case BaseNotApplicable, BaseTooEarly, BaseForming, BaseComplete, BaseFailed:
		return true
	}
	return false
}

// TrailingMethod names the moving average used as a trailing stop.
type TrailingMethod string

const (
	TrailEMA10 TrailingMethod = "EMA-10"
	TrailEMA21 TrailingMethod = "EMA-21"
	TrailMA50  TrailingMethod = "MA-50"
	TrailMA200 TrailingMethod = "MA-200"
)

// TrailingMethods lists the trailing references from fastest to slowest.
var TrailingMethods = []TrailingMethod{TrailEMA10, TrailEMA21, TrailMA50, TrailMA200}

// Valid reports whether m is a known trailing method.
func (m TrailingMethod) Valid() bool {
	for _, known := range TrailingMethods {
		if m == known {
			return true
		}
	}
	return false
}

// NotificationType classifies watch-list events.
type NotificationType string

const (
	NotifyWaitToBuy        NotificationType = "WAIT_TO_BUY"
	NotifyMetricChange     NotificationType = "METRIC_CHANGE"
	NotifyEarningsSurprise NotificationType = "EARNINGS_SURPRISE"
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotifyWaitToBuy, NotifyMetricChange, NotifyEarningsSurprise:
		return true
	}
	return false
}

// Criterion names one trend-template check.
type Criterion string

const (
	CriterionPriceAbove150And200 Criterion = "price_above_150_and_200ma"
	CriterionMA150Above200       Criterion = "ma150_above_ma200"
	CriterionMA200TrendingUp     Criterion = "ma200_trending_up"
	CriterionMA50AboveOthers     Criterion = "ma50_above_150_and_200"
	CriterionPriceAbove50        Criterion = "price_above_50ma"
	CriterionNearHigh            Criterion = "within_25pct_of_high"
	CriterionAboveLow            Criterion = "above_30pct_from_low"
	CriterionRelativeStrength    Criterion = "rs_at_least_70"
	CriterionEarnings            Criterion = "earnings_pass"
)

// TemplateCriteria is the fixed evaluation order of the trend template.
var TemplateCriteria = []Criterion{
	CriterionPriceAbove150And200,
	CriterionMA150Above200,
	CriterionMA200TrendingUp,
	CriterionMA50AboveOthers,
	CriterionPriceAbove50,
	CriterionNearHigh,
	CriterionAboveLow,
	CriterionRelativeStrength,
	CriterionEarnings,
}

// MarketCapTier buckets listings by capitalization.
type MarketCapTier string

const (
	CapUnknown MarketCapTier = ""
	CapMicro   MarketCapTier = "MICRO"
	CapSmall   MarketCapTier = "SMALL"
	CapMid     MarketCapTier = "MID"
	CapLarge   MarketCapTier = "LARGE"
	CapMega    MarketCapTier = "MEGA"
)
