// Package signals turns an evaluated scorecard into buyer and holder decisions.
package signals

import (
	"math"

	"github.com/irfndi/sepa-screener/internal/models"
	"github.com/irfndi/sepa-screener/internal/utils"
)

// Config holds the entry, stop and target parameters.
type Config struct {
	EntryZonePct        float64 `mapstructure:"entry_zone_pct"`
	BreakoutVolumeRatio float64 `mapstructure:"breakout_volume_ratio"`
	EarningsBufferDays  int     `mapstructure:"earnings_buffer_days"`
	MinStopPct          float64 `mapstructure:"min_stop_pct"`
	MaxStopPct          float64 `mapstructure:"max_stop_pct"`
	StopBufferPct       float64 `mapstructure:"stop_buffer_pct"`
	ATRStopMultiple     float64 `mapstructure:"atr_stop_multiple"`
	PartialProfitPct    float64 `mapstructure:"partial_profit_pct"`
	AggressiveTargetPct float64 `mapstructure:"aggressive_target_pct"`
	ConservativeR       float64 `mapstructure:"conservative_r"`
	PrimaryR            float64 `mapstructure:"primary_r"`
	StrongRS            float64 `mapstructure:"strong_rs"`
	SectorLeaderRS      float64 `mapstructure:"sector_leader_rs"`
	ClimaxMultiple      float64 `mapstructure:"climax_multiple"`
}

// DefaultConfig returns the standard SEPA levels: a 5% entry zone, stops
// 3-8% under entry and targets at 20% and 25%.
func DefaultConfig() Config {
	return Config{
		EntryZonePct:        5,
		BreakoutVolumeRatio: 1.4,
		EarningsBufferDays:  14,
		MinStopPct:          3,
		MaxStopPct:          8,
		StopBufferPct:       1,
		ATRStopMultiple:     2,
		PartialProfitPct:    20,
		AggressiveTargetPct: 25,
		ConservativeR:       2,
		PrimaryR:            3,
		StrongRS:            80,
		SectorLeaderRS:      60,
		ClimaxMultiple:      1.7,
	}
}

// BuyerInput is everything the buyer decision reads.
type BuyerInput struct {
	Snapshot    models.IndicatorSnapshot
	Template    models.StageClassification
	VCP         models.VcpResult
	PrimaryBase models.PrimaryBaseState
	Earnings    models.EarningsQuality
	RSRating    *float64
	SectorRS    *float64
}

type setup int

const (
	setupNone setup = iota
	setupVCP
	setupBreakout
)

// EvaluateBuyer decides BUY, WAIT or PASS for someone without a position.
func EvaluateBuyer(in BuyerInput, cfg Config) models.BuySignal {
	if reasons := passReasons(in); len(reasons) > 0 {
		return models.BuySignal{Signal: models.SignalPass, Reasons: reasons}
	}

	pivot, kind := findPivot(in, cfg)
	var waits []models.Reason
	if kind == setupNone {
		waits = append(waits, models.NewReason(models.ReasonNoSetup, ""))
		if r, ok := earningsReason(in.Earnings, cfg); ok {
			waits = append(waits, r)
		}
		return models.BuySignal{Signal: models.SignalWait, Reasons: waits}
	}

	signal := Levels(pivot, in, cfg)
	price := in.Snapshot.Close
	switch {
	case price < *signal.EntryLow:
		gap := (*signal.EntryLow - price) / *signal.EntryLow * 100
		waits = append(waits, models.NewValueReason(models.ReasonBelowPivot, "", utils.Round(gap, 2)))
	case price > *signal.EntryHigh:
		ext := (price - *signal.EntryLow) / *signal.EntryLow * 100
		waits = append(waits, models.NewValueReason(models.ReasonExtended, "", utils.Round(ext, 2)))
	}
	if !laddered(signal) {
		waits = append(waits, models.NewValueReason(models.ReasonPriceTooLow, "", *signal.EntryLow))
	}
	if r, ok := earningsReason(in.Earnings, cfg); ok {
		waits = append(waits, r)
	}
	if len(waits) > 0 {
		signal.Signal = models.SignalWait
		signal.Reasons = waits
		return signal
	}

	signal.Signal = models.SignalBuy
	signal.Reasons = buyReasons(in, kind, cfg)
	return signal
}

// passReasons lists why a symbol is not a candidate at all.
func passReasons(in BuyerInput) []models.Reason {
	var reasons []models.Reason
	if !in.Template.PassesMinervini {
		for _, c := range in.Template.CriteriaFailed {
			reasons = append(reasons, models.NewReason(models.ReasonTemplateFailed, string(c)))
		}
		if len(reasons) == 0 {
			reasons = append(reasons, models.NewReason(models.ReasonTemplateFailed, ""))
		}
	}
	if in.PrimaryBase.IsNewIssue && in.PrimaryBase.Status != models.BaseComplete {
		reasons = append(reasons, models.NewReason(models.ReasonBaseIncomplete, string(in.PrimaryBase.Status)))
	}
	return reasons
}

// findPivot prefers a detected VCP pivot and falls back to a fresh
// high-volume break of the prior 20-bar high.
func findPivot(in BuyerInput, cfg Config) (float64, setup) {
	if in.VCP.Detected && in.VCP.PivotPrice != nil && *in.VCP.PivotPrice > 0 {
		return *in.VCP.PivotPrice, setupVCP
	}
	snap := in.Snapshot
	if snap.Resistance != nil && *snap.Resistance > 0 && snap.Close > *snap.Resistance &&
		snap.VolumeRatio != nil && *snap.VolumeRatio >= cfg.BreakoutVolumeRatio {
		return utils.RoundPrice(*snap.Resistance), setupBreakout
	}
	return 0, setupNone
}

func earningsReason(eq models.EarningsQuality, cfg Config) (models.Reason, bool) {
	if !eq.EarningsWithin(cfg.EarningsBufferDays) {
		return models.Reason{}, false
	}
	return models.NewValueReason(models.ReasonEarningsSoon, "", float64(*eq.DaysUntilEarnings)), true
}

func buyReasons(in BuyerInput, kind setup, cfg Config) []models.Reason {
	var reasons []models.Reason
	switch kind {
	case setupVCP:
		reasons = append(reasons, models.NewValueReason(models.ReasonVCPEntry, "", in.VCP.Score))
	case setupBreakout:
		reasons = append(reasons, models.NewValueReason(models.ReasonResistanceBreakout, "", utils.Round(*in.Snapshot.VolumeRatio, 2)))
	}
	if in.RSRating != nil && *in.RSRating >= cfg.StrongRS {
		reasons = append(reasons, models.NewValueReason(models.ReasonStrongRS, "", *in.RSRating))
	}
	if in.Earnings.PassesEarnings != nil && *in.Earnings.PassesEarnings && in.Earnings.Score != nil {
		reasons = append(reasons, models.NewValueReason(models.ReasonStrongEarnings, "", *in.Earnings.Score))
	}
	if in.SectorRS != nil && *in.SectorRS >= cfg.SectorLeaderRS {
		reasons = append(reasons, models.NewValueReason(models.ReasonSectorLeader, "", *in.SectorRS))
	}
	if in.PrimaryBase.IsNewIssue && in.PrimaryBase.HasPrimaryBase {
		reasons = append(reasons, models.NewReason(models.ReasonPrimaryBaseComplete, ""))
	}
	return reasons
}

// Levels computes the entry zone, stop and targets around a pivot. All prices
// are rounded to cents and satisfy
// stop < entry_low <= entry_high < partial < conservative <= primary <= aggressive.
func Levels(pivot float64, in BuyerInput, cfg Config) models.BuySignal {
	entry := utils.RoundPrice(pivot)
	entryHigh := utils.RoundPrice(entry * (1 + cfg.EntryZonePct/100))
	stop := stopLoss(entry, in, cfg)
	risk := utils.RoundPrice(entry - stop)

	partial := utils.RoundPrice(entry * (1 + cfg.PartialProfitPct/100))
	aggressive := utils.RoundPrice(entry * (1 + cfg.AggressiveTargetPct/100))
	conservative := utils.RoundPrice(math.Min(math.Max(entry+cfg.ConservativeR*risk, partial+0.01), aggressive))
	primary := utils.RoundPrice(math.Min(math.Max(entry+cfg.PrimaryR*risk, conservative), aggressive))

	return models.BuySignal{
		EntryLow:               utils.Float(entry),
		EntryHigh:              utils.Float(entryHigh),
		StopLoss:               utils.Float(stop),
		SellTargetConservative: utils.Float(conservative),
		SellTargetPrimary:      utils.Float(primary),
		SellTargetAggressive:   utils.Float(aggressive),
		PartialProfitAt:        utils.Float(partial),
		RiskRewardRatio:        utils.Float(utils.Round((primary-entry)/risk, 1)),
		RiskPercent:            utils.Float(utils.Round(risk/entry*100, 2)),
	}
}

// laddered reports whether the cent-rounded levels keep their strict order.
// Sub-dollar pivots can collapse partial and the targets onto the same cent.
func laddered(s models.BuySignal) bool {
	return *s.StopLoss < *s.EntryLow &&
		*s.EntryLow <= *s.EntryHigh &&
		*s.EntryHigh < *s.PartialProfitAt &&
		*s.PartialProfitAt < *s.SellTargetConservative &&
		*s.SellTargetConservative <= *s.SellTargetPrimary &&
		*s.SellTargetPrimary <= *s.SellTargetAggressive
}

// stopLoss takes the highest structural stop under entry and keeps it
// between MinStopPct and MaxStopPct below entry.
func stopLoss(entry float64, in BuyerInput, cfg Config) float64 {
	buffer := 1 - cfg.StopBufferPct/100
	var candidates []float64
	if in.VCP.LastContractionLow != nil {
		candidates = append(candidates, *in.VCP.LastContractionLow*buffer)
	}
	if in.Snapshot.SwingLow != nil {
		candidates = append(candidates, *in.Snapshot.SwingLow*buffer)
	}
	if in.Snapshot.EMA21 != nil {
		candidates = append(candidates, *in.Snapshot.EMA21*buffer)
	}
	if in.Snapshot.ATR14 != nil {
		candidates = append(candidates, entry-cfg.ATRStopMultiple*(*in.Snapshot.ATR14))
	}

	floor := entry * (1 - cfg.MaxStopPct/100)
	ceiling := entry * (1 - cfg.MinStopPct/100)
	stop := floor
	for _, c := range candidates {
		if c > 0 && c < entry && c > stop {
			stop = c
		}
	}
	stop = utils.RoundPrice(utils.Clamp(stop, floor, ceiling))
	if stop >= entry {
		stop = utils.RoundPrice(entry - 0.01)
	}
	return stop
}
