package signals

import (
	"github.com/irfndi/sepa-screener/internal/models"
	"github.com/irfndi/sepa-screener/internal/utils"
)

// HolderInput is everything the holder decision reads. PreviousStage is the
// stage from the prior run when the caller has one.
type HolderInput struct {
	Snapshot      models.IndicatorSnapshot
	Stage         models.Stage
	PreviousStage *models.Stage
}

// EvaluateHolder decides HOLD or SELL for an open position. It does not
// depend on the buyer signal.
func EvaluateHolder(in HolderInput, cfg Config) models.HolderSignal {
	snap := in.Snapshot
	price := snap.Close
	out := models.HolderSignal{
		Signal:      models.SignalHold,
		StopInitial: initialStop(snap, cfg),
	}

	if method, ok := trailingMethod(snap, in.Stage); ok {
		out.TrailingMethod = &method
		out.StopTrailing = utils.Float(utils.RoundPrice(*snap.MovingAverage(method)))
	}

	var sells []models.Reason
	if out.StopTrailing != nil && price < *out.StopTrailing {
		sells = append(sells, models.NewValueReason(models.ReasonBelowTrailingStop, string(*out.TrailingMethod), *out.StopTrailing))
	}
	if in.Stage == models.StageDeclining {
		sells = append(sells, models.NewReason(models.ReasonStage4, ""))
	}
	if snap.SMA50 != nil && price < *snap.SMA50 && wasAdvancing(in) {
		sells = append(sells, models.NewReason(models.ReasonLost50MA, ""))
	}

	if len(sells) > 0 {
		out.Signal = models.SignalSell
		out.Reasons = sells
	} else {
		out.Reasons = []models.Reason{models.NewReason(models.ReasonTrendIntact, "")}
	}
	if out.TrailingMethod == nil {
		out.Reasons = append(out.Reasons, models.NewReason(models.ReasonNoTrailingRef, ""))
	}
	if snap.SMA200 != nil && *snap.SMA200 > 0 && price > *snap.SMA200*cfg.ClimaxMultiple {
		above := (price - *snap.SMA200) / *snap.SMA200 * 100
		out.Reasons = append(out.Reasons, models.NewValueReason(models.ReasonClimaxRun, "", utils.Round(above, 2)))
	}
	return out
}

// initialStop sits two ATRs under the close, kept between MinStopPct and
// MaxStopPct.
func initialStop(snap models.IndicatorSnapshot, cfg Config) *float64 {
	if snap.Close <= 0 {
		return nil
	}
	pct := cfg.MaxStopPct
	if snap.ATRPct != nil {
		pct = utils.Clamp(cfg.ATRStopMultiple*(*snap.ATRPct), cfg.MinStopPct, cfg.MaxStopPct)
	}
	return utils.Float(utils.RoundPrice(snap.Close * (1 - pct/100)))
}

// trailingMethod picks the starting average from trend and volatility, then
// walks toward slower averages until one was under the previous close.
func trailingMethod(snap models.IndicatorSnapshot, stage models.Stage) (models.TrailingMethod, bool) {
	if snap.PrevClose == nil {
		return "", false
	}
	start := models.TrailMA200
	if stage == models.StageAdvancing {
		switch {
		case snap.ATRPct != nil && *snap.ATRPct < 3:
			start = models.TrailEMA10
		case snap.ATRPct != nil && *snap.ATRPct < 5:
			start = models.TrailEMA21
		default:
			start = models.TrailMA50
		}
	}

	started := false
	for _, m := range models.TrailingMethods {
		if m == start {
			started = true
		}
		if !started {
			continue
		}
		prev, cur := snap.PrevMovingAverage(m), snap.MovingAverage(m)
		if prev != nil && cur != nil && *prev < *snap.PrevClose {
			return m, true
		}
	}
	return "", false
}

// wasAdvancing reports whether the position was in a Stage 2 advance. Without
// a prior stage the moving-average alignment stands in for it.
func wasAdvancing(in HolderInput) bool {
	if in.PreviousStage != nil {
		return *in.PreviousStage == models.StageAdvancing
	}
	s := in.Snapshot
	if s.SMA50 == nil || s.SMA150 == nil || s.SMA200 == nil {
		return false
	}
	return *s.SMA50 > *s.SMA150 && *s.SMA150 > *s.SMA200 && s.MA200TrendingUp
}
