// Package trend evaluates the trend template and classifies market stage.
package trend

import (
	"math"

	"github.com/irfndi/sepa-screener/internal/models"
)

const (
	MaxPctBelowHigh  = -25.0
	MinPctAboveLow   = 30.0
	MinRS            = 70.0
	ConvergingSpread = 5.0
	ModerateRSLow    = 30.0
	ModerateRSHigh   = 70.0
)

// Evaluate runs the nine template checks and the stage rule table.
// earningsPass is nil when the symbol has no fundamentals; the earnings
// check is then treated as not applicable and counts as passed.
func Evaluate(snap models.IndicatorSnapshot, rs *float64, earningsPass *bool) models.StageClassification {
	checks := Criteria(snap, rs, earningsPass)

	result := models.StageClassification{
		Criteria:       checks,
		CriteriaFailed: []models.Criterion{},
	}
	for _, c := range models.TemplateCriteria {
		if checks[c] {
			result.CriteriaPassed++
		} else {
			result.CriteriaFailed = append(result.CriteriaFailed, c)
		}
	}
	result.PassesMinervini = len(result.CriteriaFailed) == 0
	result.Stage = Classify(snap, rs)
	return result
}

// Criteria evaluates each template check. Checks whose inputs are unavailable fail.
func Criteria(snap models.IndicatorSnapshot, rs *float64, earningsPass *bool) map[models.Criterion]bool {
	price := snap.Close
	ma50, ma150, ma200 := snap.SMA50, snap.SMA150, snap.SMA200
	haveMAs := ma50 != nil && ma150 != nil && ma200 != nil

	checks := make(map[models.Criterion]bool, len(models.TemplateCriteria))
	checks[models.CriterionPriceAbove150And200] = ma150 != nil && ma200 != nil && price > *ma150 && price > *ma200
	checks[models.CriterionMA150Above200] = ma150 != nil && ma200 != nil && *ma150 > *ma200
	checks[models.CriterionMA200TrendingUp] = snap.MA200TrendingUp
	checks[models.CriterionMA50AboveOthers] = haveMAs && *ma50 > *ma150 && *ma50 > *ma200
	checks[models.CriterionPriceAbove50] = ma50 != nil && price > *ma50
	checks[models.CriterionNearHigh] = snap.PctFromHigh != nil && *snap.PctFromHigh >= MaxPctBelowHigh
	checks[models.CriterionAboveLow] = snap.PctFromLow != nil && *snap.PctFromLow >= MinPctAboveLow
	checks[models.CriterionRelativeStrength] = rs != nil && *rs >= MinRS
	checks[models.CriterionEarnings] = earningsPass == nil || *earningsPass
	return checks
}

// Classify applies the stage rule table. A snapshot matching several rules,
// or none, is Stage 3.
func Classify(snap models.IndicatorSnapshot, rs *float64) models.Stage {
	if snap.SMA50 == nil || snap.SMA150 == nil || snap.SMA200 == nil {
		return models.StageTopping
	}
	price := snap.Close
	ma50, ma150, ma200 := *snap.SMA50, *snap.SMA150, *snap.SMA200

	advancing := price > ma50 && price > ma150 && price > ma200 &&
		ma50 > ma150 && ma150 > ma200 && snap.MA200TrendingUp
	declining := price < ma50 && price < ma150 && price < ma200 &&
		ma50 < ma150 && ma150 < ma200 && snap.MA200TrendingDown
	basing := converging(ma50, ma150, ma200) && rs != nil &&
		*rs >= ModerateRSLow && *rs < ModerateRSHigh

	matches := 0
	stage := models.StageTopping
	for _, m := range []struct {
		ok    bool
		stage models.Stage
	}{
		{advancing, models.StageAdvancing},
		{declining, models.StageDeclining},
		{basing, models.StageBasing},
	} {
		if m.ok {
			matches++
			stage = m.stage
		}
	}
	if matches != 1 {
		return models.StageTopping
	}
	return stage
}

// converging reports whether the three averages sit within ConvergingSpread
// percent of each other.
func converging(a, b, c float64) bool {
	lo := math.Min(a, math.Min(b, c))
	hi := math.Max(a, math.Max(b, c))
	if lo <= 0 {
		return false
	}
	return (hi-lo)/lo*100 <= ConvergingSpread
}
