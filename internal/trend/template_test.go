package trend

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/irfndi/sepa-screener/internal/models"
	"github.com/irfndi/sepa-screener/internal/utils"
)

func f(v float64) *float64 { return utils.Float(v) }
func b(v bool) *bool       { return &v }

// advancingSnapshot is close=100 with MA-50/150/200 at 95/90/85, a rising
// MA-200, 10% under the 52-week high and 35% above the low.
func advancingSnapshot() models.IndicatorSnapshot {
	return models.IndicatorSnapshot{
		Close:           100,
		SMA50:           f(95),
		SMA150:          f(90),
		SMA200:          f(85),
		MA200TrendingUp: true,
		PctFromHigh:     f(-10),
		PctFromLow:      f(35),
	}
}

func TestEvaluate_AdvancingScenarioPasses(t *testing.T) {
	got := Evaluate(advancingSnapshot(), f(80), nil)

	assert.True(t, got.PassesMinervini)
	assert.Equal(t, models.StageAdvancing, got.Stage)
	assert.Equal(t, 9, got.CriteriaPassed)
	assert.Empty(t, got.CriteriaFailed)
}

func TestEvaluate_MissingFundamentalsDoNotChangePass(t *testing.T) {
	withoutData := Evaluate(advancingSnapshot(), f(80), nil)
	withPassingData := Evaluate(advancingSnapshot(), f(80), b(true))

	assert.Equal(t, withoutData.PassesMinervini, withPassingData.PassesMinervini)
	assert.Equal(t, withoutData.CriteriaPassed, withPassingData.CriteriaPassed)
}

func TestEvaluate_FailingEarningsFailsTemplate(t *testing.T) {
	got := Evaluate(advancingSnapshot(), f(80), b(false))

	assert.False(t, got.PassesMinervini)
	assert.Equal(t, 8, got.CriteriaPassed)
	assert.Equal(t, []models.Criterion{models.CriterionEarnings}, got.CriteriaFailed)
}

func TestEvaluate_FailedListMatchesTally(t *testing.T) {
	snaps := []models.IndicatorSnapshot{
		{},
		{Close: 10},
		advancingSnapshot(),
		{Close: 50, SMA50: f(60), SMA150: f(70), SMA200: f(80), MA200TrendingDown: true, PctFromHigh: f(-60), PctFromLow: f(2)},
	}
	rsValues := []*float64{nil, f(0), f(69.99), f(70), f(100)}

	for _, snap := range snaps {
		for _, rs := range rsValues {
			got := Evaluate(snap, rs, nil)
			assert.True(t, got.Stage.Valid())
			assert.GreaterOrEqual(t, got.CriteriaPassed, 0)
			assert.LessOrEqual(t, got.CriteriaPassed, 9)
			assert.Len(t, got.CriteriaFailed, 9-got.CriteriaPassed)
		}
	}
}

func TestEvaluate_RSThreshold(t *testing.T) {
	got := Evaluate(advancingSnapshot(), f(69), nil)
	assert.False(t, got.PassesMinervini)
	assert.Equal(t, []models.Criterion{models.CriterionRelativeStrength}, got.CriteriaFailed)

	assert.False(t, Evaluate(advancingSnapshot(), nil, nil).PassesMinervini)
}

func TestEvaluate_FailedCriteriaKeepOrder(t *testing.T) {
	snap := advancingSnapshot()
	snap.Close = 89 // below MA-50 and MA-150
	snap.PctFromHigh = f(-30)

	got := Evaluate(snap, f(80), nil)
	assert.Equal(t, []models.Criterion{
		models.CriterionPriceAbove150And200,
		models.CriterionPriceAbove50,
		models.CriterionNearHigh,
	}, got.CriteriaFailed)
}

func TestClassify_Declining(t *testing.T) {
	snap := models.IndicatorSnapshot{Close: 50, SMA50: f(60), SMA150: f(70), SMA200: f(80), MA200TrendingDown: true}
	assert.Equal(t, models.StageDeclining, Classify(snap, f(10)))
}

func TestClassify_Basing(t *testing.T) {
	snap := models.IndicatorSnapshot{Close: 51, SMA50: f(50), SMA150: f(49), SMA200: f(50.5)}
	assert.Equal(t, models.StageBasing, Classify(snap, f(45)))

	// RS outside the moderate band leaves it as Stage 3.
	assert.Equal(t, models.StageTopping, Classify(snap, f(85)))
	assert.Equal(t, models.StageTopping, Classify(snap, nil))
}

func TestClassify_TieDefaultsToTopping(t *testing.T) {
	// Aligned and rising but also tightly converged with moderate RS.
	snap := models.IndicatorSnapshot{Close: 52, SMA50: f(51), SMA150: f(50.5), SMA200: f(50), MA200TrendingUp: true}
	assert.Equal(t, models.StageTopping, Classify(snap, f(50)))
	assert.Equal(t, models.StageAdvancing, Classify(snap, f(90)))
}

func TestClassify_FlatteningIsTopping(t *testing.T) {
	snap := advancingSnapshot()
	snap.MA200TrendingUp = false
	assert.Equal(t, models.StageTopping, Classify(snap, f(80)))
}

func TestClassify_MissingAveragesIsTopping(t *testing.T) {
	assert.Equal(t, models.StageTopping, Classify(models.IndicatorSnapshot{Close: 10, SMA50: f(9)}, f(60)))
}
