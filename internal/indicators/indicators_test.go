package indicators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/sepa-screener/internal/models"
)

var start = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

// buildSeries creates n daily bars whose close is closeAt(i) with a fixed
// one-point range around it.
func buildSeries(n int, closeAt func(i int) float64) models.PriceSeries {
	bars := make([]models.PriceBar, n)
	for i := 0; i < n; i++ {
		c := closeAt(i)
		bars[i] = models.PriceBar{
			Date:   start.AddDate(0, 0, i),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1000,
		}
	}
	return models.PriceSeries{Symbol: "TEST", Bars: bars}
}

func lastDate(s models.PriceSeries) time.Time {
	return s.Bars[len(s.Bars)-1].Date
}

func TestCompute_FlatSeries(t *testing.T) {
	s := buildSeries(300, func(int) float64 { return 50 })
	snap := Compute(s, lastDate(s))

	require.NotNil(t, snap.SMA50)
	require.NotNil(t, snap.SMA200)
	require.NotNil(t, snap.EMA10)
	assert.InDelta(t, 50.0, *snap.SMA50, 1e-9)
	assert.InDelta(t, 50.0, *snap.SMA150, 1e-9)
	assert.InDelta(t, 50.0, *snap.SMA200, 1e-9)
	assert.InDelta(t, 50.0, *snap.EMA10, 1e-9)
	assert.InDelta(t, 50.0, *snap.EMA21, 1e-9)

	require.NotNil(t, snap.ATR14)
	assert.InDelta(t, 2.0, *snap.ATR14, 1e-9)
	assert.InDelta(t, 4.0, *snap.ATRPct, 1e-9)

	assert.Equal(t, 51.0, *snap.High52Week)
	assert.Equal(t, 49.0, *snap.Low52Week)
	assert.True(t, snap.Is52WeekHigh)
	assert.Equal(t, 0, *snap.DaysSince52WeekHigh)
	assert.InDelta(t, -1.96, *snap.PctFromHigh, 0.01)

	assert.False(t, snap.MA200TrendingUp)
	assert.False(t, snap.MA200TrendingDown)
	assert.InDelta(t, 0.0, *snap.Return12M, 1e-9)
	assert.InDelta(t, 1.0, *snap.VolumeRatio, 1e-9)
	assert.InDelta(t, 50000.0, *snap.AvgDollarVolume50, 1e-6)
}

func TestCompute_RisingSeriesTrendsUp(t *testing.T) {
	s := buildSeries(300, func(i int) float64 { return 20 + float64(i)*0.25 })
	snap := Compute(s, lastDate(s))

	require.NotNil(t, snap.SMA200)
	require.NotNil(t, snap.SMA200Prior20)
	assert.True(t, snap.MA200TrendingUp)
	assert.False(t, snap.MA200TrendingDown)
	assert.Greater(t, *snap.MA200Trend20dPct, 0.0)
	assert.Greater(t, *snap.SMA50, *snap.SMA150)
	assert.Greater(t, *snap.SMA150, *snap.SMA200)

	// Linear closes: SMA-50 equals the mean of the last 50 closes.
	assert.InDelta(t, 20+0.25*(299-24.5), *snap.SMA50, 1e-6)
	assert.Greater(t, *snap.Return3M, 0.0)
	assert.Greater(t, *snap.Return90d, 0.0)
}

func TestCompute_FallingSeriesTrendsDown(t *testing.T) {
	s := buildSeries(260, func(i int) float64 { return 200 - float64(i)*0.5 })
	snap := Compute(s, lastDate(s))

	assert.True(t, snap.MA200TrendingDown)
	assert.False(t, snap.MA200TrendingUp)
	assert.Less(t, *snap.PctFromHigh, -25.0)
}

func TestCompute_ShortHistoryLeavesFieldsNil(t *testing.T) {
	s := buildSeries(30, func(i int) float64 { return 10 + float64(i) })
	snap := Compute(s, lastDate(s))

	assert.Equal(t, 30, snap.BarCount)
	assert.Nil(t, snap.SMA50)
	assert.Nil(t, snap.SMA200)
	assert.Nil(t, snap.High52Week)
	assert.Nil(t, snap.PctFromLow)
	assert.Nil(t, snap.DaysSince52WeekHigh)
	assert.Nil(t, snap.Return3M)
	assert.Nil(t, snap.Return90d)
	assert.NotNil(t, snap.Return1M)
	assert.NotNil(t, snap.EMA21)
	assert.NotNil(t, snap.ATR14)
	assert.NotNil(t, snap.VolumeRatio)
}

func TestCompute_SingleBarAndEmpty(t *testing.T) {
	s := buildSeries(1, func(int) float64 { return 5 })
	snap := Compute(s, lastDate(s))
	assert.Equal(t, 5.0, snap.Close)
	assert.Nil(t, snap.ATR14)
	assert.Nil(t, snap.EMA10)
	assert.Nil(t, snap.PrevClose)

	empty := Compute(models.PriceSeries{Symbol: "NONE"}, start)
	assert.Equal(t, 0, empty.BarCount)
	assert.Nil(t, empty.SMA50)
}

func TestCompute_IgnoresBarsAfterDate(t *testing.T) {
	s := buildSeries(100, func(i int) float64 { return float64(i + 1) })
	asOf := s.Bars[59].Date
	snap := Compute(s, asOf)

	assert.Equal(t, 60, snap.BarCount)
	assert.Equal(t, 60.0, snap.Close)
	assert.Equal(t, asOf, snap.Date)
	require.NotNil(t, snap.PrevClose)
	assert.Equal(t, 59.0, *snap.PrevClose)
}

func TestCompute_DegenerateLowGivesNil(t *testing.T) {
	s := buildSeries(260, func(int) float64 { return 0.5 })
	snap := Compute(s, lastDate(s))

	require.NotNil(t, snap.Low52Week)
	assert.Equal(t, -0.5, *snap.Low52Week)
	assert.Nil(t, snap.PctFromLow)
}

func TestTrueRangeAndATR(t *testing.T) {
	highs := []float64{10, 12, 11}
	lows := []float64{9, 10, 8}
	closes := []float64{9.5, 11, 9}

	assert.Equal(t, []float64{2.5, 3}, TrueRange(highs, lows, closes))
	assert.Nil(t, TrueRange(highs[:1], lows[:1], closes[:1]))
	assert.Nil(t, ATR(highs, lows, closes, 14))

	atr := ATR(highs, lows, closes, 2)
	require.NotNil(t, atr)
	assert.InDelta(t, 2.75, *atr, 1e-9)
}

func TestBarReturn(t *testing.T) {
	closes := []float64{50, 55, 60, 100}
	r := BarReturn(closes, 3)
	require.NotNil(t, r)
	assert.InDelta(t, 100.0, *r, 1e-9)
	assert.Nil(t, BarReturn(closes, 4))
	assert.Nil(t, BarReturn([]float64{0, 10}, 1))
}

func TestCalendarReturn_RequiresCoverage(t *testing.T) {
	s := buildSeries(40, func(i int) float64 { return 10 + float64(i) })
	assert.Nil(t, CalendarReturn(s.Bars, lastDate(s), 90))

	long := buildSeries(120, func(i int) float64 { return 10 + float64(i) })
	r := CalendarReturn(long.Bars, lastDate(long), 90)
	require.NotNil(t, r)
	// First bar inside the window is index 29 (close 39); last close is 129.
	assert.InDelta(t, (129.0-39.0)/39.0*100, *r, 1e-9)
}

func TestSwingLow(t *testing.T) {
	lows := []float64{10, 9, 8, 9, 10, 11, 12, 11, 10.5, 11, 12, 13, 14}
	got := SwingLow(lows, 30)
	require.NotNil(t, got)
	assert.Equal(t, 10.5, *got)

	assert.Nil(t, SwingLow([]float64{5, 6, 7, 8, 9, 10}, 30))
	assert.Nil(t, SwingLow([]float64{1, 2}, 30))
}

func TestResistance(t *testing.T) {
	highs := make([]float64, 25)
	for i := range highs {
		highs[i] = 10
	}
	highs[10] = 15
	highs[24] = 20

	got := Resistance(highs, 20)
	require.NotNil(t, got)
	assert.Equal(t, 15.0, *got)
	assert.Nil(t, Resistance(highs[:10], 20))
}

func TestVolumeRatio(t *testing.T) {
	volumes := make([]float64, 60)
	for i := range volumes {
		volumes[i] = 100
	}
	volumes[59] = 250
	got := VolumeRatio(volumes, 50)
	require.NotNil(t, got)
	assert.InDelta(t, 2.5, *got, 1e-9)

	assert.Nil(t, VolumeRatio(volumes[:20], 50))
	assert.Nil(t, VolumeRatio(make([]float64, 40), 50))
}
