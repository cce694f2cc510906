// Package indicators derives the per-date indicator snapshot from a price series.
// Every output that lacks enough history is left nil; nothing here returns an error.
package indicators

import (
	"math"
	"time"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/cinar/indicator/v2/volatility"

	"github.com/irfndi/sepa-screener/internal/models"
	"github.com/irfndi/sepa-screener/internal/utils"
)

const (
	ATRPeriod         = 14
	YearBars          = 252
	SlopeLookback     = 20
	DollarVolumeBars  = 50
	MinVolumeBars     = 25
	SwingLookbackBars = 30
	SwingSideBars     = 2
	ResistanceBars    = 20
	NearHighTolerance = 0.995
	RSReturnCalendar  = 90
	RSMinCoverageDays = 60

	periodShortMA = 50
	periodMidMA   = 150
	periodLongMA  = 200
	periodFastEMA = 10
	periodSlowEMA = 21
)

// ReturnHorizons maps the snapshot return fields to their bar offsets.
var ReturnHorizons = []int{21, 63, 126, 252}

// Compute builds the indicator snapshot for the bar on or before date.
func Compute(series models.PriceSeries, date time.Time) models.IndicatorSnapshot {
	s := series.Truncate(date)
	bars := s.Bars
	snap := models.IndicatorSnapshot{Date: date, BarCount: len(bars)}
	if len(bars) == 0 {
		return snap
	}

	last := bars[len(bars)-1]
	snap.Date = last.Date
	snap.Close = last.Close
	snap.High = last.High
	snap.Volume = last.Volume

	closes := s.Closes()

	sma50 := SMA(closes, periodShortMA)
	sma150 := SMA(closes, periodMidMA)
	sma200 := SMA(closes, periodLongMA)
	ema10 := EMA(closes, periodFastEMA)
	ema21 := EMA(closes, periodSlowEMA)

	snap.SMA50 = tail(sma50, 0)
	snap.SMA150 = tail(sma150, 0)
	snap.SMA200 = tail(sma200, 0)
	snap.EMA10 = tail(ema10, 0)
	snap.EMA21 = tail(ema21, 0)

	snap.PrevSMA50 = tail(sma50, 1)
	snap.PrevSMA200 = tail(sma200, 1)
	snap.PrevEMA10 = tail(ema10, 1)
	snap.PrevEMA21 = tail(ema21, 1)
	if len(bars) > 1 {
		snap.PrevClose = utils.Float(bars[len(bars)-2].Close)
	}

	if prior := tail(sma200, SlopeLookback); prior != nil && snap.SMA200 != nil {
		snap.SMA200Prior20 = prior
		snap.MA200TrendingUp = *prior < *snap.SMA200
		snap.MA200TrendingDown = *prior > *snap.SMA200
		snap.MA200Trend20dPct = utils.PercentChange(*prior, *snap.SMA200)
	}

	snap.ATR14 = ATR(s.Highs(), s.Lows(), closes, ATRPeriod)
	if snap.ATR14 != nil && last.Close > 0 {
		snap.ATRPct = utils.Float(*snap.ATR14 / last.Close * 100)
	}

	fillYearRange(&snap, bars)

	returns := []**float64{&snap.Return1M, &snap.Return3M, &snap.Return6M, &snap.Return12M}
	for i, horizon := range ReturnHorizons {
		*returns[i] = BarReturn(closes, horizon)
	}
	snap.Return90d = CalendarReturn(bars, last.Date, RSReturnCalendar)

	snap.AvgDollarVolume50 = AvgDollarVolume(bars, DollarVolumeBars)
	snap.VolumeRatio = VolumeRatio(s.Volumes(), DollarVolumeBars)
	snap.SwingLow = SwingLow(s.Lows(), SwingLookbackBars)
	snap.Resistance = Resistance(s.Highs(), ResistanceBars)

	return snap
}

// SMA returns the simple moving average series aligned to the end of values.
// The result is empty when there are fewer values than the period.
func SMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	sma := trend.NewSmaWithPeriod[float64](period)
	return helper.ChanToSlice(sma.Compute(helper.SliceToChan(values)))
}

// EMA returns the SMA-seeded exponential moving average series (alpha 2/(N+1)).
func EMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	ema := trend.NewEmaWithPeriod[float64](period)
	return helper.ChanToSlice(ema.Compute(helper.SliceToChan(values)))
}

// TrueRange returns max(h-l, |h-prevClose|, |l-prevClose|) for every bar
// that has a previous close, so the result is one shorter than the input.
func TrueRange(highs, lows, closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	return atrSeries(highs, lows, closes, 1)
}

// ATR is the simple rolling mean of the last period true ranges.
// The first bar is excluded so every true range uses a previous close.
func ATR(highs, lows, closes []float64, period int) *float64 {
	if period <= 0 || len(closes) < period+1 {
		return nil
	}
	return tail(atrSeries(highs, lows, closes, period), 0)
}

func atrSeries(highs, lows, closes []float64, period int) []float64 {
	atr := volatility.NewAtrWithMa[float64](trend.NewSmaWithPeriod[float64](period))
	return helper.ChanToSlice(atr.Compute(
		helper.SliceToChan(highs),
		helper.SliceToChan(lows),
		helper.SliceToChan(closes),
	))
}

// BarReturn is the percent change of the last close versus the close bars ago.
func BarReturn(closes []float64, bars int) *float64 {
	if bars <= 0 || len(closes) <= bars {
		return nil
	}
	return utils.PercentChange(closes[len(closes)-1-bars], closes[len(closes)-1])
}

// CalendarReturn is the percent change from the first close on or after
// asOf-days to the last close. The window must reach back at least
// RSMinCoverageDays, so a short listing does not pass for a full quarter.
func CalendarReturn(bars []models.PriceBar, asOf time.Time, days int) *float64 {
	if len(bars) < 2 {
		return nil
	}
	start := asOf.AddDate(0, 0, -days)
	for _, b := range bars {
		if b.Date.Before(start) {
			continue
		}
		if asOf.Sub(b.Date) < time.Duration(RSMinCoverageDays)*24*time.Hour {
			return nil
		}
		return utils.PercentChange(b.Close, bars[len(bars)-1].Close)
	}
	return nil
}

// AvgDollarVolume averages close*volume over the trailing window; it needs at
// least half the window.
func AvgDollarVolume(bars []models.PriceBar, window int) *float64 {
	if len(bars) < MinVolumeBars {
		return nil
	}
	from := max(0, len(bars)-window)
	var sum float64
	for _, b := range bars[from:] {
		sum += b.Close * b.Volume
	}
	return utils.Float(sum / float64(len(bars)-from))
}

// VolumeRatio compares today's volume with the mean of up to window prior bars.
func VolumeRatio(volumes []float64, window int) *float64 {
	prior := len(volumes) - 1
	if prior < MinVolumeBars {
		return nil
	}
	from := max(0, prior-window)
	avg := utils.Mean(volumes[from:prior])
	if avg <= 0 {
		return nil
	}
	return utils.Float(volumes[prior] / avg)
}

// SwingLow returns the most recent low, within lookback bars, that is lower
// than the two bars on each side of it.
func SwingLow(lows []float64, lookback int) *float64 {
	n := len(lows)
	stop := max(SwingSideBars, n-lookback)
	for i := n - 1 - SwingSideBars; i >= stop; i-- {
		pivot := true
		for k := 1; k <= SwingSideBars; k++ {
			if lows[i] >= lows[i-k] || lows[i] >= lows[i+k] {
				pivot = false
				break
			}
		}
		if pivot {
			return utils.Float(lows[i])
		}
	}
	return nil
}

// Resistance is the highest high of the bars bars before today.
func Resistance(highs []float64, bars int) *float64 {
	n := len(highs)
	if n < bars+1 {
		return nil
	}
	hi := highs[n-1-bars]
	for _, h := range highs[n-bars : n-1] {
		hi = math.Max(hi, h)
	}
	return utils.Float(hi)
}

func fillYearRange(snap *models.IndicatorSnapshot, bars []models.PriceBar) {
	if len(bars) < YearBars {
		return
	}
	window := bars[len(bars)-YearBars:]
	hi, lo := window[0].High, window[0].Low
	hiDate := window[0].Date
	for _, b := range window[1:] {
		if b.High >= hi {
			hi, hiDate = b.High, b.Date
		}
		lo = math.Min(lo, b.Low)
	}

	snap.High52Week = utils.Float(hi)
	snap.Low52Week = utils.Float(lo)
	if hi > 0 {
		snap.PctFromHigh = utils.Float((snap.Close - hi) / hi * 100)
		snap.Is52WeekHigh = snap.High >= hi*NearHighTolerance
	}
	snap.PctFromLow = utils.PercentChange(lo, snap.Close)
	days := int(snap.Date.Sub(hiDate).Hours() / 24)
	snap.DaysSince52WeekHigh = &days
}

func tail(series []float64, back int) *float64 {
	i := len(series) - 1 - back
	if i < 0 || math.IsNaN(series[i]) {
		return nil
	}
	return utils.Float(series[i])
}
