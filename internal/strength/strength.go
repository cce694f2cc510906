// Package strength computes the market composite and cross-sectional
// relative-strength ratings.
package strength

import (
	"math"
	"sort"
	"time"

	"github.com/irfndi/sepa-screener/internal/indicators"
	"github.com/irfndi/sepa-screener/internal/models"
	"github.com/irfndi/sepa-screener/internal/utils"
)

// NeutralRS is assigned when the cross-section has a single symbol.
const NeutralRS = 50.0

// BenchmarkWeight is one index in the market composite.
type BenchmarkWeight struct {
	Symbol string  `json:"symbol"`
	Weight float64 `json:"weight"`
}

// DefaultBenchmarks is the broad-cap / blue-chip / tech / total-market / global blend.
var DefaultBenchmarks = []BenchmarkWeight{
	{Symbol: "SPY", Weight: 0.35},
	{Symbol: "DIA", Weight: 0.15},
	{Symbol: "QQQ", Weight: 0.25},
	{Symbol: "VTI", Weight: 0.20},
	{Symbol: "VT", Weight: 0.05},
}

// ComputeComposite blends each benchmark's trailing-90-day return. Missing
// benchmarks drop out and the remaining weights are renormalized; with none
// available the composite return is 0 and WeightUsed is 0.
func ComputeComposite(date time.Time, weights []BenchmarkWeight, series map[string]models.PriceSeries) models.MarketComposite {
	composite := models.MarketComposite{Date: date}
	var weighted float64
	for _, bw := range weights {
		component := models.CompositeComponent{Symbol: bw.Symbol, Weight: bw.Weight}
		if s, ok := series[bw.Symbol]; ok {
			truncated := s.Truncate(date)
			if last, ok := truncated.Last(); ok {
				component.Return90d = indicators.CalendarReturn(truncated.Bars, last.Date, indicators.RSReturnCalendar)
			}
		}
		if component.Return90d != nil {
			weighted += *component.Return90d * bw.Weight
			composite.WeightUsed += bw.Weight
		}
		composite.Components = append(composite.Components, component)
	}
	if composite.WeightUsed > 0 {
		composite.Return90d = utils.Round(weighted/composite.WeightUsed, 4)
	}
	composite.WeightUsed = utils.Round(composite.WeightUsed, 4)
	return composite
}

// RankRelativeStrength turns per-symbol 90-day returns into percentile ratings.
//
// Pass one computes each symbol's spread over the composite; pass two scores a
// symbol by the share of the other symbols it strictly outperforms. Symbols
// without a return get no rating and are left out of the cross-section.
func RankRelativeStrength(returns map[string]*float64, composite models.MarketComposite) map[string]*float64 {
	type entry struct {
		symbol string
		spread float64
	}
	entries := make([]entry, 0, len(returns))
	ratings := make(map[string]*float64, len(returns))
	for symbol, r := range returns {
		if r == nil || math.IsNaN(*r) {
			ratings[symbol] = nil
			continue
		}
		entries = append(entries, entry{symbol: symbol, spread: *r - composite.Return90d})
	}

	switch len(entries) {
	case 0:
		return ratings
	case 1:
		ratings[entries[0].symbol] = utils.Float(NeutralRS)
		return ratings
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].spread != entries[j].spread {
			return entries[i].spread < entries[j].spread
		}
		return entries[i].symbol < entries[j].symbol
	})

	denominator := float64(len(entries) - 1)
	lower := 0
	for i, e := range entries {
		if i > 0 && entries[i-1].spread < e.spread {
			lower = i
		}
		pct := utils.Clamp(float64(lower)/denominator*100, 0, 100)
		ratings[e.symbol] = utils.Float(utils.Round(pct, 2))
	}
	return ratings
}

// SectorStrength rates each sector by its average 90-day return against the
// composite: 50 at par, two points per percent of out/under-performance.
func SectorStrength(sectorOf map[string]string, returns map[string]*float64, composite models.MarketComposite) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for symbol, sector := range sectorOf {
		r := returns[symbol]
		if sector == "" || r == nil {
			continue
		}
		sums[sector] += *r
		counts[sector]++
	}

	out := make(map[string]float64, len(sums))
	for sector, sum := range sums {
		avg := sum / float64(counts[sector])
		diff := avg - composite.Return90d
		out[sector] = utils.Round(utils.Clamp(NeutralRS+2*diff, 0, 100), 2)
	}
	return out
}

// MarketCapTier buckets a market capitalization in dollars.
func MarketCapTier(marketCap *float64) models.MarketCapTier {
	if marketCap == nil || *marketCap <= 0 {
		return models.CapUnknown
	}
	switch mc := *marketCap; {
	case mc < 300e6:
		return models.CapMicro
	case mc < 2e9:
		return models.CapSmall
	case mc < 10e9:
		return models.CapMid
	case mc < 200e9:
		return models.CapLarge
	default:
		return models.CapMega
	}
}

// ValidateWeights checks that benchmark weights are positive and sum to 1.
func ValidateWeights(weights []BenchmarkWeight) error {
	if len(weights) == 0 {
		return utils.NewValidationError("at least one benchmark is required")
	}
	var sum float64
	for _, w := range weights {
		if w.Symbol == "" || w.Weight <= 0 {
			return utils.NewValidationErrorf("invalid benchmark weight %+v", w)
		}
		sum += w.Weight
	}
	if math.Abs(sum-1) > 1e-6 {
		return utils.NewValidationErrorf("benchmark weights must sum to 1.0, got %.4f", sum)
	}
	return nil
}
