package patterns

import (
	"math"
	"time"

	"github.com/irfndi/sepa-screener/internal/models"
	"github.com/irfndi/sepa-screener/internal/utils"
)

// VCPConfig tunes the contraction detector.
type VCPConfig struct {
	LookbackBars   int     `mapstructure:"lookback_bars"`
	MinSwingPct    float64 `mapstructure:"min_swing_pct"`
	PivotBufferPct float64 `mapstructure:"pivot_buffer_pct"`
	MinBars        int     `mapstructure:"min_bars"`
}

// DefaultVCPConfig looks back 16 weeks with a 3% swing filter.
func DefaultVCPConfig() VCPConfig {
	return VCPConfig{
		LookbackBars:   80,
		MinSwingPct:    3,
		PivotBufferPct: 0.1,
		MinBars:        30,
	}
}

// DetectVCP looks for a run of successively shallower pullbacks in the
// lookback window ending at date.
func DetectVCP(series models.PriceSeries, date time.Time, cfg VCPConfig) models.VcpResult {
	bars := series.Truncate(date).Bars
	if cfg.LookbackBars > 0 && len(bars) > cfg.LookbackBars {
		bars = bars[len(bars)-cfg.LookbackBars:]
	}
	if len(bars) == 0 || len(bars) < cfg.MinBars {
		return models.VcpResult{}
	}

	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	for i, b := range bars {
		highs[i], lows[i] = b.High, b.Low
	}

	all := contractions(bars, Swings(highs, lows, cfg.MinSwingPct))
	seq := contractingTail(all)
	if len(seq) < 2 {
		return models.VcpResult{}
	}

	latest := seq[len(seq)-1]
	prior := seq[len(seq)-2]
	volumeDown := latest.AvgVolume < prior.AvgVolume
	for i := 1; i < len(seq); i++ {
		seq[i].VolumeDeclining = seq[i].AvgVolume < seq[i-1].AvgVolume
	}

	lastClose := bars[len(bars)-1].Close
	score := countScore(len(seq)) + 15*decreasingShare(seq) +
		tightnessScore(latest.DepthPct) + proximityScore(lastClose, latest.PeakPrice)
	if volumeDown {
		score += 20
	}

	return models.VcpResult{
		Detected:             true,
		Score:                utils.Round(utils.Clamp(score, 0, 100), 2),
		ContractionCount:     len(seq),
		LatestContractionPct: utils.Float(utils.Round(latest.DepthPct, 2)),
		VolumeContraction:    volumeDown,
		PivotPrice:           utils.Float(utils.RoundPrice(latest.PeakPrice * (1 + cfg.PivotBufferPct/100))),
		LastContractionLow:   utils.Float(latest.TroughPrice),
		Contractions:         seq,
	}
}

// contractions pairs each peak with the trough that follows it.
func contractions(bars []models.PriceBar, swings []Swing) []models.Contraction {
	var out []models.Contraction
	for i := 0; i+1 < len(swings); i++ {
		peak, trough := swings[i], swings[i+1]
		if peak.Kind != SwingPeak || trough.Kind != SwingTrough || peak.Price <= 0 {
			continue
		}
		var vol float64
		for _, b := range bars[peak.Index : trough.Index+1] {
			vol += b.Volume
		}
		out = append(out, models.Contraction{
			PeakDate:    bars[peak.Index].Date,
			PeakPrice:   peak.Price,
			TroughDate:  bars[trough.Index].Date,
			TroughPrice: trough.Price,
			DepthPct:    (peak.Price - trough.Price) / peak.Price * 100,
			AvgVolume:   vol / float64(trough.Index-peak.Index+1),
		})
	}
	return out
}

// contractingTail keeps the most recent contractions whose depths do not
// increase going forward in time.
func contractingTail(all []models.Contraction) []models.Contraction {
	if len(all) == 0 {
		return nil
	}
	start := len(all) - 1
	for start > 0 && all[start-1].DepthPct >= all[start].DepthPct {
		start--
	}
	seq := make([]models.Contraction, len(all)-start)
	copy(seq, all[start:])
	return seq
}

func countScore(n int) float64 {
	return math.Min(float64(n)*8, 25)
}

func decreasingShare(seq []models.Contraction) float64 {
	steps := len(seq) - 1
	if steps <= 0 {
		return 0
	}
	strict := 0
	for i := 1; i < len(seq); i++ {
		if seq[i].DepthPct < seq[i-1].DepthPct {
			strict++
		}
	}
	return float64(strict) / float64(steps)
}

func tightnessScore(depth float64) float64 {
	switch {
	case depth <= 5:
		return 20
	case depth <= 10:
		return 15
	case depth <= 15:
		return 10
	case depth <= 20:
		return 5
	default:
		return 0
	}
}

func proximityScore(price, peak float64) float64 {
	if peak <= 0 {
		return 0
	}
	if price >= peak {
		return 20
	}
	switch gap := (peak - price) / peak * 100; {
	case gap <= 3:
		return 20
	case gap <= 5:
		return 14
	case gap <= 10:
		return 8
	default:
		return 0
	}
}
