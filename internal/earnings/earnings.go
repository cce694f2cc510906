// Package earnings scores quarterly EPS growth, acceleration and estimate beats.
package earnings

import (
	"math"
	"sort"
	"time"

	"github.com/irfndi/sepa-screener/internal/models"
	"github.com/irfndi/sepa-screener/internal/utils"
)

// Config tunes the earnings evaluator.
type Config struct {
	UpcomingDays     int     `mapstructure:"upcoming_days"`
	MinEPSGrowth     float64 `mapstructure:"min_eps_growth_pct"`
	PassScore        float64 `mapstructure:"pass_score"`
	SurpriseQuarters int     `mapstructure:"surprise_quarters"`
	MaxQuarters      int     `mapstructure:"max_quarters"`
}

// DefaultConfig requires 25% year-over-year EPS growth and a score of 60.
func DefaultConfig() Config {
	return Config{
		UpcomingDays:     14,
		MinEPSGrowth:     25,
		PassScore:        60,
		SurpriseQuarters: 4,
		MaxQuarters:      8,
	}
}

type quarterKey struct {
	year, quarter int
}

type quarter struct {
	key     quarterKey
	eps     float64
	revenue *float64
}

// Evaluate scores the fundamentals known as of date. Reports and statements
// dated after date are ignored except to find the next scheduled report.
func Evaluate(date time.Time, records []models.EarningsRecord, statements []models.IncomeStatement, cfg Config) models.EarningsQuality {
	date = models.DateOnly(date)
	q := models.EarningsQuality{HasUpcomingEarnings: utils.Bool(false)}
	if next, ok := nextReport(date, records); ok {
		days := int(math.Round(next.Sub(date).Hours() / 24))
		if days <= cfg.UpcomingDays {
			q.HasUpcomingEarnings = utils.Bool(true)
			q.DaysUntilEarnings = &days
			q.NextEarningsDate = &next
		}
	}

	// A scheduled report still counts toward the buy buffer without history.
	quarters := buildQuarters(date, records, statements, cfg.MaxQuarters)
	if len(quarters) == 0 {
		return q
	}

	q.HasEarningsData = true
	latest := quarters[len(quarters)-1]

	if prior, ok := find(quarters, quarterKey{latest.key.year - 1, latest.key.quarter}); ok {
		q.EPSGrowthYoY = roundPtr(growth(prior.eps, latest.eps))
		if prior.revenue != nil && latest.revenue != nil {
			q.RevenueGrowthYoY = roundPtr(growth(*prior.revenue, *latest.revenue))
		}
	}

	qoq := sequentialGrowth(quarters)
	q.EPSGrowthQoQ = roundPtr(qoq[len(qoq)-1])

	accelerating := false
	if n := len(qoq); n >= 2 && qoq[n-1] != nil && qoq[n-2] != nil {
		accelerating = *qoq[n-1] > *qoq[n-2]
	}
	streak := accelerationStreak(qoq)
	q.AccelerationStreak = &streak
	q.EarningsAcceleration = utils.Bool(streak >= 2)

	beatRate, avgSurprise, latestSurprise := surprises(date, records, cfg.SurpriseQuarters)
	q.BeatRate = beatRate
	q.AvgSurprisePct = avgSurprise
	q.LatestSurprise = latestSurprise

	score := 0.0
	if q.EPSGrowthYoY != nil {
		score += 30 * utils.Clamp(*q.EPSGrowthYoY/cfg.MinEPSGrowth, 0, 1)
	}
	if accelerating {
		score += 20
	}
	score += 20 * float64(min(streak, 3)) / 3
	if beatRate != nil {
		score += 20 * *beatRate
	}
	if q.RevenueGrowthYoY != nil {
		score += 10 * utils.Clamp(*q.RevenueGrowthYoY/cfg.MinEPSGrowth, 0, 1)
	}
	q.Score = utils.Float(utils.Round(score, 2))
	q.PassesEarnings = utils.Bool(*q.Score >= cfg.PassScore &&
		q.EPSGrowthYoY != nil && *q.EPSGrowthYoY >= cfg.MinEPSGrowth)
	return q
}

// buildQuarters merges statement EPS with reported actuals, statements first,
// and returns up to limit quarters in fiscal order.
func buildQuarters(date time.Time, records []models.EarningsRecord, statements []models.IncomeStatement, limit int) []quarter {
	byKey := make(map[quarterKey]quarter)
	for _, s := range statements {
		if s.EPSDiluted == nil || s.FiscalYear == 0 || s.FiscalQuarter == 0 || s.PeriodEnd.After(date) {
			continue
		}
		k := quarterKey{s.FiscalYear, s.FiscalQuarter}
		byKey[k] = quarter{key: k, eps: *s.EPSDiluted, revenue: s.Revenue}
	}
	for _, r := range records {
		if r.EPSActual == nil || r.IsScheduled || r.FiscalYear == 0 || r.FiscalQuarter == 0 || r.ReportDate.After(date) {
			continue
		}
		k := quarterKey{r.FiscalYear, r.FiscalQuarter}
		if existing, ok := byKey[k]; ok {
			if existing.revenue == nil {
				existing.revenue = r.RevenueActual
				byKey[k] = existing
			}
			continue
		}
		byKey[k] = quarter{key: k, eps: *r.EPSActual, revenue: r.RevenueActual}
	}

	out := make([]quarter, 0, len(byKey))
	for _, q := range byKey {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].key.year != out[j].key.year {
			return out[i].key.year < out[j].key.year
		}
		return out[i].key.quarter < out[j].key.quarter
	})
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func find(quarters []quarter, k quarterKey) (quarter, bool) {
	for _, q := range quarters {
		if q.key == k {
			return q, true
		}
	}
	return quarter{}, false
}

// growth is the percent change from prior to current; nil unless prior > 0.
func growth(prior, current float64) *float64 {
	return utils.PercentChange(prior, current)
}

func roundPtr(v *float64) *float64 {
	return utils.RoundPtr(v, 2)
}

// sequentialGrowth returns one entry per quarter: the growth over the
// quarter before it, nil for the first quarter or a non-positive base.
func sequentialGrowth(quarters []quarter) []*float64 {
	out := make([]*float64, len(quarters))
	for i := 1; i < len(quarters); i++ {
		out[i] = growth(quarters[i-1].eps, quarters[i].eps)
	}
	return out
}

// accelerationStreak counts consecutive increases in sequential growth that
// end at the latest quarter.
func accelerationStreak(qoq []*float64) int {
	streak := 0
	for i := len(qoq) - 1; i > 0; i-- {
		if qoq[i] == nil || qoq[i-1] == nil || *qoq[i] <= *qoq[i-1] {
			break
		}
		streak++
	}
	return streak
}

// surprises summarises the most recent reports that carry an estimate.
func surprises(date time.Time, records []models.EarningsRecord, n int) (*float64, *float64, *models.EarningsSurprise) {
	reported := make([]models.EarningsRecord, 0, len(records))
	for _, r := range records {
		if r.IsScheduled || r.ReportDate.After(date) || r.EPSActual == nil || r.EPSEstimate == nil {
			continue
		}
		if surprisePct(r) == nil {
			continue
		}
		reported = append(reported, r)
	}
	if len(reported) == 0 {
		return nil, nil, nil
	}
	sort.Slice(reported, func(i, j int) bool {
		return reported[i].ReportDate.After(reported[j].ReportDate)
	})
	if n > 0 && len(reported) > n {
		reported = reported[:n]
	}

	beats := 0
	values := make([]float64, 0, len(reported))
	for _, r := range reported {
		s := *surprisePct(r)
		values = append(values, s)
		if s > 0 {
			beats++
		}
	}
	rate := utils.Round(float64(beats)/float64(len(reported)), 4)
	avg := utils.Round(utils.Mean(values), 2)
	latest := &models.EarningsSurprise{
		ReportDate:  models.DateOnly(reported[0].ReportDate),
		SurprisePct: utils.Round(values[0], 2),
	}
	return &rate, &avg, latest
}

// surprisePct prefers the reported surprise and otherwise derives it from
// actual and estimate.
func surprisePct(r models.EarningsRecord) *float64 {
	if r.SurprisePct != nil {
		return r.SurprisePct
	}
	if r.EPSActual == nil || r.EPSEstimate == nil || *r.EPSEstimate == 0 {
		return nil
	}
	v := (*r.EPSActual - *r.EPSEstimate) / math.Abs(*r.EPSEstimate) * 100
	return &v
}

// nextReport finds the first report date strictly after date.
func nextReport(date time.Time, records []models.EarningsRecord) (time.Time, bool) {
	var next time.Time
	found := false
	for _, r := range records {
		d := models.DateOnly(r.ReportDate)
		if !d.After(date) {
			continue
		}
		if !found || d.Before(next) {
			next, found = d, true
		}
	}
	return next, found
}
