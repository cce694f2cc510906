package screener

import (
	"math"
	"strconv"
	"time"

	"github.com/irfndi/sepa-screener/internal/models"
)

// Thresholds control when a metric move is worth a notification.
type Thresholds struct {
	VCPScoreDelta      float64 `mapstructure:"vcp_score_delta"`
	RSDelta            float64 `mapstructure:"rs_delta"`
	SurprisePct        float64 `mapstructure:"surprise_pct"`
	SurpriseWindowDays int     `mapstructure:"surprise_window_days"`
}

// DefaultThresholds notifies on a 20-point VCP move, a 10-point RS move or
// a 15% earnings surprise reported in the last day.
func DefaultThresholds() Thresholds {
	return Thresholds{
		VCPScoreDelta:      20,
		RSDelta:            10,
		SurprisePct:        15,
		SurpriseWindowDays: 1,
	}
}

// Metric names carried by notifications.
const (
	MetricBuySignal        = "buy_signal"
	MetricHolderSignal     = "holder_signal"
	MetricStage            = "stage"
	MetricVCPDetected      = "vcp_detected"
	MetricVCPScore         = "vcp_score"
	MetricRSRating         = "rs_rating"
	MetricPassesTemplate   = "passes_minervini"
	MetricPassesEarnings   = "passes_earnings"
	MetricEarningsSurprise = "eps_surprise_pct"
)

// DetectChanges compares today's scorecard with the previous one for the
// same symbol. prev is nil on the first scored day. The result is ordered
// and carries deterministic IDs; CreatedAt is left for the caller.
func DetectChanges(prev *models.Scorecard, cur models.Scorecard, th Thresholds) []models.Notification {
	var out []models.Notification
	add := func(t models.NotificationType, metric, oldValue, newValue string, reasons []models.Reason) {
		out = append(out, models.Notification{
			ID:       models.NotificationID(cur.Symbol, cur.Date, t, metric),
			Symbol:   cur.Symbol,
			Date:     cur.Date,
			Type:     t,
			Metric:   metric,
			OldValue: oldValue,
			NewValue: newValue,
			Reasons:  reasons,
		})
	}

	if cur.Buy.Signal == models.SignalWait && (prev == nil || prev.Buy.Signal != models.SignalWait) {
		old := ""
		if prev != nil {
			old = string(prev.Buy.Signal)
		}
		add(models.NotifyWaitToBuy, MetricBuySignal, old, string(cur.Buy.Signal), cur.Buy.Reasons)
	}

	if prev != nil {
		if prev.Template.Stage != cur.Template.Stage {
			add(models.NotifyMetricChange, MetricStage,
				strconv.Itoa(int(prev.Template.Stage)), strconv.Itoa(int(cur.Template.Stage)), nil)
		}
		if prev.VCP.Detected != cur.VCP.Detected {
			add(models.NotifyMetricChange, MetricVCPDetected,
				strconv.FormatBool(prev.VCP.Detected), strconv.FormatBool(cur.VCP.Detected), nil)
		} else if math.Abs(cur.VCP.Score-prev.VCP.Score) >= th.VCPScoreDelta {
			add(models.NotifyMetricChange, MetricVCPScore,
				formatFloat(prev.VCP.Score), formatFloat(cur.VCP.Score), nil)
		}
		if prev.RSRating != nil && cur.RSRating != nil && math.Abs(*cur.RSRating-*prev.RSRating) >= th.RSDelta {
			add(models.NotifyMetricChange, MetricRSRating,
				formatFloat(*prev.RSRating), formatFloat(*cur.RSRating), nil)
		}
		if prev.Template.PassesMinervini != cur.Template.PassesMinervini {
			add(models.NotifyMetricChange, MetricPassesTemplate,
				strconv.FormatBool(prev.Template.PassesMinervini), strconv.FormatBool(cur.Template.PassesMinervini), nil)
		}
		if p, c := prev.Earnings.PassesEarnings, cur.Earnings.PassesEarnings; p != nil && c != nil && *p != *c {
			add(models.NotifyMetricChange, MetricPassesEarnings, strconv.FormatBool(*p), strconv.FormatBool(*c), nil)
		}
		if cur.Buy.Signal == models.SignalBuy && prev.Buy.Signal != models.SignalBuy {
			add(models.NotifyMetricChange, MetricBuySignal, string(prev.Buy.Signal), string(cur.Buy.Signal), cur.Buy.Reasons)
		}
		if prev.Holder.Signal == models.SignalHold && cur.Holder.Signal == models.SignalSell {
			add(models.NotifyMetricChange, MetricHolderSignal, string(prev.Holder.Signal), string(cur.Holder.Signal), cur.Holder.Reasons)
		}
	}

	if s := cur.Earnings.LatestSurprise; s != nil && math.Abs(s.SurprisePct) >= th.SurprisePct {
		age := int(math.Round(cur.Date.Sub(models.DateOnly(s.ReportDate)).Hours() / 24))
		if age >= 0 && age <= th.SurpriseWindowDays {
			add(models.NotifyEarningsSurprise, MetricEarningsSurprise, "", formatFloat(s.SurprisePct), nil)
		}
	}
	return out
}

// WatchlistFilter keeps notifications for symbols in the watch list.
func WatchlistFilter(notes []models.Notification, watched map[string]bool) []models.Notification {
	var out []models.Notification
	for _, n := range notes {
		if watched[n.Symbol] {
			out = append(out, n)
		}
	}
	return out
}

// Stamp sets CreatedAt on every notification.
func Stamp(notes []models.Notification, at time.Time) {
	for i := range notes {
		notes[i].CreatedAt = at
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
