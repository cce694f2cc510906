package models

import (
	"time"

	"github.com/google/uuid"
)

// Scorecard is the persisted analysis row, unique per (symbol, date).
type Scorecard struct {
	Symbol          string              `json:"symbol" db:"symbol"`
	Date            time.Time           `json:"date" db:"date"`
	Close           float64             `json:"close" db:"close"`
	Sector          string              `json:"sector,omitempty" db:"sector"`
	MarketCapTier   MarketCapTier       `json:"market_cap_tier,omitempty" db:"market_cap_tier"`
	MarketReturn90d float64             `json:"market_return_90d" db:"market_return_90d"`
	RSRating        *float64            `json:"rs_rating" db:"rs_rating"`
	SectorRS        *float64            `json:"sector_rs" db:"sector_rs"`
	Indicators      IndicatorSnapshot   `json:"indicators"`
	Template        StageClassification `json:"template"`
	VCP             VcpResult           `json:"vcp"`
	PrimaryBase     PrimaryBaseState    `json:"primary_base"`
	Earnings        EarningsQuality     `json:"earnings"`
	Buy             BuySignal           `json:"buy"`
	Holder          HolderSignal        `json:"holder"`
}

// Notification is a watch-list event derived from comparing two scorecards.
type Notification struct {
	ID        uuid.UUID        `json:"id" db:"id"`
	Symbol    string           `json:"symbol" db:"symbol"`
	Date      time.Time        `json:"date" db:"date"`
	Type      NotificationType `json:"type" db:"type"`
	Metric    string           `json:"metric" db:"metric"`
	OldValue  string           `json:"old_value,omitempty" db:"old_value"`
	NewValue  string           `json:"new_value" db:"new_value"`
	Reasons   []Reason         `json:"reasons,omitempty" db:"reasons"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
}

var notificationNamespace = uuid.MustParse("6f0f8f5e-5a35-4c8e-9b1e-2f7d3c4a9e10")

// NotificationID derives a stable ID so reruns overwrite instead of duplicating.
func NotificationID(symbol string, date time.Time, t NotificationType, metric string) uuid.UUID {
	key := symbol + "|" + date.Format(DateLayout) + "|" + string(t) + "|" + metric
	return uuid.NewSHA1(notificationNamespace, []byte(key))
}

// OutcomeStatus is the per-symbol result of a run.
type OutcomeStatus string

const (
	OutcomeOK      OutcomeStatus = "OK"
	OutcomeSkipped OutcomeStatus = "SKIPPED"
	OutcomeFailed  OutcomeStatus = "FAILED"
)

// SymbolOutcome records what happened to one symbol in a run.
type SymbolOutcome struct {
	Symbol     string        `json:"symbol"`
	Status     OutcomeStatus `json:"status"`
	SkipReason string        `json:"skip_reason,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// RunReport summarizes one batch run.
type RunReport struct {
	RunID         uuid.UUID       `json:"run_id"`
	Date          time.Time       `json:"date"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    time.Time       `json:"finished_at"`
	Universe      int             `json:"universe"`
	Processed     int             `json:"processed"`
	Skipped       int             `json:"skipped"`
	Failed        int             `json:"failed"`
	Notifications int             `json:"notifications"`
	Cancelled     bool            `json:"cancelled"`
	Composite     MarketComposite `json:"composite"`
	Outcomes      []SymbolOutcome `json:"outcomes"`
}

// Tally recomputes the counters from Outcomes.
func (r *RunReport) Tally() {
	r.Processed, r.Skipped, r.Failed = 0, 0, 0
	for _, o := range r.Outcomes {
		switch o.Status {
		case OutcomeOK:
			r.Processed++
		case OutcomeSkipped:
			r.Skipped++
		case OutcomeFailed:
			r.Failed++
		}
	}
}
