package models

import (
	"fmt"
	"strings"
)

// ReasonCode identifies why a signal was produced.
type ReasonCode string

const (
	ReasonTemplateFailed      ReasonCode = "TEMPLATE_FAILED"
	ReasonBaseIncomplete      ReasonCode = "NEW_ISSUE_BASE_INCOMPLETE"
	ReasonNoSetup             ReasonCode = "NO_SETUP"
	ReasonBelowPivot          ReasonCode = "BELOW_PIVOT"
	ReasonExtended            ReasonCode = "EXTENDED"
	ReasonEarningsSoon        ReasonCode = "EARNINGS_SOON"
	ReasonPriceTooLow         ReasonCode = "PRICE_TOO_LOW"
	ReasonVCPEntry            ReasonCode = "VCP_ENTRY_ZONE"
	ReasonResistanceBreakout  ReasonCode = "RESISTANCE_BREAKOUT"
	ReasonStrongRS            ReasonCode = "STRONG_RS"
	ReasonStrongEarnings      ReasonCode = "STRONG_EARNINGS"
	ReasonSectorLeader        ReasonCode = "SECTOR_LEADER"
	ReasonPrimaryBaseComplete ReasonCode = "PRIMARY_BASE_COMPLETE"

	ReasonBelowTrailingStop ReasonCode = "BELOW_TRAILING_STOP"
	ReasonStage4            ReasonCode = "STAGE_4"
	ReasonLost50MA          ReasonCode = "LOST_50MA"
	ReasonTrendIntact       ReasonCode = "TREND_INTACT"
	ReasonNoTrailingRef     ReasonCode = "NO_TRAILING_REFERENCE"

	ReasonClimaxRun ReasonCode = "CLIMAX_RUN"
)

// Reason is a structured cause attached to a signal. Detail carries a machine
// token (criterion name, base status, trailing method); Value an optional number.
type Reason struct {
	Code   ReasonCode `json:"code"`
	Detail string     `json:"detail,omitempty"`
	Value  *float64   `json:"value,omitempty"`
}

// NewReason builds a reason without a value.
func NewReason(code ReasonCode, detail string) Reason {
	return Reason{Code: code, Detail: detail}
}

// NewValueReason builds a reason carrying a number.
func NewValueReason(code ReasonCode, detail string, value float64) Reason {
	return Reason{Code: code, Detail: detail, Value: &value}
}

func (r Reason) value() float64 {
	if r.Value == nil {
		return 0
	}
	return *r.Value
}

// String renders the reason as human-readable text.
func (r Reason) String() string {
	switch r.Code {
	case ReasonTemplateFailed:
		return "Fails trend template: " + strings.ReplaceAll(r.Detail, "_", " ")
	case ReasonBaseIncomplete:
		return "New issue without a complete primary base (" + r.Detail + ")"
	case ReasonNoSetup:
		return "No VCP or breakout setup yet"
	case ReasonBelowPivot:
		return fmt.Sprintf("Price %.1f%% below pivot", r.value())
	case ReasonExtended:
		return fmt.Sprintf("Extended %.1f%% above pivot, wait for pullback", r.value())
	case ReasonEarningsSoon:
		return fmt.Sprintf("Earnings in %.0f days", r.value())
	case ReasonPriceTooLow:
		return fmt.Sprintf("Pivot %.2f too low to place cent targets", r.value())
	case ReasonVCPEntry:
		return fmt.Sprintf("VCP in entry zone (score %.0f)", r.value())
	case ReasonResistanceBreakout:
		return fmt.Sprintf("Breaking out above resistance on %.1fx volume", r.value())
	case ReasonStrongRS:
		return fmt.Sprintf("RS %.0f", r.value())
	case ReasonStrongEarnings:
		return fmt.Sprintf("Earnings quality %.0f", r.value())
	case ReasonSectorLeader:
		return fmt.Sprintf("Sector RS %.0f", r.value())
	case ReasonPrimaryBaseComplete:
		return "Primary base complete"
	case ReasonBelowTrailingStop:
		return fmt.Sprintf("Closed below %s trailing stop %.2f", r.Detail, r.value())
	case ReasonStage4:
		return "Stage 4 decline"
	case ReasonLost50MA:
		return "Closed below the 50-day MA after a Stage 2 advance"
	case ReasonTrendIntact:
		return "Trend intact"
	case ReasonNoTrailingRef:
		return "No moving average below price"
	case ReasonClimaxRun:
		return fmt.Sprintf("Price %.0f%% above the 200-day MA, climax risk", r.value())
	default:
		return string(r.Code)
	}
}

// ReasonTexts renders a list of reasons.
func ReasonTexts(reasons []Reason) []string {
	out := make([]string, len(reasons))
	for i, r := range reasons {
		out[i] = r.String()
	}
	return out
}

// HasReason reports whether reasons contains code.
func HasReason(reasons []Reason, code ReasonCode) bool {
	for _, r := range reasons {
		if r.Code == code {
			return true
		}
	}
	return false
}
