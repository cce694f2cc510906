package models

import (
	"time"

	"github.com/irfndi/sepa-screener/internal/utils"
)

// PriceBar represents one daily OHLCV bar
type PriceBar struct {
	Date   time.Time `json:"date" db:"date"`
	Open   float64   `json:"open" db:"open"`
	High   float64   `json:"high" db:"high"`
	Low    float64   `json:"low" db:"low"`
	Close  float64   `json:"close" db:"close"`
	Volume float64   `json:"volume" db:"volume"`
}

// PriceSeries is the ordered daily history of one symbol.
// Dates are strictly increasing; non-trading days are simply absent.
type PriceSeries struct {
	Symbol string     `json:"symbol"`
	Bars   []PriceBar `json:"bars"`
}

// Validate checks the ordering invariant of the series.
func (s PriceSeries) Validate() error {
	for i := 1; i < len(s.Bars); i++ {
		prev, cur := s.Bars[i-1].Date, s.Bars[i].Date
		if !cur.After(prev) {
			return utils.NewValidationErrorf("%s: bar %d (%s) is not after %s",
				s.Symbol, i, cur.Format(DateLayout), prev.Format(DateLayout))
		}
	}
	return nil
}

// Truncate returns the series restricted to bars on or before date.
func (s PriceSeries) Truncate(date time.Time) PriceSeries {
	end := len(s.Bars)
	for end > 0 && s.Bars[end-1].Date.After(date) {
		end--
	}
	return PriceSeries{Symbol: s.Symbol, Bars: s.Bars[:end]}
}

// Last returns the final bar and false when the series is empty.
func (s PriceSeries) Last() (PriceBar, bool) {
	if len(s.Bars) == 0 {
		return PriceBar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// Closes extracts the close column.
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Highs extracts the high column.
func (s PriceSeries) Highs() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.High
	}
	return out
}

// Lows extracts the low column.
func (s PriceSeries) Lows() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Low
	}
	return out
}

// Volumes extracts the volume column.
func (s PriceSeries) Volumes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Volume
	}
	return out
}

// DateLayout is the wire format for analysis dates.
const DateLayout = "2006-01-02"

// DateOnly truncates t to midnight UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD analysis date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, utils.NewValidationErrorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}
