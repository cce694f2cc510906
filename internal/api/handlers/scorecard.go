package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/irfndi/sepa-screener/internal/database"
	"github.com/irfndi/sepa-screener/internal/middleware"
	"github.com/irfndi/sepa-screener/internal/models"
)

// ScorecardReader is the read side of the scorecard store.
type ScorecardReader interface {
	Get(ctx context.Context, symbol string, date time.Time) (*models.Scorecard, error)
	Latest(ctx context.Context, symbol string) (*models.Scorecard, error)
	LatestDate(ctx context.Context) (time.Time, error)
	List(ctx context.Context, filter database.ScorecardFilter) ([]models.Scorecard, error)
}

type ScorecardHandler struct {
	store ScorecardReader
}

type ScorecardsResponse struct {
	Date       string             `json:"date"`
	Count      int                `json:"count"`
	Scorecards []models.Scorecard `json:"scorecards"`
}

func NewScorecardHandler(store ScorecardReader) *ScorecardHandler {
	return &ScorecardHandler{store: store}
}

// ListScorecards returns the strongest scorecards of a date, optionally
// narrowed to one buy signal. Without a date the latest analysed date is
// used.
func (h *ScorecardHandler) ListScorecards(c *gin.Context) {
	ctx := c.Request.Context()

	filter := database.ScorecardFilter{}
	if raw := c.Query("signal"); raw != "" {
		signal := models.BuySignalType(strings.ToUpper(raw))
		if !signal.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "signal must be BUY, WAIT or PASS"})
			return
		}
		filter.Signal = signal
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		filter.Limit = limit
	}

	date, ok := resolveDate(c, h.store.LatestDate)
	if !ok {
		return
	}
	filter.Date = date

	cards, err := h.store.List(ctx, filter)
	if err != nil {
		middleware.RecordError(c, err, "failed to list scorecards")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load scorecards"})
		return
	}

	c.JSON(http.StatusOK, ScorecardsResponse{
		Date:       date.Format(models.DateLayout),
		Count:      len(cards),
		Scorecards: cards,
	})
}

// GetScorecard returns one symbol's scorecard on ?date=, or its latest.
func (h *ScorecardHandler) GetScorecard(c *gin.Context) {
	ctx := c.Request.Context()
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	if !validSymbol(symbol) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid symbol"})
		return
	}
	middleware.AddSpanAttribute(c, "symbol", symbol)

	var (
		card *models.Scorecard
		err  error
	)
	if raw := c.Query("date"); raw != "" {
		date, perr := models.ParseDate(raw)
		if perr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": perr.Error()})
			return
		}
		card, err = h.store.Get(ctx, symbol, date)
	} else {
		card, err = h.store.Latest(ctx, symbol)
	}

	switch {
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "No scorecard for " + symbol})
	case err != nil:
		middleware.RecordError(c, err, "failed to load scorecard")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load scorecard"})
	default:
		c.JSON(http.StatusOK, card)
	}
}

// resolveDate reads ?date= or falls back to latest. It writes the error
// response itself and reports false when the request cannot proceed.
func resolveDate(c *gin.Context, latest func(context.Context) (time.Time, error)) (time.Time, bool) {
	if raw := c.Query("date"); raw != "" {
		date, err := models.ParseDate(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return time.Time{}, false
		}
		return date, true
	}

	date, err := latest(c.Request.Context())
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No analysis has been run yet"})
		return time.Time{}, false
	}
	if err != nil {
		middleware.RecordError(c, err, "failed to resolve latest date")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve latest analysis date"})
		return time.Time{}, false
	}
	return date, true
}

// validSymbol accepts tickers such as AAPL, BRK.B or RDS-A.
func validSymbol(symbol string) bool {
	if symbol == "" || len(symbol) > 12 {
		return false
	}
	for _, r := range symbol {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
		default:
			return false
		}
	}
	return true
}
