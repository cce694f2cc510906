package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/irfndi/sepa-screener/internal/cache"
	"github.com/irfndi/sepa-screener/internal/middleware"
	"github.com/irfndi/sepa-screener/internal/models"
	"github.com/irfndi/sepa-screener/internal/services"
)

// RunReportReader reads cached run reports.
type RunReportReader interface {
	LatestRunReport(ctx context.Context) (*models.RunReport, bool)
	RunReportFor(ctx context.Context, date time.Time) (*models.RunReport, bool)
	GetStats() cache.Stats
}

// CompositeAdmin is the operator view of the composite cache.
type CompositeAdmin interface {
	GetStats() cache.Stats
	Clear(ctx context.Context) (int, error)
}

// TokenIssuer signs user tokens for the watch-list API.
type TokenIssuer interface {
	GenerateToken(userID string, duration time.Duration) (string, error)
}

// BreakerStatus exposes the circuit breakers guarding outbound delivery.
type BreakerStatus interface {
	GetCircuitBreakerStatus() map[string]services.CircuitBreakerStats
}

// AdminHandler serves operator endpoints. Routes must sit behind
// AdminMiddleware.RequireAdminAuth.
type AdminHandler struct {
	reports    RunReportReader
	composites CompositeAdmin
	tokens     TokenIssuer
	tokenTTL   time.Duration
	breakers   BreakerStatus
}

type CacheStatsResponse struct {
	Composite  cacheStats `json:"composite"`
	RunReports cacheStats `json:"run_reports"`
}

type cacheStats struct {
	cache.Stats
	HitRate float64 `json:"hit_rate"`
}

type IssueTokenRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type IssueTokenResponse struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewAdminHandler creates the admin handler. composites and tokens may be
// nil; their endpoints then answer 503.
func NewAdminHandler(reports RunReportReader, composites CompositeAdmin, tokens TokenIssuer, tokenTTL time.Duration) *AdminHandler {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AdminHandler{reports: reports, composites: composites, tokens: tokens, tokenTTL: tokenTTL}
}

// LatestRun returns the last run report, or the report of ?date=.
func (h *AdminHandler) LatestRun(c *gin.Context) {
	var (
		report *models.RunReport
		ok     bool
	)
	if raw := c.Query("date"); raw != "" {
		date, err := models.ParseDate(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		report, ok = h.reports.RunReportFor(c.Request.Context(), date)
	} else {
		report, ok = h.reports.LatestRunReport(c.Request.Context())
	}

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No run report available"})
		return
	}
	c.JSON(http.StatusOK, report)
}

// CacheStats reports hit counters of the analysis caches.
func (h *AdminHandler) CacheStats(c *gin.Context) {
	resp := CacheStatsResponse{RunReports: withHitRate(h.reports.GetStats())}
	if h.composites != nil {
		resp.Composite = withHitRate(h.composites.GetStats())
	}
	c.JSON(http.StatusOK, resp)
}

// ClearComposites drops cached composites so the next run rebuilds them
// from the benchmark series.
func (h *AdminHandler) ClearComposites(c *gin.Context) {
	if h.composites == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Composite cache not configured"})
		return
	}
	n, err := h.composites.Clear(c.Request.Context())
	if err != nil {
		middleware.RecordError(c, err, "failed to clear composite cache")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear composite cache"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": n})
}

// IssueToken signs a watch-list token for user_id.
func (h *AdminHandler) IssueToken(c *gin.Context) {
	if h.tokens == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Token issuing not configured"})
		return
	}
	var req IssueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	token, err := h.tokens.GenerateToken(req.UserID, h.tokenTTL)
	if err != nil {
		middleware.RecordError(c, err, "failed to sign token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}
	c.JSON(http.StatusCreated, IssueTokenResponse{
		Token:     token,
		UserID:    req.UserID,
		ExpiresAt: time.Now().Add(h.tokenTTL).UTC(),
	})
}

// WithBreakers enables the circuit breaker endpoint.
func (h *AdminHandler) WithBreakers(b BreakerStatus) *AdminHandler {
	h.breakers = b
	return h
}

// CircuitBreakers lists breaker counters by name.
func (h *AdminHandler) CircuitBreakers(c *gin.Context) {
	status := map[string]services.CircuitBreakerStats{}
	if h.breakers != nil {
		status = h.breakers.GetCircuitBreakerStatus()
	}
	c.JSON(http.StatusOK, gin.H{"breakers": status})
}

func withHitRate(s cache.Stats) cacheStats {
	return cacheStats{Stats: s, HitRate: s.HitRate()}
}
