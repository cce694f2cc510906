package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/irfndi/sepa-screener/internal/database"
	"github.com/irfndi/sepa-screener/internal/middleware"
)

// WatchlistStore is the per-user watch list.
type WatchlistStore interface {
	ListForUser(ctx context.Context, userID string) ([]database.WatchlistEntry, error)
	Add(ctx context.Context, userID, symbol string) (*database.WatchlistEntry, error)
	Remove(ctx context.Context, userID, symbol string) error
}

// WatchlistHandler manages the authenticated user's watch list. Routes
// must sit behind AuthMiddleware.RequireAuth.
type WatchlistHandler struct {
	store WatchlistStore
}

type AddWatchlistRequest struct {
	Symbol string `json:"symbol" binding:"required"`
}

func NewWatchlistHandler(store WatchlistStore) *WatchlistHandler {
	return &WatchlistHandler{store: store}
}

func (h *WatchlistHandler) ListWatchlist(c *gin.Context) {
	userID := middleware.UserID(c)
	entries, err := h.store.ListForUser(c.Request.Context(), userID)
	if err != nil {
		middleware.RecordError(c, err, "failed to list watchlist")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load watchlist"})
		return
	}

	symbols := make([]string, len(entries))
	for i, e := range entries {
		symbols[i] = e.Symbol
	}
	c.JSON(http.StatusOK, gin.H{"symbols": symbols, "count": len(symbols)})
}

func (h *WatchlistHandler) AddToWatchlist(c *gin.Context) {
	var req AddWatchlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if !validSymbol(symbol) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid symbol"})
		return
	}

	entry, err := h.store.Add(c.Request.Context(), middleware.UserID(c), symbol)
	if err != nil {
		middleware.RecordError(c, err, "failed to add to watchlist")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update watchlist"})
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (h *WatchlistHandler) RemoveFromWatchlist(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	if !validSymbol(symbol) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid symbol"})
		return
	}

	err := h.store.Remove(c.Request.Context(), middleware.UserID(c), symbol)
	switch {
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": symbol + " is not on your watchlist"})
	case err != nil:
		middleware.RecordError(c, err, "failed to remove from watchlist")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update watchlist"})
	default:
		c.JSON(http.StatusOK, gin.H{"symbol": symbol, "removed": true})
	}
}
