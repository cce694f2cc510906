package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/irfndi/sepa-screener/internal/middleware"
	"github.com/irfndi/sepa-screener/internal/models"
)

type NotificationReader interface {
	ListByDate(ctx context.Context, date time.Time) ([]models.Notification, error)
}

type NotificationHandler struct {
	store  NotificationReader
	latest func(context.Context) (time.Time, error)
}

type NotificationsResponse struct {
	Date          string                `json:"date"`
	Count         int                   `json:"count"`
	Notifications []models.Notification `json:"notifications"`
}

// NewNotificationHandler serves notifications; latest resolves the default
// date when the request names none.
func NewNotificationHandler(store NotificationReader, latest func(context.Context) (time.Time, error)) *NotificationHandler {
	return &NotificationHandler{store: store, latest: latest}
}

func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	date, ok := resolveDate(c, h.latest)
	if !ok {
		return
	}

	notes, err := h.store.ListByDate(c.Request.Context(), date)
	if err != nil {
		middleware.RecordError(c, err, "failed to list notifications")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load notifications"})
		return
	}

	c.JSON(http.StatusOK, NotificationsResponse{
		Date:          date.Format(models.DateLayout),
		Count:         len(notes),
		Notifications: notes,
	})
}
