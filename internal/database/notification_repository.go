package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/irfndi/sepa-screener/internal/models"
)

// NotificationRepository persists watch-list events.
type NotificationRepository struct {
	pool DatabasePool
}

func NewNotificationRepository(pool DatabasePool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

// UpsertMany writes every notification. IDs are deterministic, so a rerun of
// the same date overwrites its earlier rows.
func (r *NotificationRepository) UpsertMany(ctx context.Context, notifications []models.Notification) error {
	query := `
		INSERT INTO notifications (id, symbol, date, type, metric, old_value, new_value, reasons, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			old_value = EXCLUDED.old_value,
			new_value = EXCLUDED.new_value,
			reasons = EXCLUDED.reasons,
			created_at = EXCLUDED.created_at
	`

	for _, n := range notifications {
		reasons, err := json.Marshal(n.Reasons)
		if err != nil {
			return fmt.Errorf("failed to encode reasons for %s: %w", n.Symbol, err)
		}
		_, err = r.pool.Exec(ctx, query,
			n.ID,
			n.Symbol,
			models.DateOnly(n.Date),
			string(n.Type),
			n.Metric,
			n.OldValue,
			n.NewValue,
			reasons,
			n.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert notification %s for %s: %w", n.Metric, n.Symbol, err)
		}
	}
	return nil
}

// ListByDate returns the notifications of one analysis date.
func (r *NotificationRepository) ListByDate(ctx context.Context, date time.Time) ([]models.Notification, error) {
	query := `
		SELECT id, symbol, date, type, metric, old_value, new_value, reasons, created_at
		FROM notifications
		WHERE date = $1
		ORDER BY symbol ASC, type ASC, metric ASC
	`

	rows, err := r.pool.Query(ctx, query, models.DateOnly(date))
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	notifications := []models.Notification{}
	for rows.Next() {
		var (
			n       models.Notification
			id      uuid.UUID
			kind    string
			reasons []byte
		)
		if err := rows.Scan(&id, &n.Symbol, &n.Date, &kind, &n.Metric, &n.OldValue, &n.NewValue, &reasons, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.ID = id
		n.Type = models.NotificationType(kind)
		n.Date = models.DateOnly(n.Date)
		if len(reasons) > 0 {
			if err := json.Unmarshal(reasons, &n.Reasons); err != nil {
				return nil, fmt.Errorf("failed to decode reasons for %s: %w", n.Symbol, err)
			}
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}
	return notifications, nil
}
