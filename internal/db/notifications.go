package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"voicebot/internal/models"
)

// EligibleRecipients returns the authors of at least one completed item who were never notified
// or were last notified at or before threshold. It is a single statement, so the set is a
// consistent snapshot.
func (s *Store) EligibleRecipients(ctx context.Context, threshold time.Time) ([]int64, error) {
	query := `
		SELECT DISTINCT i.author_id
		FROM items i
		LEFT JOIN notifications n ON n.user_id = i.author_id
		WHERE i.author_id IS NOT NULL
		  AND (n.last_notified_at IS NULL OR n.last_notified_at <= $1)
		ORDER BY i.author_id
	`
	var ids []int64
	if err := s.db.SelectContext(ctx, &ids, query, threshold); err != nil {
		return nil, storageErr("eligible recipients", err)
	}
	return ids, nil
}

// MarkNotified records a successful reminder. last_notified_at never moves backwards.
func (s *Store) MarkNotified(ctx context.Context, userID int64, at time.Time) error {
	query := `
		INSERT INTO notifications (user_id, last_notified_at)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET
			last_notified_at = GREATEST(notifications.last_notified_at, EXCLUDED.last_notified_at)
	`
	if _, err := s.db.ExecContext(ctx, query, userID, at); err != nil {
		return storageErr("mark notified", err)
	}
	return nil
}

// GetNotificationRecord returns the ledger row for userID, or ErrNotFound.
func (s *Store) GetNotificationRecord(ctx context.Context, userID int64) (*models.NotificationRecord, error) {
	rec := &models.NotificationRecord{}
	err := s.db.GetContext(ctx, rec, "SELECT user_id, last_notified_at FROM notifications WHERE user_id = $1", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get notification record", err)
	}
	return rec, nil
}
