package models

import "time"

// NotificationRecord remembers when a contributor was last sent a progress reminder.
type NotificationRecord struct {
	UserID         int64      `db:"user_id"`
	LastNotifiedAt *time.Time `db:"last_notified_at"`
}
