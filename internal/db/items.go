package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"voicebot/internal/models"
)

// CreateItems inserts one item per non-empty trimmed line and returns how many were inserted.
// Lines inserted before a failure are kept.
func (s *Store) CreateItems(ctx context.Context, texts []string) (int, error) {
	inserted := 0
	for _, raw := range texts {
		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO items (text) VALUES ($1)", text); err != nil {
			log.Error().Err(err).Int("inserted", inserted).Msg("Error inserting item")
			return inserted, storageErr("create items", err)
		}
		inserted++
	}
	return inserted, nil
}

// PickUnclaimedItem returns a uniformly random item without a recording, or nil when none remain.
func (s *Store) PickUnclaimedItem(ctx context.Context) (*models.Item, error) {
	query := `
		SELECT id, text, audio_ref, author, author_id, completed_at, created_at
		FROM items
		WHERE audio_ref IS NULL
		ORDER BY random()
		LIMIT 1
	`
	item := &models.Item{}
	err := s.db.GetContext(ctx, item, query)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("pick unclaimed item", err)
	}
	return item, nil
}

// CompleteItem attaches a recording to an unclaimed item in one conditional update.
// It returns ErrAlreadyCompleted if another submission won, ErrNotFound if the id is unknown.
func (s *Store) CompleteItem(ctx context.Context, id int64, audioRef, author string, authorID int64, now time.Time) error {
	query := `
		UPDATE items
		SET audio_ref = $1, author = $2, author_id = $3, completed_at = $4
		WHERE id = $5 AND audio_ref IS NULL
	`
	res, err := s.db.ExecContext(ctx, query, audioRef, author, authorID, now, id)
	if err != nil {
		return storageErr("complete item", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return storageErr("complete item", err)
	}
	if affected == 1 {
		return nil
	}

	var exists bool
	if err := s.db.GetContext(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM items WHERE id = $1)", id); err != nil {
		return storageErr("complete item", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrAlreadyCompleted
}

// ListCompletedItems returns every completed item ordered by id.
func (s *Store) ListCompletedItems(ctx context.Context) ([]models.CompletedItem, error) {
	query := `
		SELECT id, text, audio_ref, author, completed_at
		FROM items
		WHERE audio_ref IS NOT NULL
		ORDER BY id
	`
	var items []models.CompletedItem
	if err := s.db.SelectContext(ctx, &items, query); err != nil {
		return nil, storageErr("list completed items", err)
	}
	return items, nil
}

// CountCompleted counts the items completed by authorID, optionally since the given instant (inclusive).
func (s *Store) CountCompleted(ctx context.Context, authorID int64, since *time.Time) (int, error) {
	var count int
	var err error
	if since == nil {
		err = s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM items WHERE author_id = $1", authorID)
	} else {
		err = s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM items WHERE author_id = $1 AND completed_at >= $2", authorID, *since)
	}
	if err != nil {
		return 0, storageErr("count completed", err)
	}
	return count, nil
}

// CountAllCompleted counts completed items across all users.
func (s *Store) CountAllCompleted(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM items WHERE audio_ref IS NOT NULL"); err != nil {
		return 0, storageErr("count all completed", err)
	}
	return count, nil
}

// CountUnclaimed counts items still waiting for a recording.
func (s *Store) CountUnclaimed(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM items WHERE audio_ref IS NULL"); err != nil {
		return 0, storageErr("count unclaimed", err)
	}
	return count, nil
}
