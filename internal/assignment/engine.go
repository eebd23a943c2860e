package assignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"voicebot/internal/db"
	"voicebot/internal/metrics"
	"voicebot/internal/models"
)

var (
	// ErrExhausted means every item already has a recording.
	ErrExhausted = errors.New("no unclaimed items left")
	// ErrNoPendingTask means audio arrived before any task was offered.
	ErrNoPendingTask = errors.New("no pending task")
)

// ItemStore is the part of db.Store the engine needs.
type ItemStore interface {
	PickUnclaimedItem(ctx context.Context) (*models.Item, error)
	CompleteItem(ctx context.Context, id int64, audioRef, author string, authorID int64, now time.Time) error
}

// TaskOffer is the item shown to the user.
type TaskOffer struct {
	ItemID int64
	Text   string
}

// Engine hands out unclaimed items and records submissions. Offers are not
// reservations: two sessions may see the same item and the store decides which
// submission wins.
type Engine struct {
	store ItemStore
}

func NewEngine(store ItemStore) *Engine {
	return &Engine{store: store}
}

// OfferNextTask picks a random unclaimed item and makes it the session's pending task,
// replacing any previous one.
func (e *Engine) OfferNextTask(ctx context.Context, session *Session) (*TaskOffer, error) {
	item, err := e.store.PickUnclaimedItem(ctx)
	if err != nil {
		return nil, fmt.Errorf("offer next task: %w", err)
	}
	if item == nil {
		return nil, ErrExhausted
	}
	session.setPending(item.ID)
	return &TaskOffer{ItemID: item.ID, Text: item.Text}, nil
}

// SubmitCompletion records audioRef against the session's pending item.
// On db.ErrAlreadyCompleted or db.ErrNotFound the pending task is dropped so the
// caller can offer a fresh one.
func (e *Engine) SubmitCompletion(ctx context.Context, session *Session, audioRef, author string, authorID int64, now time.Time) error {
	itemID, ok := session.PendingItemID()
	if !ok {
		metrics.Completions.WithLabelValues("no_pending").Inc()
		return ErrNoPendingTask
	}

	err := e.store.CompleteItem(ctx, itemID, audioRef, author, authorID, now)
	switch {
	case err == nil:
		session.clearIf(itemID)
		metrics.Completions.WithLabelValues("accepted").Inc()
		log.Info().Int64("item_id", itemID).Int64("user_id", authorID).Msg("Submission accepted")
		return nil
	case errors.Is(err, db.ErrAlreadyCompleted), errors.Is(err, db.ErrNotFound):
		session.clearIf(itemID)
		if errors.Is(err, db.ErrNotFound) {
			metrics.Completions.WithLabelValues("not_found").Inc()
		} else {
			metrics.Completions.WithLabelValues("already_completed").Inc()
		}
		log.Info().Int64("item_id", itemID).Int64("user_id", authorID).Err(err).Msg("Submission lost the race")
		return err
	default:
		metrics.Completions.WithLabelValues("error").Inc()
		return fmt.Errorf("submit completion for item %d: %w", itemID, err)
	}
}
