package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"voicebot/internal/messenger"
	"voicebot/internal/metrics"
)

// Store is the part of db.Store the notifier reads and writes.
type Store interface {
	EligibleRecipients(ctx context.Context, threshold time.Time) ([]int64, error)
	MarkNotified(ctx context.Context, userID int64, at time.Time) error
	CountCompleted(ctx context.Context, authorID int64, since *time.Time) (int, error)
	CountAllCompleted(ctx context.Context) (int, error)
}

// Translator renders a localized message.
type Translator interface {
	T(lang, key string, params map[string]any) string
}

// Config controls whether and how often reminders go out.
type Config struct {
	Enabled  bool
	Interval time.Duration
	Language string
}

// TickResult summarizes one tick.
type TickResult struct {
	Eligible int
	Sent     int
	Failed   int
	// Deferred counts recipients left for the next tick because ctx ended first.
	Deferred int
	Skipped  bool
}

// Notifier sends progress reminders to contributors, at most once per interval.
// The last send time is persisted, so restarts neither repeat nor skip reminders.
type Notifier struct {
	store     Store
	messenger messenger.Messenger
	tr        Translator
	cfg       Config
	now       func() time.Time
}

func New(store Store, m messenger.Messenger, tr Translator, cfg Config) *Notifier {
	return &Notifier{store: store, messenger: m, tr: tr, cfg: cfg, now: time.Now}
}

// WithClock replaces the time source, for tests.
func (n *Notifier) WithClock(now func() time.Time) *Notifier {
	n.now = now
	return n
}

// Tick sends one round of reminders. Only the eligible-set read can fail the tick;
// a failed delivery is logged and retried on a later tick.
func (n *Notifier) Tick(ctx context.Context) (TickResult, error) {
	if !n.cfg.Enabled || n.cfg.Interval <= 0 {
		return TickResult{Skipped: true}, nil
	}

	start := time.Now()
	defer func() { metrics.NotifyTickDuration.Observe(time.Since(start).Seconds()) }()

	now := n.now()
	threshold := now.Add(-n.cfg.Interval)

	recipients, err := n.store.EligibleRecipients(ctx, threshold)
	if err != nil {
		return TickResult{}, fmt.Errorf("load eligible recipients: %w", err)
	}
	res := TickResult{Eligible: len(recipients)}
	if len(recipients) == 0 {
		return res, nil
	}

	global, err := n.store.CountAllCompleted(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to count completed items, skipping tick")
		res.Failed = len(recipients)
		return res, nil
	}

	for i, userID := range recipients {
		if ctx.Err() != nil {
			res.Deferred = len(recipients) - i
			log.Warn().Err(ctx.Err()).Int("deferred", res.Deferred).Msg("Tick deadline reached, remaining reminders deferred")
			break
		}
		if err := n.notify(ctx, userID, global, now); err != nil {
			log.Error().Err(err).Int64("user_id", userID).Msg("Failed to notify user")
			metrics.Notifications.WithLabelValues("failed").Inc()
			res.Failed++
			continue
		}
		metrics.Notifications.WithLabelValues("sent").Inc()
		res.Sent++
	}

	log.Info().Int("eligible", res.Eligible).Int("sent", res.Sent).Int("failed", res.Failed).Int("deferred", res.Deferred).Msg("Notification tick finished")
	return res, nil
}

func (n *Notifier) notify(ctx context.Context, userID int64, global int, now time.Time) error {
	total, err := n.store.CountCompleted(ctx, userID, nil)
	if err != nil {
		return fmt.Errorf("count user total: %w", err)
	}

	text := n.tr.T(n.cfg.Language, "reminder", map[string]any{
		"Global":    global,
		"UserTotal": total,
	})
	if err := n.messenger.SendText(ctx, userID, text, messenger.WithHTML()); err != nil {
		return fmt.Errorf("send reminder: %w", err)
	}

	// A delivered reminder is always recorded, even if ctx ended during the send.
	// All sends of one tick share the tick's timestamp.
	if err := n.store.MarkNotified(context.WithoutCancel(ctx), userID, now); err != nil {
		return fmt.Errorf("record reminder: %w", err)
	}
	return nil
}
