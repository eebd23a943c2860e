package handlers

import (
	"context"
	"errors"
	"fmt"
	"html"

	"github.com/rs/zerolog/log"

	"voicebot/internal/assignment"
	"voicebot/internal/db"
	"voicebot/internal/importer"
	"voicebot/internal/messenger"
	"voicebot/pkg/tasks"
)

// Handle processes one event and replies to its chat.
func (b *Bot) Handle(ctx context.Context, ev messenger.Event) error {
	if ev.ChatID == 0 {
		return nil
	}
	lang := ev.User.LanguageCode
	log.Debug().Int64("chat_id", ev.ChatID).Str("user", ev.User.DisplayName()).Str("kind", ev.Kind.String()).Msg("Event received")

	if b.limiter != nil && !b.limiter.Allow(ev.User.ID) {
		log.Warn().Int64("user_id", ev.User.ID).Msg("Rate limit exceeded")
		return b.reply(ctx, ev.ChatID, lang, "rate_limited", nil)
	}

	switch ev.Kind {
	case messenger.EventStart:
		return b.handleStart(ctx, ev, lang)
	case messenger.EventVoice:
		return b.handleVoice(ctx, ev, lang)
	case messenger.EventDocument:
		return b.handleDocument(ctx, ev, lang)
	case messenger.EventExport:
		return b.handleExport(ctx, ev, lang)
	case messenger.EventStats:
		return b.handleStats(ctx, ev, lang)
	default:
		return b.reply(ctx, ev.ChatID, lang, "unknown_command", nil)
	}
}

func (b *Bot) handleStart(ctx context.Context, ev messenger.Event, lang string) error {
	if err := b.reply(ctx, ev.ChatID, lang, "greeting", nil); err != nil {
		return err
	}
	return b.offerTask(ctx, ev.ChatID, lang, "")
}

func (b *Bot) handleVoice(ctx context.Context, ev messenger.Event, lang string) error {
	session := b.sessions.Get(ev.ChatID)
	err := b.engine.SubmitCompletion(ctx, session, ev.FileRef, ev.User.DisplayName(), ev.User.ID, b.now())
	switch {
	case err == nil:
		return b.offerTask(ctx, ev.ChatID, lang, "thanks")
	case errors.Is(err, db.ErrAlreadyCompleted), errors.Is(err, db.ErrNotFound):
		return b.offerTask(ctx, ev.ChatID, lang, "race_lost")
	case errors.Is(err, assignment.ErrNoPendingTask):
		return b.reply(ctx, ev.ChatID, lang, "start_first", nil)
	default:
		b.replyError(ctx, ev.ChatID, lang)
		return err
	}
}

// offerTask sends a fresh task, prefixed by the lead message when one is given.
func (b *Bot) offerTask(ctx context.Context, chatID int64, lang, lead string) error {
	offer, err := b.engine.OfferNextTask(ctx, b.sessions.Get(chatID))
	var text string
	switch {
	case errors.Is(err, assignment.ErrExhausted):
		text = html.EscapeString(b.tr.T(lang, "all_done", nil))
	case err != nil:
		b.replyError(ctx, chatID, lang)
		return err
	default:
		text = b.tr.T(lang, "task_prompt", map[string]any{"Text": html.EscapeString(offer.Text)})
	}

	if lead != "" {
		text = html.EscapeString(b.tr.T(lang, lead, nil)) + "\n\n" + text
	}
	return b.messenger.SendText(ctx, chatID, text, messenger.WithHTML())
}

func (b *Bot) handleDocument(ctx context.Context, ev messenger.Event, lang string) error {
	if err := b.admins.Authorize(ev.User.ID); err != nil {
		log.Warn().Int64("user_id", ev.User.ID).Str("kind", ev.Kind.String()).Msg("Admin command refused")
		return b.reply(ctx, ev.ChatID, lang, "unauthorized", nil)
	}

	data, err := b.messenger.FetchFile(ctx, ev.FileRef)
	if err != nil {
		b.replyFailure(ctx, ev.ChatID, lang, "import_failed", map[string]any{"Error": "could not download the file", "Count": 0})
		return fmt.Errorf("fetch import file: %w", err)
	}

	count, err := importer.Import(ctx, b.items, data)
	if err != nil {
		b.replyFailure(ctx, ev.ChatID, lang, "import_failed", map[string]any{"Error": err.Error(), "Count": count})
		return err
	}
	log.Info().Int64("user_id", ev.User.ID).Str("file", ev.FileName).Int("count", count).Msg("Items imported")
	return b.reply(ctx, ev.ChatID, lang, "import_done", map[string]any{"Count": count})
}

func (b *Bot) handleExport(ctx context.Context, ev messenger.Event, lang string) error {
	if err := b.admins.Authorize(ev.User.ID); err != nil {
		log.Warn().Int64("user_id", ev.User.ID).Str("kind", ev.Kind.String()).Msg("Admin command refused")
		return b.reply(ctx, ev.ChatID, lang, "unauthorized", nil)
	}

	if b.asynqClient == nil {
		_, err := b.exporter.Deliver(ctx, ev.ChatID, lang)
		return err
	}

	task, err := tasks.NewExportBuildTask(ev.ChatID, lang)
	if err != nil {
		b.replyError(ctx, ev.ChatID, lang)
		return fmt.Errorf("create export task: %w", err)
	}
	if _, err := b.asynqClient.Enqueue(task, tasks.ExportBuildOptions()...); err != nil {
		b.replyError(ctx, ev.ChatID, lang)
		return fmt.Errorf("enqueue export task: %w", err)
	}
	return b.reply(ctx, ev.ChatID, lang, "export_started", nil)
}

func (b *Bot) handleStats(ctx context.Context, ev messenger.Event, lang string) error {
	s, err := b.stats.UserStats(ctx, ev.User.ID, b.now().In(b.loc))
	if err != nil {
		b.replyError(ctx, ev.ChatID, lang)
		return err
	}
	global, err := b.stats.Global(ctx)
	if err != nil {
		b.replyError(ctx, ev.ChatID, lang)
		return err
	}
	remaining, err := b.stats.Remaining(ctx)
	if err != nil {
		b.replyError(ctx, ev.ChatID, lang)
		return err
	}

	text := b.tr.T(lang, "stats", map[string]any{
		"Total":     s.Total,
		"Today":     s.Today,
		"Week":      s.ThisWeek,
		"Month":     s.ThisMonth,
		"Global":    global,
		"Remaining": remaining,
	})
	return b.messenger.SendText(ctx, ev.ChatID, text, messenger.WithHTML())
}

func (b *Bot) reply(ctx context.Context, chatID int64, lang, key string, params map[string]any) error {
	return b.messenger.SendText(ctx, chatID, b.tr.T(lang, key, params))
}

func (b *Bot) replyError(ctx context.Context, chatID int64, lang string) {
	b.replyFailure(ctx, chatID, lang, "generic_error", nil)
}

// replyFailure reports a failed command. The caller returns the original error,
// so a failed send is only logged.
func (b *Bot) replyFailure(ctx context.Context, chatID int64, lang, key string, params map[string]any) {
	if err := b.reply(ctx, chatID, lang, key, params); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Str("key", key).Msg("Failed to send error reply")
	}
}
