package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"voicebot/internal/messenger"
)

// ErrEmpty means there is nothing recorded to export.
var ErrEmpty = errors.New("no completed items")

// Translator renders a localized message.
type Translator interface {
	T(lang, key string, params map[string]any) string
}

// Exporter builds archives and delivers them to the requesting chat.
type Exporter struct {
	lister       Lister
	messenger    messenger.Messenger
	tr           Translator
	now          func() time.Time
	maxPartBytes int
}

func NewExporter(lister Lister, m messenger.Messenger, tr Translator) *Exporter {
	return &Exporter{lister: lister, messenger: m, tr: tr, now: time.Now, maxPartBytes: DefaultMaxPartBytes}
}

// Deliver builds the archive in memory and sends it to chatID as one or more documents,
// each within the upload limit. Every outcome is reported to the chat in lang;
// the returned error is for the caller's logs.
func (e *Exporter) Deliver(ctx context.Context, chatID int64, lang string) (Result, error) {
	parts, res, err := BuildParts(ctx, e.lister, e.messenger, e.maxPartBytes)
	if err == nil && res.Exported == 0 && res.Skipped == 0 {
		err = ErrEmpty
	}
	if err != nil {
		key := "export_failed"
		if errors.Is(err, ErrEmpty) {
			key = "export_empty"
		}
		text := e.tr.T(lang, key, map[string]any{"Error": err.Error()})
		if sendErr := e.messenger.SendText(ctx, chatID, text); sendErr != nil {
			log.Error().Err(sendErr).Int64("chat_id", chatID).Msg("Failed to report export failure")
		}
		return res, err
	}

	now := e.now()
	if len(parts) == 1 {
		caption := e.tr.T(lang, "export_caption", map[string]any{"Count": res.Exported})
		if err := e.messenger.SendDocument(ctx, chatID, Filename(now), parts[0], caption); err != nil {
			return res, err
		}
	} else {
		for i, part := range parts {
			caption := e.tr.T(lang, "export_caption_part", map[string]any{
				"Part":  i + 1,
				"Parts": len(parts),
				"Count": res.Exported,
			})
			if err := e.messenger.SendDocument(ctx, chatID, PartFilename(now, i+1, len(parts)), part, caption); err != nil {
				return res, fmt.Errorf("send part %d of %d: %w", i+1, len(parts), err)
			}
		}
	}
	log.Info().Int64("chat_id", chatID).Int("exported", res.Exported).Int("skipped", res.Skipped).Int("parts", len(parts)).Msg("Export delivered")
	return res, nil
}
