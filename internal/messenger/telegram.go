package messenger

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"voicebot/internal/models"
)

const maxDownloadBytes = 50 << 20

// Telegram implements Messenger on top of the Bot API.
type Telegram struct {
	bot  *tgbotapi.BotAPI
	http *resty.Client
}

var _ Messenger = (*Telegram)(nil)

// NewTelegram authorizes the bot token against the Bot API.
func NewTelegram(token string) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	log.Info().Str("account", bot.Self.UserName).Msg("Authorized on Telegram")

	client := resty.New().
		SetTimeout(60 * time.Second).
		SetHeader("User-Agent", "voicebot/1.0")

	return &Telegram{bot: bot, http: client}, nil
}

func (t *Telegram) SendText(ctx context.Context, chatID int64, text string, opts ...SendOption) error {
	o := ApplySendOptions(opts...)
	msg := tgbotapi.NewMessage(chatID, text)
	if o.HTML {
		msg.ParseMode = tgbotapi.ModeHTML
	}
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("send message to %d: %w", chatID, err)
	}
	return nil
}

func (t *Telegram) SendDocument(ctx context.Context, chatID int64, filename string, data []byte, caption string) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: filename, Bytes: data})
	doc.Caption = caption
	if _, err := t.bot.Send(doc); err != nil {
		return fmt.Errorf("send document %s to %d: %w", filename, chatID, err)
	}
	return nil
}

func (t *Telegram) FetchFile(ctx context.Context, fileRef string) ([]byte, error) {
	url, err := t.bot.GetFileDirectURL(fileRef)
	if err != nil {
		return nil, fmt.Errorf("resolve file %s: %w", fileRef, err)
	}

	resp, err := t.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("download file %s: %w", fileRef, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("download file %s: status %d", fileRef, resp.StatusCode())
	}
	body := resp.Body()
	if len(body) > maxDownloadBytes {
		return nil, fmt.Errorf("download file %s: %d bytes exceeds limit", fileRef, len(body))
	}
	return body, nil
}

// Updates long-polls the Bot API and translates messages into Events until ctx is done.
func (t *Telegram) Updates(ctx context.Context) <-chan Event {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := t.bot.GetUpdatesChan(u)

	events := make(chan Event)
	go func() {
		defer close(events)
		for {
			select {
			case <-ctx.Done():
				t.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message == nil { // ignore any non-Message updates
					continue
				}
				ev := translate(update.Message)
				select {
				case events <- ev:
				case <-ctx.Done():
					t.bot.StopReceivingUpdates()
					return
				}
			}
		}
	}()
	return events
}

func translate(message *tgbotapi.Message) Event {
	ev := Event{
		ChatID: message.Chat.ID,
		Text:   message.Text,
	}
	if message.From != nil {
		ev.User = models.User{
			ID:           message.From.ID,
			Username:     message.From.UserName,
			FirstName:    message.From.FirstName,
			LanguageCode: message.From.LanguageCode,
		}
	}

	switch {
	case message.IsCommand():
		ev.Kind = commandKind(message.Command())
	case message.Voice != nil:
		ev.Kind = EventVoice
		ev.FileRef = message.Voice.FileID
	case message.Audio != nil:
		ev.Kind = EventVoice
		ev.FileRef = message.Audio.FileID
		ev.FileName = message.Audio.FileName
	case message.Document != nil:
		ev.Kind = EventDocument
		ev.FileRef = message.Document.FileID
		ev.FileName = message.Document.FileName
	case message.Text != "":
		ev.Kind = EventText
	default:
		ev.Kind = EventUnknown
	}
	return ev
}

func commandKind(command string) EventKind {
	switch command {
	case "start", "task":
		return EventStart
	case "stats":
		return EventStats
	case "export":
		return EventExport
	default:
		return EventUnknown
	}
}
