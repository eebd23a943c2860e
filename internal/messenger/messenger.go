package messenger

import (
	"context"

	"voicebot/internal/models"
)

// EventKind classifies an inbound message.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventStart
	EventStats
	EventExport
	EventVoice
	EventDocument
	EventText
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventStats:
		return "stats"
	case EventExport:
		return "export"
	case EventVoice:
		return "voice"
	case EventDocument:
		return "document"
	case EventText:
		return "text"
	default:
		return "unknown"
	}
}

// Event is one inbound message, already stripped of transport details.
type Event struct {
	Kind   EventKind
	ChatID int64
	User   models.User
	// FileRef identifies the voice recording or document at the transport.
	FileRef  string
	FileName string
	Text     string
}

// SendOptions control how a text message is rendered.
type SendOptions struct {
	HTML bool
}

type SendOption func(*SendOptions)

// WithHTML marks the message body as HTML.
func WithHTML() SendOption {
	return func(o *SendOptions) { o.HTML = true }
}

// ApplySendOptions folds opts into a SendOptions value.
func ApplySendOptions(opts ...SendOption) SendOptions {
	var o SendOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Messenger delivers messages and files to users and fetches uploaded files.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string, opts ...SendOption) error
	SendDocument(ctx context.Context, chatID int64, filename string, data []byte, caption string) error
	FetchFile(ctx context.Context, fileRef string) ([]byte, error)
}
