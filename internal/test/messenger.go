package test

import (
	"context"
	"errors"
	"sync"

	"voicebot/internal/messenger"
)

// SentText is a text message captured by MockMessenger.
type SentText struct {
	ChatID int64
	Text   string
	HTML   bool
}

// SentDocument is a document captured by MockMessenger.
type SentDocument struct {
	ChatID   int64
	Filename string
	Data     []byte
	Caption  string
}

// MockMessenger records outbound messages and serves files from memory.
type MockMessenger struct {
	mu        sync.Mutex
	Texts     []SentText
	Documents []SentDocument
	Files     map[string][]byte
	// FailFor makes SendText fail for the listed chat ids.
	FailFor map[int64]bool
}

var _ messenger.Messenger = (*MockMessenger)(nil)

func NewMockMessenger() *MockMessenger {
	return &MockMessenger{
		Files:   make(map[string][]byte),
		FailFor: make(map[int64]bool),
	}
}

func (m *MockMessenger) SendText(ctx context.Context, chatID int64, text string, opts ...messenger.SendOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailFor[chatID] {
		return errors.New("bot was blocked by the user")
	}
	o := messenger.ApplySendOptions(opts...)
	m.Texts = append(m.Texts, SentText{ChatID: chatID, Text: text, HTML: o.HTML})
	return nil
}

func (m *MockMessenger) SendDocument(ctx context.Context, chatID int64, filename string, data []byte, caption string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Documents = append(m.Documents, SentDocument{ChatID: chatID, Filename: filename, Data: data, Caption: caption})
	return nil
}

func (m *MockMessenger) FetchFile(ctx context.Context, fileRef string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.Files[fileRef]
	if !ok {
		return nil, errors.New("file not found")
	}
	return data, nil
}

// TextsTo returns the messages sent to chatID in order.
func (m *MockMessenger) TextsTo(chatID int64) []SentText {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SentText
	for _, t := range m.Texts {
		if t.ChatID == chatID {
			out = append(out, t)
		}
	}
	return out
}
