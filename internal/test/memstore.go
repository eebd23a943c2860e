package test

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"voicebot/internal/db"
	"voicebot/internal/models"
)

// MemStore is an in-memory item table and notification ledger with the same
// completion semantics as db.Store.
type MemStore struct {
	mu       sync.Mutex
	nextID   int64
	items    map[int64]*models.Item
	notified map[int64]time.Time

	// FailCreateAfter makes CreateItems fail once this many items were inserted, when > 0.
	FailCreateAfter int
	// Err is returned by every call when set.
	Err error
}

func NewMemStore() *MemStore {
	return &MemStore{
		items:    make(map[int64]*models.Item),
		notified: make(map[int64]time.Time),
	}
}

func (m *MemStore) CreateItems(ctx context.Context, texts []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	inserted := 0
	for _, raw := range texts {
		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}
		if m.FailCreateAfter > 0 && inserted >= m.FailCreateAfter {
			return inserted, &db.StorageError{Op: "create items", Err: context.DeadlineExceeded}
		}
		m.nextID++
		m.items[m.nextID] = &models.Item{ID: m.nextID, Text: text, CreatedAt: time.Now()}
		inserted++
	}
	return inserted, nil
}

func (m *MemStore) PickUnclaimedItem(ctx context.Context) (*models.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var open []*models.Item
	for _, item := range m.items {
		if !item.Completed() {
			open = append(open, item)
		}
	}
	if len(open) == 0 {
		return nil, nil
	}
	picked := *open[rand.Intn(len(open))]
	return &picked, nil
}

func (m *MemStore) CompleteItem(ctx context.Context, id int64, audioRef, author string, authorID int64, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	item, ok := m.items[id]
	if !ok {
		return db.ErrNotFound
	}
	if item.Completed() {
		return db.ErrAlreadyCompleted
	}
	item.AudioRef = &audioRef
	item.Author = &author
	item.AuthorID = &authorID
	item.CompletedAt = &now
	return nil
}

// Item returns a copy of the stored item.
func (m *MemStore) Item(id int64) (models.Item, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return models.Item{}, false
	}
	return *item, true
}

func (m *MemStore) ListCompletedItems(ctx context.Context) ([]models.CompletedItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []models.CompletedItem
	for _, item := range m.items {
		if !item.Completed() {
			continue
		}
		out = append(out, models.CompletedItem{
			ID:          item.ID,
			Text:        item.Text,
			AudioRef:    *item.AudioRef,
			Author:      *item.Author,
			CompletedAt: *item.CompletedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) CountCompleted(ctx context.Context, authorID int64, since *time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	count := 0
	for _, item := range m.items {
		if item.AuthorID == nil || *item.AuthorID != authorID {
			continue
		}
		if since != nil && item.CompletedAt.Before(*since) {
			continue
		}
		count++
	}
	return count, nil
}

func (m *MemStore) CountAllCompleted(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	count := 0
	for _, item := range m.items {
		if item.Completed() {
			count++
		}
	}
	return count, nil
}

func (m *MemStore) CountUnclaimed(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	count := 0
	for _, item := range m.items {
		if !item.Completed() {
			count++
		}
	}
	return count, nil
}

func (m *MemStore) EligibleRecipients(ctx context.Context, threshold time.Time) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	seen := make(map[int64]bool)
	var ids []int64
	for _, item := range m.items {
		if item.AuthorID == nil || seen[*item.AuthorID] {
			continue
		}
		id := *item.AuthorID
		seen[id] = true
		if last, ok := m.notified[id]; ok && last.After(threshold) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *MemStore) MarkNotified(ctx context.Context, userID int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if last, ok := m.notified[userID]; !ok || at.After(last) {
		m.notified[userID] = at
	}
	return nil
}

func (m *MemStore) GetNotificationRecord(ctx context.Context, userID int64) (*models.NotificationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	at, ok := m.notified[userID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &models.NotificationRecord{UserID: userID, LastNotifiedAt: &at}, nil
}

// SetNotified seeds the ledger.
func (m *MemStore) SetNotified(userID int64, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notified[userID] = at
}

// LastNotified reads the ledger.
func (m *MemStore) LastNotified(userID int64) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.notified[userID]
	return at, ok
}

// AddCompleted seeds a completed item.
func (m *MemStore) AddCompleted(text, audioRef, author string, authorID int64, at time.Time) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.items[m.nextID] = &models.Item{
		ID:          m.nextID,
		Text:        text,
		AudioRef:    &audioRef,
		Author:      &author,
		AuthorID:    &authorID,
		CompletedAt: &at,
		CreatedAt:   at,
	}
	return m.nextID
}
