package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicebot/internal/i18n"
	"voicebot/internal/messenger"
	"voicebot/internal/test"
)

const interval = 24 * time.Hour

var t0 = time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

func newNotifier(t *testing.T, store *test.MemStore, m *test.MockMessenger, cfg Config, now time.Time) *Notifier {
	t.Helper()
	loc, err := i18n.New("en")
	require.NoError(t, err)
	return New(store, m, loc, cfg).WithClock(func() time.Time { return now })
}

func enabled() Config {
	return Config{Enabled: true, Interval: interval, Language: "en"}
}

func TestTickDisabled(t *testing.T) {
	store := test.NewMemStore()
	store.AddCompleted("a", "f", "alice", 7, t0)
	m := test.NewMockMessenger()

	for _, cfg := range []Config{
		{Enabled: false, Interval: interval},
		{Enabled: true, Interval: 0},
		{Enabled: true, Interval: -time.Hour},
	} {
		res, err := newNotifier(t, store, m, cfg, t0).Tick(context.Background())
		require.NoError(t, err)
		assert.True(t, res.Skipped)
	}
	assert.Empty(t, m.Texts)
}

func TestTickSendsAndRecords(t *testing.T) {
	store := test.NewMemStore()
	store.AddCompleted("a", "f1", "alice", 7, t0.Add(-time.Hour))
	store.AddCompleted("b", "f2", "alice", 7, t0.Add(-time.Hour))
	store.AddCompleted("c", "f3", "bob", 8, t0.Add(-time.Hour))
	m := test.NewMockMessenger()

	res, err := newNotifier(t, store, m, enabled(), t0).Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TickResult{Eligible: 2, Sent: 2}, res)

	texts := m.TextsTo(7)
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0].Text, "3 sentences recorded so far, 2 of them by you")

	for _, id := range []int64{7, 8} {
		at, ok := store.LastNotified(id)
		require.True(t, ok)
		assert.Equal(t, t0, at)
	}
}

func TestTickRespectsInterval(t *testing.T) {
	store := test.NewMemStore()
	store.AddCompleted("a", "f1", "alice", 7, t0.Add(-48*time.Hour))
	store.SetNotified(7, t0)
	m := test.NewMockMessenger()

	res, err := newNotifier(t, store, m, enabled(), t0.Add(interval/2)).Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Sent)
	assert.Empty(t, m.Texts)

	later := t0.Add(interval + time.Second)
	res, err = newNotifier(t, store, m, enabled(), later).Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)

	at, _ := store.LastNotified(7)
	assert.Equal(t, later, at)
}

func TestTickBoundaryIsInclusive(t *testing.T) {
	store := test.NewMemStore()
	store.AddCompleted("a", "f1", "alice", 7, t0.Add(-48*time.Hour))
	store.SetNotified(7, t0)
	m := test.NewMockMessenger()

	res, err := newNotifier(t, store, m, enabled(), t0.Add(interval)).Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
}

func TestTickIgnoresUsersWithoutCompletions(t *testing.T) {
	store := test.NewMemStore()
	_, err := store.CreateItems(context.Background(), []string{"open"})
	require.NoError(t, err)
	m := test.NewMockMessenger()

	res, err := newNotifier(t, store, m, enabled(), t0.Add(1000*interval)).Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Eligible)
	assert.Empty(t, m.Texts)
}

func TestTickDeliveryFailureIsRetriedNextTick(t *testing.T) {
	store := test.NewMemStore()
	store.AddCompleted("a", "f1", "alice", 7, t0.Add(-time.Hour))
	store.AddCompleted("b", "f2", "bob", 8, t0.Add(-time.Hour))
	m := test.NewMockMessenger()
	m.FailFor[7] = true

	res, err := newNotifier(t, store, m, enabled(), t0).Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TickResult{Eligible: 2, Sent: 1, Failed: 1}, res)

	_, ok := store.LastNotified(7)
	assert.False(t, ok, "failed delivery must not touch the ledger")
	assert.Len(t, m.TextsTo(8), 1)

	m.FailFor[7] = false
	res, err = newNotifier(t, store, m, enabled(), t0.Add(time.Minute)).Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TickResult{Eligible: 1, Sent: 1}, res)
	assert.Len(t, m.TextsTo(7), 1)
	assert.Len(t, m.TextsTo(8), 1)
}

func TestTickSurvivesRestart(t *testing.T) {
	store := test.NewMemStore()
	store.AddCompleted("a", "f1", "alice", 7, t0.Add(-time.Hour))
	m := test.NewMockMessenger()

	_, err := newNotifier(t, store, m, enabled(), t0).Tick(context.Background())
	require.NoError(t, err)

	// A fresh notifier over the same store stands in for a restarted process.
	res, err := newNotifier(t, store, m, enabled(), t0.Add(time.Minute)).Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Eligible)
	assert.Len(t, m.TextsTo(7), 1)
}

func TestTickStorageError(t *testing.T) {
	store := test.NewMemStore()
	store.Err = errors.New("db down")

	_, err := newNotifier(t, store, test.NewMockMessenger(), enabled(), t0).Tick(context.Background())
	assert.Error(t, err)
}

// slowMessenger delivers after a delay and, like the Bot API client, ignores ctx.
type slowMessenger struct {
	*test.MockMessenger
	delay time.Duration
}

func (m *slowMessenger) SendText(ctx context.Context, chatID int64, text string, opts ...messenger.SendOption) error {
	time.Sleep(m.delay)
	return m.MockMessenger.SendText(context.Background(), chatID, text, opts...)
}

func TestTickRecordsDeliveryThatOutlivesDeadline(t *testing.T) {
	store, mock := test.NewMockDB(t)

	mock.ExpectQuery(`SELECT DISTINCT i.author_id`).
		WithArgs(t0.Add(-interval)).
		WillReturnRows(sqlmock.NewRows([]string{"author_id"}).AddRow(7).AddRow(8))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM items WHERE audio_ref IS NOT NULL`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM items WHERE author_id = \$1$`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectExec(`INSERT INTO notifications`).
		WithArgs(int64(7), t0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	tr, err := i18n.New("en")
	require.NoError(t, err)
	m := &slowMessenger{MockMessenger: test.NewMockMessenger(), delay: 100 * time.Millisecond}
	n := New(store, m, tr, enabled()).WithClock(func() time.Time { return t0 })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res, err := n.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, TickResult{Eligible: 2, Sent: 1, Deferred: 1}, res)
	assert.Len(t, m.TextsTo(7), 1)
	assert.Empty(t, m.TextsTo(8))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTickStopsWhenContextDone(t *testing.T) {
	store := test.NewMemStore()
	store.AddCompleted("a", "f1", "alice", 7, t0.Add(-time.Hour))
	m := test.NewMockMessenger()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newNotifier(t, store, m, enabled(), t0).Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, TickResult{Eligible: 1, Deferred: 1}, res)
	assert.Empty(t, m.Texts)
	_, ok := store.LastNotified(7)
	assert.False(t, ok)
}
