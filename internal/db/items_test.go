package db_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicebot/internal/db"
	"voicebot/internal/test"
)

var itemColumns = []string{"id", "text", "audio_ref", "author", "author_id", "completed_at", "created_at"}

func TestCreateItemsSkipsBlankLines(t *testing.T) {
	store, mock := test.NewMockDB(t)

	mock.ExpectExec(`INSERT INTO items \(text\) VALUES \(\$1\)`).WithArgs("Hello").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO items \(text\) VALUES \(\$1\)`).WithArgs("World").WillReturnResult(sqlmock.NewResult(2, 1))

	count, err := store.CreateItems(context.Background(), []string{"Hello", "", "  ", " World "})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateItemsKeepsRowsBeforeFailure(t *testing.T) {
	store, mock := test.NewMockDB(t)

	mock.ExpectExec(`INSERT INTO items`).WithArgs("a").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO items`).WithArgs("b").WillReturnError(errors.New("connection reset"))

	count, err := store.CreateItems(context.Background(), []string{"a", "b", "c"})
	assert.Equal(t, 1, count)

	var storageErr *db.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "create items", storageErr.Op)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPickUnclaimedItem(t *testing.T) {
	store, mock := test.NewMockDB(t)

	rows := sqlmock.NewRows(itemColumns).AddRow(3, "Привет", nil, nil, nil, nil, time.Now())
	mock.ExpectQuery(`SELECT id, text, audio_ref, author, author_id, completed_at, created_at\s+FROM items\s+WHERE audio_ref IS NULL\s+ORDER BY random\(\)`).WillReturnRows(rows)

	item, err := store.PickUnclaimedItem(context.Background())
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, int64(3), item.ID)
	assert.Equal(t, "Привет", item.Text)
	assert.False(t, item.Completed())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPickUnclaimedItemNoneLeft(t *testing.T) {
	store, mock := test.NewMockDB(t)

	mock.ExpectQuery(`FROM items\s+WHERE audio_ref IS NULL`).WillReturnError(sql.ErrNoRows)

	item, err := store.PickUnclaimedItem(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, item)
}

func TestCompleteItem(t *testing.T) {
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	t.Run("accepted", func(t *testing.T) {
		store, mock := test.NewMockDB(t)
		mock.ExpectExec(`UPDATE items\s+SET audio_ref = \$1, author = \$2, author_id = \$3, completed_at = \$4\s+WHERE id = \$5 AND audio_ref IS NULL`).
			WithArgs("file-1", "alice", int64(7), now, int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := store.CompleteItem(context.Background(), 1, "file-1", "alice", 7, now)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already completed", func(t *testing.T) {
		store, mock := test.NewMockDB(t)
		mock.ExpectExec(`UPDATE items`).WithArgs("file-2", "bob", int64(8), now, int64(1)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM items WHERE id = \$1\)`).WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		err := store.CompleteItem(context.Background(), 1, "file-2", "bob", 8, now)
		assert.ErrorIs(t, err, db.ErrAlreadyCompleted)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		store, mock := test.NewMockDB(t)
		mock.ExpectExec(`UPDATE items`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT EXISTS`).WithArgs(int64(99)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		err := store.CompleteItem(context.Background(), 99, "file-3", "carol", 9, now)
		assert.ErrorIs(t, err, db.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("storage failure", func(t *testing.T) {
		store, mock := test.NewMockDB(t)
		mock.ExpectExec(`UPDATE items`).WillReturnError(errors.New("db down"))

		err := store.CompleteItem(context.Background(), 1, "file-4", "dave", 10, now)
		var storageErr *db.StorageError
		assert.ErrorAs(t, err, &storageErr)
	})
}

func TestListCompletedItems(t *testing.T) {
	store, mock := test.NewMockDB(t)
	at := time.Date(2024, 1, 8, 9, 30, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "text", "audio_ref", "author", "completed_at"}).
		AddRow(1, "one", "file-1", "alice", at).
		AddRow(2, "two", "file-2", "bob", at)
	mock.ExpectQuery(`SELECT id, text, audio_ref, author, completed_at\s+FROM items\s+WHERE audio_ref IS NOT NULL\s+ORDER BY id`).WillReturnRows(rows)

	items, err := store.ListCompletedItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "file-2", items[1].AudioRef)
	assert.Equal(t, at, items[0].CompletedAt)
}

func TestCountCompleted(t *testing.T) {
	store, mock := test.NewMockDB(t)
	since := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM items WHERE author_id = \$1$`).WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM items WHERE author_id = \$1 AND completed_at >= \$2`).WithArgs(int64(7), since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM items WHERE audio_ref IS NOT NULL`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	total, err := store.CountCompleted(context.Background(), 7, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	week, err := store.CountCompleted(context.Background(), 7, &since)
	require.NoError(t, err)
	assert.Equal(t, 1, week)

	all, err := store.CountAllCompleted(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, all)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountUnclaimed(t *testing.T) {
	store, mock := test.NewMockDB(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM items WHERE audio_ref IS NULL`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	n, err := store.CountUnclaimed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
