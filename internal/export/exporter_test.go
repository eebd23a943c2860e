package export

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicebot/internal/i18n"
	"voicebot/internal/test"
)

func newExporter(t *testing.T, store *test.MemStore, msgr *test.MockMessenger) *Exporter {
	t.Helper()
	tr, err := i18n.New("en")
	require.NoError(t, err)
	e := NewExporter(store, msgr, tr)
	e.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) }
	return e
}

func TestDeliverSendsArchive(t *testing.T) {
	store := test.NewMemStore()
	store.AddCompleted("Hello", "voice-1", "alice", 7, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	msgr := test.NewMockMessenger()
	msgr.Files["voice-1"] = oggHeader

	res, err := newExporter(t, store, msgr).Deliver(context.Background(), 42, "en")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Exported)

	require.Len(t, msgr.Documents, 1)
	doc := msgr.Documents[0]
	assert.Equal(t, int64(42), doc.ChatID)
	assert.Equal(t, "voices_20240506_070809.zip", doc.Filename)
	assert.Equal(t, "Export: 1 recordings", doc.Caption)

	files := readZip(t, doc.Data)
	assert.Contains(t, files, "audio/1.oga")
	assert.Contains(t, files, ManifestName)
}

func TestDeliverEmpty(t *testing.T) {
	store := test.NewMemStore()
	msgr := test.NewMockMessenger()

	_, err := newExporter(t, store, msgr).Deliver(context.Background(), 42, "en")
	assert.ErrorIs(t, err, ErrEmpty)
	assert.Empty(t, msgr.Documents)
	require.Len(t, msgr.TextsTo(42), 1)
	assert.Equal(t, "Nothing has been recorded yet.", msgr.TextsTo(42)[0].Text)
}

func TestDeliverStorageFailure(t *testing.T) {
	store := test.NewMemStore()
	store.Err = errors.New("connection reset")
	msgr := test.NewMockMessenger()

	_, err := newExporter(t, store, msgr).Deliver(context.Background(), 42, "en")
	assert.Error(t, err)
	require.Len(t, msgr.TextsTo(42), 1)
	assert.Contains(t, msgr.TextsTo(42)[0].Text, "connection reset")
}

func TestDeliverSplitsLargeExport(t *testing.T) {
	store := test.NewMemStore()
	msgr := test.NewMockMessenger()
	for _, ref := range []string{"voice-1", "voice-2"} {
		store.AddCompleted("Hi", ref, "alice", 7, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
		msgr.Files[ref] = oggHeader
	}

	e := newExporter(t, store, msgr)
	e.maxPartBytes = archiveBaseSize() + 300
	res, err := e.Deliver(context.Background(), 42, "en")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Exported)

	require.Len(t, msgr.Documents, 2)
	assert.Equal(t, "voices_20240506_070809_part1of2.zip", msgr.Documents[0].Filename)
	assert.Equal(t, "voices_20240506_070809_part2of2.zip", msgr.Documents[1].Filename)
	assert.Equal(t, "Export part 2 of 2, 2 recordings in total", msgr.Documents[1].Caption)
	for _, doc := range msgr.Documents {
		assert.LessOrEqual(t, len(doc.Data), e.maxPartBytes)
		assert.Contains(t, readZip(t, doc.Data), ManifestName)
	}
}

func TestDeliverReportsRecordingTooLarge(t *testing.T) {
	store := test.NewMemStore()
	store.AddCompleted("Hi", "voice-1", "alice", 7, time.Now())
	msgr := test.NewMockMessenger()
	msgr.Files["voice-1"] = oggHeader

	e := newExporter(t, store, msgr)
	e.maxPartBytes = archiveBaseSize() + 10
	_, err := e.Deliver(context.Background(), 42, "en")
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Empty(t, msgr.Documents)
	require.Len(t, msgr.TextsTo(42), 1)
	assert.Contains(t, msgr.TextsTo(42)[0].Text, "Could not build the archive: recording too large")
}
