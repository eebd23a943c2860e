package export

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"

	"voicebot/internal/models"
)

const (
	ManifestName = "manifest.csv"
	audioDir     = "audio"
	fallbackExt  = ".ogg"

	// DefaultMaxPartBytes keeps each archive under the 50 MB bot upload limit.
	DefaultMaxPartBytes = 49 << 20

	zipEntryOverhead = 128
	zipEndOverhead   = 64
)

// ErrTooLarge means one recording alone does not fit in an archive part.
var ErrTooLarge = errors.New("recording too large")

// ManifestHeader is the first row of the manifest.
var ManifestHeader = []string{"text", "audio_filename", "author", "completed_at"}

// Lister is the part of db.Store used by exports.
type Lister interface {
	ListCompletedItems(ctx context.Context) ([]models.CompletedItem, error)
}

// Fetcher downloads a recording by its transport reference.
type Fetcher interface {
	FetchFile(ctx context.Context, fileRef string) ([]byte, error)
}

// Result summarizes an export.
type Result struct {
	Exported int
	Skipped  int
}

// entry is one fetched recording waiting to be archived.
type entry struct {
	itemID   int64
	name     string
	data     []byte
	row      []string
	modified time.Time
	size     int
}

// Build writes a ZIP with one audio file per completed item and a CSV manifest.
// Items whose audio cannot be fetched are logged and left out of both.
func Build(ctx context.Context, lister Lister, fetcher Fetcher, w io.Writer) (Result, error) {
	entries, res, err := collect(ctx, lister, fetcher)
	if err != nil {
		return res, err
	}
	return res, writeArchive(w, entries)
}

// BuildParts is Build split into archives of at most maxBytes each.
// Every part carries its own manifest listing the recordings inside it.
// A single recording that cannot fit in a part fails with ErrTooLarge.
func BuildParts(ctx context.Context, lister Lister, fetcher Fetcher, maxBytes int) ([][]byte, Result, error) {
	entries, res, err := collect(ctx, lister, fetcher)
	if err != nil {
		return nil, res, err
	}
	groups, err := split(entries, maxBytes)
	if err != nil {
		return nil, res, err
	}

	parts := make([][]byte, 0, len(groups))
	for _, group := range groups {
		var buf bytes.Buffer
		if err := writeArchive(&buf, group); err != nil {
			return nil, res, err
		}
		parts = append(parts, buf.Bytes())
	}
	return parts, res, nil
}

func collect(ctx context.Context, lister Lister, fetcher Fetcher) ([]entry, Result, error) {
	items, err := lister.ListCompletedItems(ctx)
	if err != nil {
		return nil, Result{}, fmt.Errorf("list completed items: %w", err)
	}

	var entries []entry
	var res Result
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, res, err
		}
		data, err := fetcher.FetchFile(ctx, item.AudioRef)
		if err != nil {
			log.Warn().Err(err).Int64("item_id", item.ID).Msg("Skipping item, audio not available")
			res.Skipped++
			continue
		}

		name := AudioFilename(item.ID, data)
		row := []string{item.Text, name, item.Author, item.CompletedAt.Format(time.RFC3339)}
		entries = append(entries, entry{
			itemID:   item.ID,
			name:     name,
			data:     data,
			row:      row,
			modified: item.CompletedAt,
			size:     entrySize(path.Join(audioDir, name), len(data)) + csvSize(row),
		})
		res.Exported++
	}
	return entries, res, nil
}

// split packs entries in order into groups whose archives stay within maxBytes.
func split(entries []entry, maxBytes int) ([][]entry, error) {
	base := archiveBaseSize()
	var groups [][]entry
	var group []entry
	used := base

	for _, e := range entries {
		if base+e.size > maxBytes {
			return nil, fmt.Errorf("%w: recording of item %d takes %s, parts are limited to %s",
				ErrTooLarge, e.itemID, megabytes(base+e.size), megabytes(maxBytes))
		}
		if len(group) > 0 && used+e.size > maxBytes {
			groups = append(groups, group)
			group, used = nil, base
		}
		group = append(group, e)
		used += e.size
	}
	return append(groups, group), nil
}

func writeArchive(w io.Writer, entries []entry) error {
	zw := zip.NewWriter(w)
	rows := make([][]string, 0, len(entries))

	for _, e := range entries {
		f, err := zw.CreateHeader(&zip.FileHeader{
			Name:     path.Join(audioDir, e.name),
			Method:   zip.Store,
			Modified: e.modified,
		})
		if err != nil {
			return fmt.Errorf("create archive entry for item %d: %w", e.itemID, err)
		}
		if _, err := f.Write(e.data); err != nil {
			return fmt.Errorf("write audio for item %d: %w", e.itemID, err)
		}
		rows = append(rows, e.row)
	}

	mf, err := zw.Create(ManifestName)
	if err != nil {
		return fmt.Errorf("create manifest: %w", err)
	}
	cw := csv.NewWriter(mf)
	if err := cw.Write(ManifestHeader); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	return nil
}

// entrySize is an upper bound on what one stored file adds to an archive:
// local header, data descriptor and central directory record.
func entrySize(name string, dataLen int) int {
	return zipEntryOverhead + 2*len(name) + dataLen
}

// archiveBaseSize is what an archive with an empty manifest takes.
func archiveBaseSize() int {
	return zipEndOverhead + entrySize(ManifestName, csvSize(ManifestHeader))
}

func csvSize(row []string) int {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	_ = cw.Write(row)
	cw.Flush()
	return buf.Len()
}

func megabytes(n int) string {
	return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
}

// AudioFilename names a recording after its item id, with an extension sniffed from the bytes.
func AudioFilename(itemID int64, data []byte) string {
	ext := mimetype.Detect(data).Extension()
	if ext == "" || ext == ".bin" || ext == ".txt" {
		ext = fallbackExt
	}
	return fmt.Sprintf("%d%s", itemID, ext)
}

// Filename is the name of the archive sent to the requester.
func Filename(now time.Time) string {
	return fmt.Sprintf("voices_%s.zip", now.Format("20060102_150405"))
}

// PartFilename names part (1-based) of parts archives built at now.
func PartFilename(now time.Time, part, parts int) string {
	return fmt.Sprintf("voices_%s_part%dof%d.zip", now.Format("20060102_150405"), part, parts)
}
