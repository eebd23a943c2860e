package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/unicode/norm"

	"voicebot/internal/metrics"
)

// ErrMalformed is returned when the payload is not valid UTF-8 text.
var ErrMalformed = errors.New("malformed text")

var bom = []byte{0xEF, 0xBB, 0xBF}

// ItemCreator is the part of db.Store used by imports.
type ItemCreator interface {
	CreateItems(ctx context.Context, texts []string) (int, error)
}

// Lines splits data into NFC-normalized lines. If a line is not valid UTF-8 the
// lines before it are returned together with an ErrMalformed error naming the line.
func Lines(data []byte) ([]string, error) {
	data = bytes.TrimPrefix(data, bom)
	raw := bytes.Split(data, []byte("\n"))

	lines := make([]string, 0, len(raw))
	for i, line := range raw {
		line = bytes.TrimSuffix(line, []byte("\r"))
		if !utf8.Valid(line) {
			return lines, fmt.Errorf("%w: line %d is not valid UTF-8", ErrMalformed, i+1)
		}
		lines = append(lines, norm.NFC.String(string(line)))
	}
	return lines, nil
}

// Import inserts one item per non-blank line of data and returns how many were added.
// On malformed input the lines before the bad one are still inserted.
func Import(ctx context.Context, store ItemCreator, data []byte) (int, error) {
	lines, parseErr := Lines(data)

	count, err := store.CreateItems(ctx, lines)
	metrics.ItemsImported.Add(float64(count))
	if err != nil {
		return count, fmt.Errorf("import items: %w", err)
	}
	if parseErr != nil {
		log.Warn().Err(parseErr).Int("inserted", count).Msg("Import stopped at malformed line")
		return count, parseErr
	}

	log.Info().Int("inserted", count).Int("lines", len(lines)).Msg("Import finished")
	return count, nil
}

// CountNonBlank reports how many of lines an import would insert.
func CountNonBlank(lines []string) int {
	n := 0
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}
