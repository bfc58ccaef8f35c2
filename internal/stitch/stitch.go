// Package stitch reassembles per-batch translations into one document-shaped
// text, restoring the blank lines that separated the batches in the source.
package stitch

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/valpere/linetran/internal"
)

var (
	ErrNoResults = errors.New("no translation results to join")
	ErrInvariant = errors.New("stitch invariant violated")
)

// GapMarker formats the line emitted in place of source lines that no batch
// translated.
const GapMarker = "CONCATENATION ERROR: No translation exists in line %d - %d"

// Join concatenates results, which must address one document in ascending
// order. Between two results it inserts as many blank lines as separated
// their source lines. An uncovered range of lines is reported inline with a
// GapMarker line, followed by the next translation, instead of failing.
func Join(results []internal.TranslationResult) (string, error) {
	return JoinWithLogger(results, nil)
}

func JoinWithLogger(results []internal.TranslationResult, logger *slog.Logger) (string, error) {
	if len(results) == 0 {
		return "", ErrNoResults
	}
	if logger == nil {
		logger = slog.Default()
	}

	doc := results[0].Paragraph.Document()
	out := []string{results[0].Output.Translation}

	for i := 1; i < len(results); i++ {
		prev, cur := results[i-1].Paragraph, results[i].Paragraph
		if cur.Document() != doc {
			return "", fmt.Errorf("%w: result %d belongs to another document", ErrInvariant, i)
		}

		prevLn := prev.LastLine().Number()
		curLn := cur.FirstLine().Number()

		if prev.End() < cur.Start() {
			logger.Warn("translation does not cover source lines",
				slog.String("document", doc.Name()),
				slog.Int("from", prevLn),
				slog.Int("to", curLn))
			out = append(out, fmt.Sprintf(GapMarker, prevLn, curLn), results[i].Output.Translation)
			continue
		}

		// Adjacent source lines have a gap of 1 and need no blank line.
		gap := curLn - prevLn
		if gap < 0 {
			return "", fmt.Errorf("%w: line %d follows line %d", ErrInvariant, curLn, prevLn)
		}
		for j := 1; j < gap; j++ {
			out = append(out, "")
		}
		out = append(out, results[i].Output.Translation)
	}
	return strings.Join(out, "\n"), nil
}
