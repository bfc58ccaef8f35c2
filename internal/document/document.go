// Package document holds the line-indexed view of a plain-text document.
//
// A Document keeps only the non-blank lines of its source, each tagged with its
// original physical line number. Paragraphs address a Document by index range
// into that filtered sequence; they never copy text, and the blank-line layout
// of the source can be rebuilt from the original line numbers.
package document

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/valpere/linetran/internal/chunker"
)

var (
	// ErrInvariant signals an internal consistency failure: bad paragraph
	// bounds or line numbers that do not strictly increase.
	ErrInvariant = errors.New("document invariant violated")

	// ErrEmptyDocument is returned when a paragraph is requested from a
	// document that has no non-blank lines.
	ErrEmptyDocument = errors.New("document has no lines")
)

// Line is one non-blank, trimmed line of a Document.
type Line struct {
	doc  *Document
	num  int
	text string
}

// Document returns the document owning the line.
func (l Line) Document() *Document { return l.doc }

// Number returns the zero-based physical line number in the source text.
func (l Line) Number() int { return l.num }

// Text returns the trimmed line text. It is never empty and has no newline.
func (l Line) Text() string { return l.text }

func (l Line) String() string { return l.text }

// Document is an immutable sequence of non-blank lines.
type Document struct {
	name  string
	lines []Line
}

// FromText builds a Document from raw text. The text is split on newlines,
// every line is trimmed, and blank lines are dropped. The surviving lines keep
// their original line numbers and are otherwise byte-for-byte the source.
func FromText(name, text string) *Document {
	doc := &Document{name: name}
	for num, raw := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		doc.lines = append(doc.lines, Line{doc: doc, num: num, text: trimmed})
	}
	return doc
}

// ReadFile loads a Document from a file; the path becomes its name.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return FromText(path, string(data)), nil
}

// Name returns the name the document was created with, usually its path.
func (d *Document) Name() string { return d.name }

// Len returns the number of non-blank lines.
func (d *Document) Len() int { return len(d.lines) }

// Lines returns the non-blank lines in source order. The slice must not be
// modified.
func (d *Document) Lines() []Line { return d.lines }

// Paragraph returns the paragraph addressing line indices [start, end).
func (d *Document) Paragraph(start, end int) (Paragraph, error) {
	if start < 0 || start >= end || end > len(d.lines) {
		return Paragraph{}, fmt.Errorf("%w: paragraph %d-%d out of bounds for %d lines",
			ErrInvariant, start, end, len(d.lines))
	}
	return Paragraph{doc: d, start: start, end: end}, nil
}

// AsParagraph returns a paragraph spanning every line of the document.
func (d *Document) AsParagraph() (Paragraph, error) {
	if len(d.lines) == 0 {
		return Paragraph{}, fmt.Errorf("%w: %s", ErrEmptyDocument, d.name)
	}
	return Paragraph{doc: d, start: 0, end: len(d.lines)}, nil
}

// Paragraph is a view of the line indices [Start, End) of a Document.
type Paragraph struct {
	doc   *Document
	start int
	end   int
}

// Document returns the document the paragraph addresses.
func (p Paragraph) Document() *Document { return p.doc }

// Start returns the first line index (inclusive).
func (p Paragraph) Start() int { return p.start }

// End returns the last line index (exclusive).
func (p Paragraph) End() int { return p.end }

// NumLines returns End - Start.
func (p Paragraph) NumLines() int { return p.end - p.start }

// Position formats the index range as "start-end".
func (p Paragraph) Position() string { return fmt.Sprintf("%d-%d", p.start, p.end) }

// Lines returns the addressed lines.
func (p Paragraph) Lines() []Line { return p.doc.lines[p.start:p.end] }

// FirstLine returns the first addressed line.
func (p Paragraph) FirstLine() Line { return p.doc.lines[p.start] }

// LastLine returns the last addressed line.
func (p Paragraph) LastLine() Line { return p.doc.lines[p.end-1] }

// MultilineText rebuilds the text of the paragraph, restoring the blank lines
// that separated its lines in the source.
func (p Paragraph) MultilineText() (string, error) {
	var sb strings.Builder
	lines := p.Lines()
	for i, line := range lines {
		if i > 0 {
			gap := line.num - lines[i-1].num
			if gap <= 0 {
				return "", fmt.Errorf("%w: line %d follows line %d", ErrInvariant, line.num, lines[i-1].num)
			}
			sb.WriteString(strings.Repeat("\n", gap))
		}
		sb.WriteString(line.text)
	}
	return sb.String(), nil
}

// Split partitions the paragraph into consecutive sub-paragraphs of at most
// maxSize lines. The last one may be shorter.
func (p Paragraph) Split(maxSize int) ([]Paragraph, error) {
	spans, err := chunker.Spans(p.start, p.end, maxSize)
	if err != nil {
		return nil, fmt.Errorf("failed to split paragraph %s: %w", p.Position(), err)
	}
	parts := make([]Paragraph, len(spans))
	for i, s := range spans {
		parts[i] = Paragraph{doc: p.doc, start: s.Start, end: s.End}
	}
	return parts, nil
}
