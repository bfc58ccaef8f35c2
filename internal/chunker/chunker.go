// Package chunker partitions index ranges into bounded-size spans. It is the
// splitting primitive behind document paragraphs: a paragraph is a range of
// line indices, and breaking it into batches is a matter of cutting that range
// into consecutive pieces no longer than the current batch size.
package chunker

import (
	"errors"
	"fmt"
)

// ErrInvalidSize is returned when a span size or range is unusable.
var ErrInvalidSize = errors.New("invalid chunk size")

// Span is a half-open index range [Start, End).
type Span struct {
	Start int
	End   int
}

// Len returns the number of indices covered by the span.
func (s Span) Len() int {
	return s.End - s.Start
}

func (s Span) String() string {
	return fmt.Sprintf("%d-%d", s.Start, s.End)
}

// Spans cuts [start, end) into consecutive spans of at most size indices,
// greedily from left to right. The spans cover the range exactly with no gap
// or overlap; only the last one may be shorter than size.
//
// The range must be non-empty and size must be at least 1.
func Spans(start, end, size int) ([]Span, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: size %d", ErrInvalidSize, size)
	}
	if start < 0 || start >= end {
		return nil, fmt.Errorf("%w: empty range %d-%d", ErrInvalidSize, start, end)
	}

	spans := make([]Span, 0, (end-start+size-1)/size)
	for cur := start; cur < end; cur += size {
		next := cur + size
		if next > end {
			next = end
		}
		spans = append(spans, Span{Start: cur, End: next})
	}
	return spans, nil
}

// Count returns how many spans Spans would produce for a range of n indices.
func Count(n, size int) int {
	if n <= 0 || size < 1 {
		return 0
	}
	return (n + size - 1) / size
}
