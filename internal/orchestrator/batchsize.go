package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrCannotShrink is returned when a batch already holds a single line and
	// the service still asks for a smaller one.
	ErrCannotShrink = errors.New("cannot shrink batch size below 1")

	// ErrConfig reports an invalid translator configuration.
	ErrConfig = errors.New("invalid translator configuration")
)

// NextBatchSize returns the ceiling of half of old. old must be above 1.
func NextBatchSize(old int) (int, error) {
	if old <= 1 {
		return 0, fmt.Errorf("%w: batch size is %d", ErrCannotShrink, old)
	}
	return old/2 + old%2, nil
}

// BatchSize is the number of lines sent per batch. It is shared by every
// Translate call of a run and shrinks when the service reports that a batch
// was too long.
type BatchSize struct {
	n int
}

func NewBatchSize(n int) (*BatchSize, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: batch size must be at least 1, got %d", ErrConfig, n)
	}
	return &BatchSize{n: n}, nil
}

// Lines returns the current size.
func (b *BatchSize) Lines() int { return b.n }

// Shrink halves the size, rounding up, and returns the new value.
func (b *BatchSize) Shrink() (int, error) {
	next, err := NextBatchSize(b.n)
	if err != nil {
		return b.n, err
	}
	b.n = next
	return next, nil
}

func (b *BatchSize) restore(n int) { b.n = n }
