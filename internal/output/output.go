// Package output decodes the body of a batch response into a context summary
// and a translation. Two encodings exist and a translator uses exactly one,
// chosen when it is built:
//
//   - structured: the body is the JSON object {"context": ..., "translation": ...};
//   - delimited: the body is markdown with a "## Context" section followed by a
//     "## Translation" section.
package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed is returned when a response body does not match its encoding.
var ErrMalformed = errors.New("malformed model output")

// Output is the decoded body of one batch: a semantic summary used to prime
// later batches and the rendered translation.
type Output struct {
	Context     string `json:"context"`
	Translation string `json:"translation"`
}

// Mode selects the response encoding.
type Mode string

const (
	ModeStructured Mode = "structured"
	ModeDelimited  Mode = "delimited"
)

// ParseMode converts a configuration string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeStructured, "json", "":
		return ModeStructured, nil
	case ModeDelimited, "markdown", "md":
		return ModeDelimited, nil
	default:
		return "", fmt.Errorf("unknown output mode %q", s)
	}
}

// Parser decodes one encoding.
type Parser interface {
	Mode() Mode
	// Prefill is the fragment the assistant turn is seeded with when the
	// service allows it. Parse expects that fragment to be put back in front
	// of the generated text.
	Prefill() string
	Parse(body string) (Output, error)
}

// NewParser returns the parser for mode.
func NewParser(mode Mode) (Parser, error) {
	switch mode {
	case ModeStructured:
		return StructuredParser{}, nil
	case ModeDelimited:
		return DelimitedParser{}, nil
	default:
		return nil, fmt.Errorf("unknown output mode %q", mode)
	}
}

// StructuredParser decodes the JSON encoding.
type StructuredParser struct{}

// StructuredPrefill biases the model towards emitting the JSON object.
const StructuredPrefill = "{\n  \"context\": \""

func (StructuredParser) Mode() Mode      { return ModeStructured }
func (StructuredParser) Prefill() string { return StructuredPrefill }

// Parse requires a single JSON object carrying both string fields.
func (StructuredParser) Parse(body string) (Output, error) {
	var raw struct {
		Context     *string `json:"context"`
		Translation *string `json:"translation"`
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	if err := dec.Decode(&raw); err != nil {
		return Output{}, fmt.Errorf("%w: invalid JSON: %v", ErrMalformed, err)
	}
	if dec.More() {
		return Output{}, fmt.Errorf("%w: trailing data after JSON object", ErrMalformed)
	}
	if raw.Context == nil {
		return Output{}, fmt.Errorf("%w: missing \"context\" field", ErrMalformed)
	}
	if raw.Translation == nil {
		return Output{}, fmt.Errorf("%w: missing \"translation\" field", ErrMalformed)
	}
	return Output{Context: *raw.Context, Translation: *raw.Translation}, nil
}

// DelimitedParser decodes the markdown encoding.
type DelimitedParser struct{}

const (
	// ContextHeader opens the body; it doubles as the prefill.
	ContextHeader = "## Context"
	// TranslationHeader starts the translation section.
	TranslationHeader = "## Translation\n"
)

func (DelimitedParser) Mode() Mode      { return ModeDelimited }
func (DelimitedParser) Prefill() string { return ContextHeader }

// Parse splits the body on the two headers, matched case-insensitively. The
// context is the trimmed text between them and the translation is the trimmed
// text after the second one.
func (DelimitedParser) Parse(body string) (Output, error) {
	body = strings.TrimSpace(body)
	lower := strings.ToLower(body)

	if !strings.HasPrefix(lower, strings.ToLower(ContextHeader)) {
		return Output{}, fmt.Errorf("%w: body does not start with %q", ErrMalformed, ContextHeader)
	}

	ctxStart := len(ContextHeader)
	idx := strings.Index(lower[ctxStart:], strings.ToLower(TranslationHeader))
	if idx < 0 {
		return Output{}, fmt.Errorf("%w: %q header not found", ErrMalformed, strings.TrimSpace(TranslationHeader))
	}
	ctxEnd := ctxStart + idx

	return Output{
		Context:     strings.TrimSpace(body[ctxStart:ctxEnd]),
		Translation: strings.TrimSpace(body[ctxEnd+len(TranslationHeader):]),
	}, nil
}
