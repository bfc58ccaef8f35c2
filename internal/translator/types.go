// Package translator is the boundary to the external batch translation
// service: a job is submitted, polled until it ends, and its per-request
// results are fetched. Adapters translate that contract onto concrete APIs.
package translator

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrServiceFailure covers every terminal outcome that cannot be retried:
	// errored, expired or canceled requests, unexpected stop reasons and jobs
	// that return no result.
	ErrServiceFailure = errors.New("translation service failure")

	// ErrMalformedResponse is returned when a succeeded message does not carry
	// the expected content blocks.
	ErrMalformedResponse = errors.New("malformed service response")

	// ErrDeadline is returned when a job is still running once the optional
	// poll deadline has passed.
	ErrDeadline = errors.New("batch poll deadline exceeded")
)

type ServiceConfig struct {
	APIKey  string        `mapstructure:"api_key" json:"api_key"`
	BaseURL string        `mapstructure:"base_url" json:"base_url"`
	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`
}

// Request is one translation request inside a batch job.
type Request struct {
	CustomID string `json:"custom_id"`
	Model    string `json:"model"`
	System   string `json:"system"`
	// User holds the text blocks of the single user turn, in order.
	User []string `json:"user"`
	// Prefill seeds the assistant turn. It must be empty when thinking is on.
	Prefill        string  `json:"prefill,omitempty"`
	MaxTokens      int     `json:"max_tokens"`
	Temperature    float64 `json:"temperature"`
	ThinkingBudget int     `json:"thinking_budget,omitempty"`
}

// JobStatus is the processing status of a submitted job.
type JobStatus string

const (
	JobInProgress JobStatus = "in_progress"
	JobCanceling  JobStatus = "canceling"
	JobEnded      JobStatus = "ended"
)

// Outcome tags the result of one request of an ended job.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeErrored   Outcome = "errored"
	OutcomeExpired   Outcome = "expired"
	OutcomeCanceled  Outcome = "canceled"
)

// StopReason tells why generation of a succeeded message stopped.
type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopMaxTokens StopReason = "max_tokens"
	StopRefusal   StopReason = "refusal"
)

// BlockType is the type of a content block.
type BlockType string

const (
	BlockText             BlockType = "text"
	BlockThinking         BlockType = "thinking"
	BlockRedactedThinking BlockType = "redacted_thinking"
)

// Block is one content block of a message. Text carries the text or, for
// thinking blocks, the reasoning trace.
type Block struct {
	Type BlockType `json:"type"`
	Text string    `json:"text"`
}

// Message is the payload of a succeeded request.
type Message struct {
	StopReason StopReason `json:"stop_reason"`
	Content    []Block    `json:"content"`
}

// Result is the outcome of one request of an ended job.
type Result struct {
	CustomID string   `json:"custom_id"`
	Outcome  Outcome  `json:"outcome"`
	Message  *Message `json:"message,omitempty"`
	Error    string   `json:"error,omitempty"`
	// Raw is the service's own encoding of the result, kept for audit dumps.
	Raw json.RawMessage `json:"-"`
}

// BatchService is an asynchronous batch translation API.
type BatchService interface {
	Name() string
	Submit(ctx context.Context, req Request) (jobID string, err error)
	Status(ctx context.Context, jobID string) (JobStatus, error)
	Results(ctx context.Context, jobID string) ([]Result, error)
}
