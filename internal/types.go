package internal

import (
	"time"

	"github.com/valpere/linetran/internal/document"
	"github.com/valpere/linetran/internal/output"
)

// TranslationResult pairs the model output of one completed batch with the
// paragraph it was produced from. It is created once and never modified.
type TranslationResult struct {
	Output    output.Output     `json:"output"`
	Paragraph document.Paragraph `json:"-"`
}

// TranslationRun describes one multi-document translation run. PromptHash
// identifies the system prompt, glossary included, sent with every batch.
type TranslationRun struct {
	ID          string    `json:"id"`
	Service     string    `json:"service"`
	Model       string    `json:"model"`
	Mode        string    `json:"mode"`
	SourceLang  string    `json:"source_lang"`
	TargetLang  string    `json:"target_lang"`
	BatchSize   int       `json:"batch_size"`
	ThinkBudget int       `json:"think_budget"`
	PromptHash  string    `json:"prompt_hash"`
	Timestamp   time.Time `json:"timestamp"`
}
