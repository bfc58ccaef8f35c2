// Package orchestrator drives the translation of one paragraph: it cuts the
// paragraph into batches no longer than the current batch size, sends each
// batch with the context of everything translated before it, and adapts the
// batch size when the service stops early or refuses.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/valpere/linetran/internal"
	"github.com/valpere/linetran/internal/document"
	"github.com/valpere/linetran/internal/output"
	"github.com/valpere/linetran/internal/postprocess"
	"github.com/valpere/linetran/internal/translator"
)

const (
	DefaultMaxTokens   = 64000
	DefaultTemperature = 1.0

	// MinThinkBudget is the smallest reasoning budget the service accepts.
	MinThinkBudget = 1024

	contextHeading  = "**context**\n"
	fragmentHeading = "**fragment**\n"
)

type Config struct {
	Model string
	// ThinkBudget is 0 to disable extended thinking, otherwise at least
	// MinThinkBudget.
	ThinkBudget  int
	MaxTokens    int
	Temperature  float64
	SystemPrompt string
	// Directive is the task statement sent as the first user block.
	Directive string
	Mode      output.Mode
}

// Recorder receives every completed batch together with the batch size in
// force when it was produced.
type Recorder interface {
	RecordBatch(ctx context.Context, res internal.TranslationResult, batchSize int) error
}

type Option func(*Translator)

func WithLogger(l *slog.Logger) Option {
	return func(t *Translator) { t.logger = l }
}

func WithRecorder(r Recorder) Option {
	return func(t *Translator) { t.recorder = r }
}

func WithWaiterConfig(cfg translator.WaiterConfig) Option {
	return func(t *Translator) { t.waiterCfg = cfg }
}

// Translator turns paragraphs into translation results through a batch
// service. It holds no per-run state; the batch size is owned by the caller.
type Translator struct {
	svc       translator.BatchService
	waiter    *translator.Waiter
	waiterCfg translator.WaiterConfig
	parser    output.Parser
	config    Config
	logger    *slog.Logger
	recorder  Recorder
}

func New(svc translator.BatchService, cfg Config, opts ...Option) (*Translator, error) {
	if cfg.ThinkBudget != 0 && cfg.ThinkBudget < MinThinkBudget {
		return nil, fmt.Errorf("%w: think budget must be 0 or at least %d, got %d", ErrConfig, MinThinkBudget, cfg.ThinkBudget)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model is required", ErrConfig)
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.ThinkBudget >= cfg.MaxTokens {
		return nil, fmt.Errorf("%w: think budget %d must be below max tokens %d", ErrConfig, cfg.ThinkBudget, cfg.MaxTokens)
	}
	parser, err := output.NewParser(cfg.Mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	t := &Translator{
		svc:    svc,
		parser: parser,
		config: cfg,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	if t.waiterCfg.Logger == nil {
		t.waiterCfg.Logger = t.logger
	}
	t.waiter = translator.NewWaiter(svc, t.waiterCfg)
	return t, nil
}

// Thinking reports whether extended thinking is requested.
func (t *Translator) Thinking() bool {
	return t.config.ThinkBudget >= MinThinkBudget
}

// Mode returns the output encoding the translator parses.
func (t *Translator) Mode() output.Mode {
	return t.parser.Mode()
}

type taskKind int

const (
	taskTranslate taskKind = iota
	// taskRestore puts back the batch size saved before a refusal retry.
	taskRestore
)

type task struct {
	kind  taskKind
	para  document.Paragraph
	saved int
}

// Translate translates para and returns one result per batch, in document
// order. prior holds results of earlier paragraphs whose context fields prime
// the first batch; every later batch additionally sees the results produced
// before it by this call.
//
// size is updated in place: a batch stopped by the token limit halves it for
// the rest of the run, a refused batch halves it only until that paragraph has
// been retried.
func (t *Translator) Translate(ctx context.Context, para document.Paragraph, prior []internal.TranslationResult, size *BatchSize) ([]internal.TranslationResult, error) {
	var (
		results []internal.TranslationResult
		stack   = []task{{kind: taskTranslate, para: para}}
	)
	history := func() []internal.TranslationResult {
		all := make([]internal.TranslationResult, 0, len(prior)+len(results))
		all = append(all, prior...)
		return append(all, results...)
	}

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if cur.kind == taskRestore {
			t.logger.Info("restoring batch size after refusal",
				slog.Int("from", size.Lines()), slog.Int("to", cur.saved))
			size.restore(cur.saved)
			continue
		}

		p := cur.para
		t.logger.Info("batch requested",
			slog.String("document", p.Document().Name()),
			slog.Int("start", p.Start()),
			slog.Int("end", p.End()),
			slog.Int("total", p.Document().Len()),
			slog.Int("think_budget", t.config.ThinkBudget))

		if size.Lines() < p.NumLines() {
			parts, err := p.Split(size.Lines())
			if err != nil {
				return nil, err
			}
			for i := len(parts) - 1; i >= 0; i-- {
				stack = append(stack, task{kind: taskTranslate, para: parts[i]})
			}
			continue
		}

	retry:
		for {
			msg, err := t.send(ctx, p, history())
			if err != nil {
				return nil, err
			}

			switch msg.StopReason {
			case translator.StopEndTurn:
				res, err := t.decode(msg, p)
				if err != nil {
					return nil, err
				}
				results = append(results, res)
				if t.recorder != nil {
					if err := t.recorder.RecordBatch(ctx, res, size.Lines()); err != nil {
						t.logger.Warn("failed to record batch", slog.String("position", p.Position()), slog.String("error", err.Error()))
					}
				}
				break retry

			case translator.StopMaxTokens:
				from := size.Lines()
				if _, err := size.Shrink(); err != nil {
					return nil, fmt.Errorf("batch %s hit the token limit: %w", p.Position(), err)
				}
				t.logger.Warn("shrinking batch size",
					slog.Int("from", from), slog.Int("to", size.Lines()), slog.String("reason", string(msg.StopReason)))
				if size.Lines() < p.NumLines() {
					stack = append(stack, task{kind: taskTranslate, para: p})
					break retry
				}

			case translator.StopRefusal:
				saved := size.Lines()
				if _, err := size.Shrink(); err != nil {
					return nil, fmt.Errorf("batch %s was refused: %w", p.Position(), err)
				}
				t.logger.Warn("refusal fallback, temporarily shrinking batch size",
					slog.Int("from", saved), slog.Int("to", size.Lines()))
				stack = append(stack,
					task{kind: taskRestore, saved: saved},
					task{kind: taskTranslate, para: p},
				)
				break retry

			default:
				return nil, fmt.Errorf("%w: model terminated with unexpected reason %q", translator.ErrServiceFailure, msg.StopReason)
			}
		}
	}
	return results, nil
}

// send submits one batch and waits for its message.
func (t *Translator) send(ctx context.Context, p document.Paragraph, prev []internal.TranslationResult) (*translator.Message, error) {
	fragment, err := p.MultilineText()
	if err != nil {
		return nil, err
	}
	contexts := make([]string, len(prev))
	for i, r := range prev {
		contexts[i] = r.Output.Context
	}

	req := translator.Request{
		CustomID:    fmt.Sprintf("p%d-%d", p.Start(), p.End()),
		Model:       t.config.Model,
		System:      t.config.SystemPrompt,
		MaxTokens:   t.config.MaxTokens,
		Temperature: t.config.Temperature,
		User: []string{
			t.config.Directive,
			contextHeading + strings.Join(contexts, "\n"),
			fragmentHeading + fragment,
		},
	}
	if t.Thinking() {
		req.ThinkingBudget = t.config.ThinkBudget
	} else {
		req.Prefill = t.parser.Prefill()
	}

	res, err := t.waiter.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("batch %s: %w", p.Position(), err)
	}
	if res.Message == nil {
		return nil, fmt.Errorf("%w: batch %s returned no message", translator.ErrServiceFailure, p.Position())
	}
	if res.Message.StopReason == "" {
		return nil, fmt.Errorf("%w: batch %s returned no stop reason", translator.ErrServiceFailure, p.Position())
	}
	return res.Message, nil
}

// decode extracts the text of a finished batch and parses it.
func (t *Translator) decode(msg *translator.Message, p document.Paragraph) (internal.TranslationResult, error) {
	text, err := translator.ExtractText(msg, t.Thinking())
	if err != nil {
		return internal.TranslationResult{}, fmt.Errorf("batch %s: %w", p.Position(), err)
	}
	text = strings.TrimSpace(text)

	if t.Thinking() {
		var fence string
		text, fence = postprocess.Unfence(text)
		if fence != postprocess.FenceNone {
			t.logger.Debug("response wrapped in code fence", slog.String("fence", fence))
		}
	} else {
		text = t.parser.Prefill() + text
	}

	out, err := t.parser.Parse(text)
	if err != nil {
		return internal.TranslationResult{}, fmt.Errorf("batch %s: %w", p.Position(), err)
	}
	return internal.TranslationResult{Output: out, Paragraph: p}, nil
}
