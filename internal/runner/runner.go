// Package runner translates a sequence of documents in one run. Results of
// every document become prior context for the documents after it, so the
// order of jobs matters.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	"github.com/valpere/linetran/internal"
	"github.com/valpere/linetran/internal/chunker"
	"github.com/valpere/linetran/internal/document"
	"github.com/valpere/linetran/internal/orchestrator"
	"github.com/valpere/linetran/internal/output"
	"github.com/valpere/linetran/internal/prompt"
	"github.com/valpere/linetran/internal/stitch"
	"github.com/valpere/linetran/internal/store"
	"github.com/valpere/linetran/internal/translator"
)

var ErrNoJobs = errors.New("no documents to translate")

// Job maps one input file to the file its translation is written to.
type Job struct {
	Input  string
	Output string
}

type Settings struct {
	Model string
	Mode  output.Mode
	// SystemPromptPath overrides the built-in system prompt for Mode.
	SystemPromptPath string
	Source           language.Tag
	Target           language.Tag
	BatchSize        int
	ThinkBudget      int
	MaxTokens        int
	Temperature      float64
	// NoCache disables reuse of documents completed by earlier runs.
	NoCache bool
}

type Option func(*Runner)

// WithStore records runs in st and enables the glossary and resume cache.
func WithStore(st *store.Store) Option {
	return func(r *Runner) { r.store = st }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

func WithWaiterConfig(cfg translator.WaiterConfig) Option {
	return func(r *Runner) { r.waiterCfg = cfg }
}

type Runner struct {
	svcName    string
	settings   Settings
	translator *orchestrator.Translator
	promptHash string
	store      *store.Store
	logger     *slog.Logger
	waiterCfg  translator.WaiterConfig

	// docID is the document whose batches are being recorded.
	docID string
}

// DocumentReport describes the outcome of one job.
type DocumentReport struct {
	Job
	Lines   int
	Batches int
	Cached  bool
}

type Report struct {
	RunID     string
	Documents []DocumentReport
	// FinalBatchSize is the batch size after every shrink of the run.
	FinalBatchSize int
}

func New(ctx context.Context, svc translator.BatchService, s Settings, opts ...Option) (*Runner, error) {
	r := &Runner{svcName: svc.Name(), settings: s}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.waiterCfg.Logger == nil {
		r.waiterCfg.Logger = r.logger
	}

	system, err := prompt.LoadSystem(s.SystemPromptPath, s.Mode)
	if err != nil {
		return nil, err
	}
	if r.store != nil {
		entries, err := r.store.ListGlossaryTerms(ctx, s.Source.String(), s.Target.String())
		if err != nil {
			return nil, fmt.Errorf("failed to load glossary: %w", err)
		}
		terms := make([]prompt.Term, len(entries))
		for i, e := range entries {
			terms[i] = prompt.Term{Source: e.SourceTerm, Target: e.TargetTerm}
		}
		if len(terms) > 0 {
			r.logger.Info("glossary loaded", slog.Int("terms", len(terms)))
		}
		system = prompt.WithGlossary(system, terms)
	}

	r.promptHash = store.HashText(system)

	r.translator, err = orchestrator.New(svc, orchestrator.Config{
		Model:        s.Model,
		ThinkBudget:  s.ThinkBudget,
		MaxTokens:    s.MaxTokens,
		Temperature:  s.Temperature,
		SystemPrompt: system,
		Directive:    prompt.Directive(s.Source, s.Target),
		Mode:         s.Mode,
	},
		orchestrator.WithLogger(r.logger),
		orchestrator.WithRecorder(r),
		orchestrator.WithWaiterConfig(r.waiterCfg),
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Run translates jobs in order and writes each stitched translation to its
// output file. The first failing document aborts the run.
func (r *Runner) Run(ctx context.Context, jobs []Job) (*Report, error) {
	if len(jobs) == 0 {
		return nil, ErrNoJobs
	}
	for _, j := range jobs {
		if filepath.Clean(j.Input) == filepath.Clean(j.Output) {
			return nil, fmt.Errorf("input file and output file cannot be the same: %s", j.Input)
		}
	}

	size, err := orchestrator.NewBatchSize(r.settings.BatchSize)
	if err != nil {
		return nil, err
	}

	report := &Report{RunID: uuid.NewString()}
	log := r.logger.With(slog.String("run_id", report.RunID))

	if r.store != nil {
		err := r.store.SaveRun(ctx, internal.TranslationRun{
			ID:          report.RunID,
			Service:     r.svcName,
			Model:       r.settings.Model,
			Mode:        string(r.settings.Mode),
			SourceLang:  r.settings.Source.String(),
			TargetLang:  r.settings.Target.String(),
			BatchSize:   r.settings.BatchSize,
			ThinkBudget: r.settings.ThinkBudget,
			PromptHash:  r.promptHash,
			Timestamp:   time.Now(),
		})
		if err != nil {
			log.Warn("failed to record run", slog.String("error", err.Error()))
		}
	}

	var history []internal.TranslationResult
	for _, job := range jobs {
		res, doc, err := r.runDocument(ctx, log, report.RunID, job, history, size)
		if err != nil {
			r.finishRun(ctx, log, report.RunID, store.StatusFailed, err)
			return report, fmt.Errorf("%s: %w", job.Input, err)
		}
		report.Documents = append(report.Documents, *doc)
		history = append(history, res...)
	}

	report.FinalBatchSize = size.Lines()
	r.finishRun(ctx, log, report.RunID, store.StatusCompleted, nil)
	return report, nil
}

func (r *Runner) runDocument(ctx context.Context, log *slog.Logger, runID string, job Job, history []internal.TranslationResult, size *orchestrator.BatchSize) ([]internal.TranslationResult, *DocumentReport, error) {
	raw, err := os.ReadFile(job.Input)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read input file: %w", err)
	}
	doc := document.FromText(job.Input, string(raw))
	para, err := doc.AsParagraph()
	if err != nil {
		return nil, nil, err
	}
	log = log.With(slog.String("document", job.Input))
	log.Info("document loaded",
		slog.Int("lines", doc.Len()),
		slog.Int("planned_batches", chunker.Count(doc.Len(), size.Lines())))

	hash := store.HashText(string(raw))
	rep := &DocumentReport{Job: job, Lines: doc.Len()}

	results, cached := r.lookupCache(ctx, log, doc, hash)
	docID := uuid.NewString()
	initial, status := store.StatusRunning, store.StatusCompleted
	if cached {
		rep.Cached = true
		initial, status = store.StatusCached, store.StatusCached
		log.Info("using cached translation", slog.Int("batches", len(results)))
	}
	r.saveDocument(ctx, log, store.DocumentRecord{
		ID:         docID,
		RunID:      runID,
		Path:       job.Input,
		OutputPath: job.Output,
		SourceHash: hash,
		Lines:      doc.Len(),
		Status:     initial,
	})

	if !cached {
		r.docID = docID
		results, err = r.translator.Translate(ctx, para, history, size)
		r.docID = ""
		if err != nil {
			r.finishDocument(ctx, log, docID, store.StatusFailed)
			return nil, nil, err
		}
	}
	rep.Batches = len(results)

	text, err := stitch.JoinWithLogger(results, log)
	if err != nil {
		r.finishDocument(ctx, log, docID, store.StatusFailed)
		return nil, nil, err
	}
	if err := writeOutput(job.Output, text); err != nil {
		r.finishDocument(ctx, log, docID, store.StatusFailed)
		return nil, nil, err
	}
	r.finishDocument(ctx, log, docID, status)
	return results, rep, nil
}

// lookupCache rebuilds the results of an identical document completed by an
// earlier run with the same model, prompt and think budget. Stored batches
// must cover the document without gaps, otherwise it is translated again.
func (r *Runner) lookupCache(ctx context.Context, log *slog.Logger, doc *document.Document, hash string) ([]internal.TranslationResult, bool) {
	if r.store == nil || r.settings.NoCache {
		return nil, false
	}
	prev, err := r.store.FindCompletedDocument(ctx, store.CacheKey{
		SourceHash:  hash,
		Model:       r.settings.Model,
		Mode:        string(r.settings.Mode),
		SourceLang:  r.settings.Source.String(),
		TargetLang:  r.settings.Target.String(),
		ThinkBudget: r.settings.ThinkBudget,
		PromptHash:  r.promptHash,
	})
	if err != nil {
		log.Warn("cache lookup failed", slog.String("error", err.Error()))
		return nil, false
	}
	if prev == nil {
		return nil, false
	}
	batches, err := r.store.DocumentBatches(ctx, prev.ID)
	if err != nil {
		log.Warn("failed to load cached batches", slog.String("cached_document", prev.ID), slog.String("error", err.Error()))
		return nil, false
	}
	if !contiguous(batches, doc.Len()) {
		log.Warn("cached batches do not cover document, translating again", slog.String("cached_document", prev.ID))
		return nil, false
	}

	results := make([]internal.TranslationResult, 0, len(batches))
	for _, b := range batches {
		p, err := doc.Paragraph(b.Start, b.End)
		if err != nil || p.FirstLine().Number() != b.FirstLine || p.LastLine().Number() != b.LastLine {
			log.Warn("cached batches do not match document, translating again", slog.String("cached_document", prev.ID))
			return nil, false
		}
		results = append(results, internal.TranslationResult{
			Output:    output.Output{Context: b.Context, Translation: b.Translation},
			Paragraph: p,
		})
	}
	return results, true
}

// contiguous reports whether batches, ordered by start, cover [0, n) exactly.
func contiguous(batches []store.BatchRecord, n int) bool {
	if len(batches) == 0 {
		return false
	}
	next := 0
	for _, b := range batches {
		if b.Start != next {
			return false
		}
		next = b.End
	}
	return next == n
}

// RecordBatch stores a completed batch of the document being translated.
func (r *Runner) RecordBatch(ctx context.Context, res internal.TranslationResult, batchSize int) error {
	if r.store == nil || r.docID == "" {
		return nil
	}
	p := res.Paragraph
	return r.store.SaveBatch(ctx, store.BatchRecord{
		DocumentID:  r.docID,
		Start:       p.Start(),
		End:         p.End(),
		FirstLine:   p.FirstLine().Number(),
		LastLine:    p.LastLine().Number(),
		Context:     res.Output.Context,
		Translation: res.Output.Translation,
		BatchSize:   batchSize,
	})
}

func (r *Runner) saveDocument(ctx context.Context, log *slog.Logger, d store.DocumentRecord) {
	if r.store == nil {
		return
	}
	if err := r.store.SaveDocument(ctx, d); err != nil {
		log.Warn("failed to record document", slog.String("error", err.Error()))
	}
}

func (r *Runner) finishDocument(ctx context.Context, log *slog.Logger, docID, status string) {
	if r.store == nil {
		return
	}
	if err := r.store.FinishDocument(ctx, docID, status); err != nil {
		log.Warn("failed to update document", slog.String("error", err.Error()))
	}
}

func (r *Runner) finishRun(ctx context.Context, log *slog.Logger, runID, status string, runErr error) {
	if r.store == nil {
		return
	}
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	if err := r.store.FinishRun(ctx, runID, status, msg); err != nil {
		log.Warn("failed to update run", slog.String("error", err.Error()))
	}
}

func writeOutput(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}
