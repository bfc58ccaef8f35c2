package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"

	"github.com/valpere/linetran/internal"
)

// Run and document statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	// StatusCached marks a document whose results were taken from an earlier run.
	StatusCached = "cached"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		service TEXT NOT NULL,
		model TEXT NOT NULL,
		mode TEXT NOT NULL,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		batch_size INTEGER NOT NULL,
		think_budget INTEGER NOT NULL DEFAULT 0,
		prompt_hash TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'running',
		error TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		finished_at TIMESTAMP
	);

	-- documents are the input files of a run, keyed by a hash of their normalized text
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		path TEXT NOT NULL,
		output_path TEXT NOT NULL,
		source_hash TEXT NOT NULL,
		line_count INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'running',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		finished_at TIMESTAMP,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	-- batch_results holds one row per completed batch
	CREATE TABLE IF NOT EXISTS batch_results (
		document_id TEXT NOT NULL,
		start_idx INTEGER NOT NULL,
		end_idx INTEGER NOT NULL,
		first_line INTEGER NOT NULL,
		last_line INTEGER NOT NULL,
		context TEXT NOT NULL,
		translation TEXT NOT NULL,
		batch_size INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (document_id, start_idx),
		FOREIGN KEY (document_id) REFERENCES documents(id)
	);

	-- glossary stores user-defined terminology for consistent translation of specific terms
	CREATE TABLE IF NOT EXISTS glossary (
		id TEXT PRIMARY KEY,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		source_term TEXT NOT NULL,
		target_term TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(source_lang, target_lang, source_term)
	);

	CREATE INDEX IF NOT EXISTS idx_documents_run ON documents(run_id);
	CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(source_hash);
	CREATE INDEX IF NOT EXISTS idx_glossary_lookup ON glossary(source_lang, target_lang);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun records the start of a run.
func (s *Store) SaveRun(ctx context.Context, run internal.TranslationRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, service, model, mode, source_lang, target_lang, batch_size, think_budget, prompt_hash, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Service, run.Model, run.Mode, run.SourceLang, run.TargetLang, run.BatchSize, run.ThinkBudget, run.PromptHash, StatusRunning, run.Timestamp)
	return err
}

// FinishRun sets the final status of a run. errMsg is kept for failed runs.
func (s *Store) FinishRun(ctx context.Context, runID, status, errMsg string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		status, errMsg, time.Now(), runID)
	return err
}

// DocumentRecord is a row of the documents table.
type DocumentRecord struct {
	ID         string
	RunID      string
	Path       string
	OutputPath string
	SourceHash string
	Lines      int
	Status     string
	CreatedAt  time.Time
}

func (s *Store) SaveDocument(ctx context.Context, d DocumentRecord) error {
	status := d.Status
	if status == "" {
		status = StatusRunning
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, run_id, path, output_path, source_hash, line_count, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.RunID, d.Path, d.OutputPath, d.SourceHash, d.Lines, status, time.Now())
	return err
}

func (s *Store) FinishDocument(ctx context.Context, docID, status string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, finished_at = ? WHERE id = ?`,
		status, time.Now(), docID)
	return err
}

// BatchRecord is one completed batch of a document.
type BatchRecord struct {
	DocumentID  string
	Start       int
	End         int
	FirstLine   int
	LastLine    int
	Context     string
	Translation string
	BatchSize   int
}

// SaveBatch stores a batch, replacing an earlier one at the same position.
func (s *Store) SaveBatch(ctx context.Context, b BatchRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO batch_results (document_id, start_idx, end_idx, first_line, last_line, context, translation, batch_size, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.DocumentID, b.Start, b.End, b.FirstLine, b.LastLine, b.Context, b.Translation, b.BatchSize, time.Now())
	return err
}

// DocumentBatches returns the batches of a document ordered by position.
func (s *Store) DocumentBatches(ctx context.Context, docID string) ([]BatchRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT document_id, start_idx, end_idx, first_line, last_line, context, translation, batch_size FROM batch_results WHERE document_id = ? ORDER BY start_idx`,
		docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []BatchRecord
	for rows.Next() {
		var b BatchRecord
		if err := rows.Scan(&b.DocumentID, &b.Start, &b.End, &b.FirstLine, &b.LastLine, &b.Context, &b.Translation, &b.BatchSize); err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// CacheKey identifies translations that can be reused for a document.
type CacheKey struct {
	SourceHash  string
	Model       string
	Mode        string
	SourceLang  string
	TargetLang  string
	ThinkBudget int
	PromptHash  string
}

// FindCompletedDocument returns the most recently completed document matching
// key, or nil when there is none.
func (s *Store) FindCompletedDocument(ctx context.Context, key CacheKey) (*DocumentRecord, error) {
	var d DocumentRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT d.id, d.run_id, d.path, d.output_path, d.source_hash, d.line_count, d.status, d.created_at
		FROM documents d JOIN runs r ON r.id = d.run_id
		WHERE d.source_hash = ? AND d.status = ? AND r.model = ? AND r.mode = ? AND r.source_lang = ? AND r.target_lang = ?
			AND r.think_budget = ? AND r.prompt_hash = ?
		ORDER BY d.finished_at DESC
		LIMIT 1`,
		key.SourceHash, StatusCompleted, key.Model, key.Mode, key.SourceLang, key.TargetLang, key.ThinkBudget, key.PromptHash).
		Scan(&d.ID, &d.RunID, &d.Path, &d.OutputPath, &d.SourceHash, &d.Lines, &d.Status, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// RunEntry is a run with its outcome and size.
type RunEntry struct {
	internal.TranslationRun
	Status     string
	Error      string
	FinishedAt sql.NullTime
	Documents  int
	Batches    int
}

const runColumns = `
	SELECT r.id, r.service, r.model, r.mode, r.source_lang, r.target_lang, r.batch_size, r.think_budget, r.prompt_hash,
		r.status, r.error, r.created_at, r.finished_at,
		(SELECT COUNT(*) FROM documents d WHERE d.run_id = r.id),
		(SELECT COUNT(*) FROM batch_results b JOIN documents d ON d.id = b.document_id WHERE d.run_id = r.id)
	FROM runs r`

func scanRun(sc interface{ Scan(...any) error }) (RunEntry, error) {
	var e RunEntry
	err := sc.Scan(&e.ID, &e.Service, &e.Model, &e.Mode, &e.SourceLang, &e.TargetLang, &e.BatchSize, &e.ThinkBudget, &e.PromptHash,
		&e.Status, &e.Error, &e.Timestamp, &e.FinishedAt, &e.Documents, &e.Batches)
	return e, err
}

// ListRuns returns runs, most recent first. limit ≤ 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunEntry, error) {
	query := runColumns + ` ORDER BY r.created_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunEntry
	for rows.Next() {
		e, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, e)
	}
	return runs, rows.Err()
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(ctx context.Context, runID string) (*RunEntry, error) {
	e, err := scanRun(s.db.QueryRowContext(ctx, runColumns+` WHERE r.id = ?`, runID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// RunDocuments returns the documents of a run in the order they were processed.
func (s *Store) RunDocuments(ctx context.Context, runID string) ([]DocumentRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, path, output_path, source_hash, line_count, status, created_at FROM documents WHERE run_id = ? ORDER BY created_at, rowid`,
		runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []DocumentRecord
	for rows.Next() {
		var d DocumentRecord
		if err := rows.Scan(&d.ID, &d.RunID, &d.Path, &d.OutputPath, &d.SourceHash, &d.Lines, &d.Status, &d.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Stats summarises the stored history.
type Stats struct {
	Runs            int
	CompletedRuns   int
	FailedRuns      int
	Documents       int
	CachedDocuments int
	Batches         int
	LinesTranslated int
}

func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0)
		FROM runs`).Scan(
		&stats.Runs,
		&stats.CompletedRuns,
		&stats.FailedRuns,
	)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'cached' THEN 1 ELSE 0 END), 0)
		FROM documents`).Scan(&stats.Documents, &stats.CachedDocuments)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(end_idx - start_idx), 0) FROM batch_results`).
		Scan(&stats.Batches, &stats.LinesTranslated)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// Clear removes all runs, documents and batches. The glossary is kept.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM batch_results`); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs`)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

// HashText returns the hex SHA-256 of the normalized text, used to recognise
// a document across runs.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(normalizeText(text)))
	return hex.EncodeToString(sum[:])
}

// normalizeText trims whitespace and applies Unicode NFC normalization
// for consistent cache key comparison.
func normalizeText(text string) string {
	return norm.NFC.String(strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n")))
}

// GlossaryEntry represents a row in the glossary table.
type GlossaryEntry struct {
	ID         string
	SourceLang string
	TargetLang string
	SourceTerm string
	TargetTerm string
	CreatedAt  time.Time
}

// AddGlossaryTerm inserts or replaces a glossary entry.
func (s *Store) AddGlossaryTerm(ctx context.Context, sourceLang, targetLang, sourceTerm, targetTerm string) error {
	id := fmt.Sprintf("gl_%d", time.Now().UnixNano())
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO glossary (id, source_lang, target_lang, source_term, target_term)
		 VALUES (?, ?, ?, ?, ?)`,
		id, sourceLang, targetLang, normalizeText(sourceTerm), strings.TrimSpace(targetTerm))
	return err
}

// ListGlossaryTerms returns all glossary entries, optionally filtered by language
// pair (pass empty strings to return everything).
func (s *Store) ListGlossaryTerms(ctx context.Context, sourceLang, targetLang string) ([]GlossaryEntry, error) {
	query := `SELECT id, source_lang, target_lang, source_term, target_term, created_at FROM glossary`
	var args []any

	switch {
	case sourceLang != "" && targetLang != "":
		query += ` WHERE source_lang = ? AND target_lang = ?`
		args = append(args, sourceLang, targetLang)
	case sourceLang != "":
		query += ` WHERE source_lang = ?`
		args = append(args, sourceLang)
	case targetLang != "":
		query += ` WHERE target_lang = ?`
		args = append(args, targetLang)
	}
	query += ` ORDER BY source_lang, target_lang, source_term`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []GlossaryEntry
	for rows.Next() {
		var e GlossaryEntry
		if err := rows.Scan(&e.ID, &e.SourceLang, &e.TargetLang, &e.SourceTerm, &e.TargetTerm, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteGlossaryTerm removes a glossary entry by ID.
func (s *Store) DeleteGlossaryTerm(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM glossary WHERE id = ?`, id)
	return err
}
