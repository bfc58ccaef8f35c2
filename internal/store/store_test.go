package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/valpere/linetran/internal"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRun(id string) internal.TranslationRun {
	return internal.TranslationRun{
		ID:         id,
		Service:    "anthropic",
		Model:      "claude-sonnet-4-5-20250929",
		Mode:       "structured",
		SourceLang: "ja",
		TargetLang: "ko",
		BatchSize:  100,
		PromptHash: "prompt-1",
		Timestamp:  time.Now(),
	}
}

func TestStore_New(t *testing.T) {
	s := newTestStore(t)
	if s == nil {
		t.Fatal("expected non-nil store")
	}
}

func TestStore_New_InvalidPath(t *testing.T) {
	_, err := New("/nonexistent/path/test.db")
	if err == nil {
		t.Error("expected error for invalid path")
	}
}

func TestStore_RunLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveRun(ctx, testRun("run-1")); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if err := s.SaveDocument(ctx, DocumentRecord{ID: "doc-1", RunID: "run-1", Path: "a.txt", OutputPath: "out/a.txt", SourceHash: "h1", Lines: 4}); err != nil {
		t.Fatalf("SaveDocument failed: %v", err)
	}
	for _, b := range []BatchRecord{
		{DocumentID: "doc-1", Start: 2, End: 4, FirstLine: 3, LastLine: 5, Context: "c2", Translation: "T2", BatchSize: 2},
		{DocumentID: "doc-1", Start: 0, End: 2, FirstLine: 0, LastLine: 1, Context: "c0", Translation: "T0", BatchSize: 2},
	} {
		if err := s.SaveBatch(ctx, b); err != nil {
			t.Fatalf("SaveBatch failed: %v", err)
		}
	}
	if err := s.FinishDocument(ctx, "doc-1", StatusCompleted); err != nil {
		t.Fatalf("FinishDocument failed: %v", err)
	}
	if err := s.FinishRun(ctx, "run-1", StatusCompleted, ""); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	run, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Status != StatusCompleted {
		t.Errorf("expected completed status, got %q", run.Status)
	}
	if !run.FinishedAt.Valid {
		t.Error("expected finished_at to be set")
	}
	if run.Documents != 1 || run.Batches != 2 {
		t.Errorf("expected 1 document and 2 batches, got %d and %d", run.Documents, run.Batches)
	}
	if run.Model != "claude-sonnet-4-5-20250929" || run.BatchSize != 100 || run.PromptHash != "prompt-1" {
		t.Errorf("unexpected run %+v", run.TranslationRun)
	}

	batches, err := s.DocumentBatches(ctx, "doc-1")
	if err != nil {
		t.Fatalf("DocumentBatches failed: %v", err)
	}
	if len(batches) != 2 || batches[0].Start != 0 || batches[1].Start != 2 {
		t.Fatalf("expected batches ordered by position, got %+v", batches)
	}
	if batches[1].Context != "c2" || batches[1].LastLine != 5 {
		t.Errorf("unexpected batch %+v", batches[1])
	}

	docs, err := s.RunDocuments(ctx, "run-1")
	if err != nil {
		t.Fatalf("RunDocuments failed: %v", err)
	}
	if len(docs) != 1 || docs[0].Status != StatusCompleted || docs[0].Lines != 4 {
		t.Errorf("unexpected documents %+v", docs)
	}
}

func TestStore_GetRun_NotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetRun(context.Background(), "missing"); err == nil {
		t.Error("expected error for unknown run")
	}
}

func TestStore_FindCompletedDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.SaveRun(ctx, testRun("run-1"))
	s.SaveDocument(ctx, DocumentRecord{ID: "doc-done", RunID: "run-1", Path: "a.txt", OutputPath: "o", SourceHash: "h1", Lines: 1})
	s.FinishDocument(ctx, "doc-done", StatusCompleted)
	s.SaveDocument(ctx, DocumentRecord{ID: "doc-failed", RunID: "run-1", Path: "b.txt", OutputPath: "o", SourceHash: "h2", Lines: 1})
	s.FinishDocument(ctx, "doc-failed", StatusFailed)

	key := CacheKey{SourceHash: "h1", Model: "claude-sonnet-4-5-20250929", Mode: "structured", SourceLang: "ja", TargetLang: "ko", PromptHash: "prompt-1"}
	d, err := s.FindCompletedDocument(ctx, key)
	if err != nil {
		t.Fatalf("FindCompletedDocument failed: %v", err)
	}
	if d == nil || d.ID != "doc-done" {
		t.Fatalf("expected doc-done, got %+v", d)
	}

	misses := []CacheKey{
		{SourceHash: "h2", Model: key.Model, Mode: key.Mode, SourceLang: "ja", TargetLang: "ko", PromptHash: "prompt-1"},
		{SourceHash: "h1", Model: "other-model", Mode: key.Mode, SourceLang: "ja", TargetLang: "ko", PromptHash: "prompt-1"},
		{SourceHash: "h1", Model: key.Model, Mode: "delimited", SourceLang: "ja", TargetLang: "ko", PromptHash: "prompt-1"},
		{SourceHash: "h1", Model: key.Model, Mode: key.Mode, SourceLang: "ja", TargetLang: "en", PromptHash: "prompt-1"},
		{SourceHash: "h1", Model: key.Model, Mode: key.Mode, SourceLang: "ja", TargetLang: "ko", PromptHash: "prompt-2"},
		{SourceHash: "h1", Model: key.Model, Mode: key.Mode, SourceLang: "ja", TargetLang: "ko", PromptHash: "prompt-1", ThinkBudget: 2048},
	}
	for _, k := range misses {
		d, err := s.FindCompletedDocument(ctx, k)
		if err != nil {
			t.Fatalf("FindCompletedDocument failed: %v", err)
		}
		if d != nil {
			t.Errorf("expected miss for %+v, got %s", k, d.ID)
		}
	}
}

func TestStore_ListRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	older := testRun("run-old")
	older.Timestamp = time.Now().Add(-time.Hour)
	s.SaveRun(ctx, older)
	s.SaveRun(ctx, testRun("run-new"))

	runs, err := s.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != "run-new" {
		t.Errorf("expected most recent run first, got %s", runs[0].ID)
	}
	if runs[0].Status != StatusRunning {
		t.Errorf("expected running status, got %q", runs[0].Status)
	}

	limited, err := s.ListRuns(ctx, 1)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("expected 1 run, got %d", len(limited))
	}
}

func TestStore_StatsAndClear(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.SaveRun(ctx, testRun("run-1"))
	s.FinishRun(ctx, "run-1", StatusCompleted, "")
	s.SaveRun(ctx, testRun("run-2"))
	s.FinishRun(ctx, "run-2", StatusFailed, "boom")
	s.SaveDocument(ctx, DocumentRecord{ID: "doc-1", RunID: "run-1", Path: "a", OutputPath: "o", SourceHash: "h", Lines: 5})
	s.SaveDocument(ctx, DocumentRecord{ID: "doc-2", RunID: "run-2", Path: "a", OutputPath: "o", SourceHash: "h", Lines: 5, Status: StatusCached})
	s.SaveBatch(ctx, BatchRecord{DocumentID: "doc-1", Start: 0, End: 3, Context: "c", Translation: "t", BatchSize: 3})
	s.SaveBatch(ctx, BatchRecord{DocumentID: "doc-1", Start: 3, End: 5, Context: "c", Translation: "t", BatchSize: 3})
	s.AddGlossaryTerm(ctx, "ja", "ko", "銀河", "은하")

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	want := Stats{Runs: 2, CompletedRuns: 1, FailedRuns: 1, Documents: 2, CachedDocuments: 1, Batches: 2, LinesTranslated: 5}
	if *stats != want {
		t.Errorf("expected %+v, got %+v", want, *stats)
	}

	failed, _ := s.GetRun(ctx, "run-2")
	if failed.Error != "boom" {
		t.Errorf("expected error message to be kept, got %q", failed.Error)
	}

	n, err := s.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 runs removed, got %d", n)
	}
	stats, _ = s.Stats(ctx)
	if stats.Runs != 0 || stats.Documents != 0 || stats.Batches != 0 {
		t.Errorf("expected empty history, got %+v", *stats)
	}

	terms, _ := s.ListGlossaryTerms(ctx, "ja", "ko")
	if len(terms) != 1 {
		t.Errorf("expected glossary to survive Clear, got %d terms", len(terms))
	}
}

func TestStore_Glossary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.AddGlossaryTerm(ctx, "ja", "ko", "鉄道", "철도")
	s.AddGlossaryTerm(ctx, "ja", "ko", "銀河", "은하")
	s.AddGlossaryTerm(ctx, "ja", "en", "銀河", "galaxy")
	s.AddGlossaryTerm(ctx, "ja", "ko", "銀河", "은하수")

	terms, err := s.ListGlossaryTerms(ctx, "ja", "ko")
	if err != nil {
		t.Fatalf("ListGlossaryTerms failed: %v", err)
	}
	if len(terms) != 2 {
		t.Fatalf("expected 2 terms, got %d", len(terms))
	}
	for _, e := range terms {
		if e.SourceTerm == "銀河" && e.TargetTerm != "은하수" {
			t.Errorf("expected replaced term, got %q", e.TargetTerm)
		}
	}

	all, _ := s.ListGlossaryTerms(ctx, "", "")
	if len(all) != 3 {
		t.Errorf("expected 3 terms in total, got %d", len(all))
	}

	if err := s.DeleteGlossaryTerm(ctx, terms[0].ID); err != nil {
		t.Fatalf("DeleteGlossaryTerm failed: %v", err)
	}
	terms, _ = s.ListGlossaryTerms(ctx, "ja", "ko")
	if len(terms) != 1 {
		t.Errorf("expected 1 term after delete, got %d", len(terms))
	}
}

func TestHashText(t *testing.T) {
	// "é" precomposed and decomposed hash the same after NFC.
	if HashText("café\n") != HashText("  café") {
		t.Error("expected NFC-equivalent texts to hash equally")
	}
	if HashText("a\r\nb") != HashText("a\nb") {
		t.Error("expected line endings to be ignored")
	}
	if HashText("a") == HashText("b") {
		t.Error("expected different texts to hash differently")
	}
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  Hello  ", "Hello"},
		{"café", "café"},
		{"\t\nHello\t\n", "Hello"},
		{"", ""},
	}

	for _, tt := range tests {
		result := normalizeText(tt.input)
		if result != tt.expected {
			t.Errorf("normalizeText(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}
