package translator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestArchive_Save(t *testing.T) {
	dir := t.TempDir()
	a, err := NewArchive(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Dir() != dir {
		t.Errorf("expected dir %q, got %q", dir, a.Dir())
	}
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	first, err := a.Save(at, []byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(first) != "20250102-030405.json" {
		t.Errorf("unexpected name %q", filepath.Base(first))
	}
	data, err := os.ReadFile(first)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(data), "\n  \"a\": 1") {
		t.Errorf("expected indented JSON, got %q", data)
	}

	second, err := a.Save(at, []byte(`{"a":2}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(second) != "20250102-030405-1.json" {
		t.Errorf("expected collision suffix, got %q", filepath.Base(second))
	}
}

func TestArchive_Nil(t *testing.T) {
	a, err := NewArchive("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != nil {
		t.Fatal("expected nil archive for empty dir")
	}
	if a.Dir() != "" {
		t.Errorf("expected empty dir, got %q", a.Dir())
	}
	path, err := a.Save(time.Now(), []byte(`{}`))
	if err != nil || path != "" {
		t.Errorf("expected no-op, got %q, %v", path, err)
	}
}

func TestArchive_SaveNotJSON(t *testing.T) {
	a, _ := NewArchive(t.TempDir())
	path, err := a.Save(time.Now(), []byte("plain text"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "plain text" {
		t.Errorf("expected raw bytes, got %q", data)
	}
}
