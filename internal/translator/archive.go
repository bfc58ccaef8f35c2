package translator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Archive writes raw service responses to a directory, one indented JSON file
// per response, named by the time it was received. A nil Archive discards.
type Archive struct {
	dir string
}

// NewArchive creates dir if needed. An empty dir yields a nil Archive.
func NewArchive(dir string) (*Archive, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &Archive{dir: dir}, nil
}

// Dir returns the archive directory.
func (a *Archive) Dir() string {
	if a == nil {
		return ""
	}
	return a.dir
}

// Save writes raw as <dir>/<YYYYMMDD-HHMMSS>.json and returns the path. Names
// already taken get a -1, -2, ... suffix.
func (a *Archive) Save(at time.Time, raw []byte) (string, error) {
	if a == nil || len(raw) == 0 {
		return "", nil
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		buf.Reset()
		buf.Write(raw)
	}

	stamp := at.Format("20060102-150405")
	for n := 0; ; n++ {
		name := stamp + ".json"
		if n > 0 {
			name = fmt.Sprintf("%s-%d.json", stamp, n)
		}
		path := filepath.Join(a.dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create archive file: %w", err)
		}
		if _, err := f.Write(buf.Bytes()); err != nil {
			f.Close()
			return "", fmt.Errorf("failed to write archive file: %w", err)
		}
		return path, f.Close()
	}
}
