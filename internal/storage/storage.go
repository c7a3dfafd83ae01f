// Package storage persists monitor state as JSON documents.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// jsonFile reads and atomically rewrites a single JSON document.
type jsonFile struct {
	mu   sync.Mutex
	fs   afero.Fs
	path string
}

func newJSONFile(fs afero.Fs, path string) (*jsonFile, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure data directory: %w", err)
	}
	return &jsonFile{fs: fs, path: path}, nil
}

// load decodes the document into v. It reports false when the file is
// missing or empty.
func (f *jsonFile) load(v interface{}) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := afero.ReadFile(f.fs, f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", filepath.Base(f.path), err)
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parse %s: %w", filepath.Base(f.path), err)
	}
	return true, nil
}

func (f *jsonFile) persist(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	bytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(f.path), err)
	}

	tmpPath := fmt.Sprintf("%s.%d.tmp", f.path, time.Now().UnixNano())
	if err := afero.WriteFile(f.fs, tmpPath, bytes, 0o644); err != nil {
		return fmt.Errorf("write temp %s: %w", filepath.Base(f.path), err)
	}
	if err := f.fs.Rename(tmpPath, f.path); err != nil {
		_ = f.fs.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w", filepath.Base(f.path), err)
	}
	return nil
}
