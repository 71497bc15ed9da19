// Package jsonfile persists allowlist state as a single JSON document on
// disk. Unlike the bolt backend it can be shared by multiple execution
// contexts: writers replace the file atomically and readers observe
// changes through the fsnotify-based Watcher.
package jsonfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/agch-dev/analytics-x-ray/internal/xray/domain"
	"github.com/agch-dev/analytics-x-ray/internal/xray/services/store"
)

type fileStore struct {
	path string
}

// New returns a Persistence backed by the JSON file at path. The parent
// directory must exist; the file itself is created on first Save.
func New(path string) (store.Persistence, error) {
	if path == "" {
		return nil, fmt.Errorf("state file path must not be empty")
	}
	return &fileStore{path: path}, nil
}

func (s *fileStore) Load() (domain.State, bool, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return domain.State{}, false, nil
	}
	if err != nil {
		return domain.State{}, false, err
	}
	var st domain.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return domain.State{}, false, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return st, true, nil
}

// Save writes the state through a temp file and an atomic rename, so a
// concurrent reader never observes a half-written document.
func (s *fileStore) Save(st domain.State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".xray-state-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

func (s *fileStore) Close() error { return nil }

var _ store.Persistence = (*fileStore)(nil)
