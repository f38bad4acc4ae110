// Package jsonfile persists the clipboard history as a single JSON document.
package jsonfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	"github.com/ericfisherdev/clipview/internal/domain/model"
	"github.com/ericfisherdev/clipview/internal/domain/port/driven"
)

const dirPerm = 0o700

var _ driven.HistoryStore = (*Store)(nil)

// Store reads and writes the history file at a fixed path.
type Store struct {
	path string
}

// NewStore creates a Store for the file at path. The file and its parent
// directory are created on first Save.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the history file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads every record from the history file. A missing file yields an
// empty history.
func (s *Store) Load(_ context.Context) ([]model.Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history file: %w", err)
	}

	snap, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return snap.Records, nil
}

// Save replaces the history file with snap. Readers never observe a
// partially written file.
func (s *Store) Save(_ context.Context, snap model.Snapshot) error {
	data, err := Encode(snap)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), dirPerm); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}

	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write history file: %w", err)
	}
	return nil
}
