// Package dataset holds the single active table of a session and enforces
// its size bounds.
package dataset

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/KaramelBytes/sheetchat/internal/frame"
	"github.com/KaramelBytes/sheetchat/internal/ingest"
)

const (
	MaxRows = 500
	MaxCols = 20
)

// ErrSizeExceeded matches every *SizeExceededError.
var ErrSizeExceeded = errors.New("dataset exceeds size limit")

// SizeExceededError reports which bound a rejected table broke.
type SizeExceededError struct {
	Bound  string // "rows" or "columns"
	Limit  int
	Actual int
}

func (e *SizeExceededError) Error() string {
	return fmt.Sprintf("The file has too many %s (%d). Maximum allowed is %d.", e.Bound, e.Actual, e.Limit)
}

func (e *SizeExceededError) Is(target error) bool { return target == ErrSizeExceeded }

// Store holds at most one table. Reads and replacements are safe for
// concurrent use; callers receive the shared frame and must treat it as
// read-only.
type Store struct {
	mu   sync.RWMutex
	df   *frame.Frame
	name string
}

// NewStore returns an empty store.
func NewStore() *Store { return &Store{} }

// Check validates a table against the size bounds without storing it.
// Rows are checked before columns.
func Check(df *frame.Frame) error {
	if df == nil {
		return errors.New("dataset: nil table")
	}
	if n := df.Len(); n > MaxRows {
		return &SizeExceededError{Bound: "rows", Limit: MaxRows, Actual: n}
	}
	if n := df.Width(); n > MaxCols {
		return &SizeExceededError{Bound: "columns", Limit: MaxCols, Actual: n}
	}
	return nil
}

// Load replaces the current table. On error the previous table is kept.
func (s *Store) Load(name string, df *frame.Frame) error {
	if err := Check(df); err != nil {
		return err
	}
	s.mu.Lock()
	s.df = df
	s.name = name
	s.mu.Unlock()
	return nil
}

// LoadFile parses a CSV or spreadsheet file and loads it.
func (s *Store) LoadFile(path string, opts ingest.Options) error {
	df, err := ingest.ReadFile(path, opts)
	if err != nil {
		return err
	}
	return s.Load(filepath.Base(path), df)
}

// Current returns the active table, or nil when none is loaded.
func (s *Store) Current() *frame.Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.df
}

// Name returns the source name of the active table.
func (s *Store) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// Loaded reports whether a table is active.
func (s *Store) Loaded() bool { return s.Current() != nil }

// Reset clears the active table.
func (s *Store) Reset() {
	s.mu.Lock()
	s.df = nil
	s.name = ""
	s.mu.Unlock()
}
