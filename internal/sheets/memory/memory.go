package memory

import (
	"context"
	"fmt"
	"sync"

	"kharcha/internal/sheets"
)

// Store is an in-process SnapshotMirror used when no spreadsheet is
// configured, and in tests.
type Store struct {
	mu     sync.Mutex
	last   sheets.Snapshot
	rows   [][]any
	writes int
	err    error
}

var _ sheets.SnapshotMirror = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// FailWith makes every subsequent Mirror call return err. nil restores normal
// behavior.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Mirror stores the rendered table and returns a synthetic range reference.
func (s *Store) Mirror(_ context.Context, snap sheets.Snapshot) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.last = snap
	s.rows = sheets.Table(snap)
	s.writes++
	return fmt.Sprintf("mem:A1:E%d", len(s.rows)), nil
}

// Last returns the most recently mirrored snapshot and its rows.
func (s *Store) Last() (sheets.Snapshot, [][]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.rows, s.writes > 0
}

func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
