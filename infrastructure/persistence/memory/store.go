// Package memory provides a process-local board store for development and
// tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"mindboard/application/ports"
	"mindboard/domain/board"
	pkgerrors "mindboard/pkg/errors"
)

// Store keeps boards in a map. It is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	boards map[string]board.Record
}

var _ ports.BoardStore = (*Store)(nil)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{boards: make(map[string]board.Record)}
}

// Get returns a copy of the stored board.
func (s *Store) Get(ctx context.Context, boardID string) (board.Record, error) {
	if err := ctx.Err(); err != nil {
		return board.Record{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.boards[boardID]
	if !ok {
		return board.Record{}, pkgerrors.NewNotFoundError("board").WithDetail("boardId", boardID)
	}
	return clone(rec), nil
}

// Put creates or replaces a board.
func (s *Store) Put(ctx context.Context, rec board.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.ID == "" {
		return pkgerrors.NewValidationError("board id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boards[rec.ID] = clone(rec)
	return nil
}

// List returns summaries, most recently updated first.
func (s *Store) List(ctx context.Context) ([]board.Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]board.Summary, 0, len(s.boards))
	for _, rec := range s.boards {
		out = append(out, rec.Summarize())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// Delete removes a board. Deleting a missing board is a NotFound error.
func (s *Store) Delete(ctx context.Context, boardID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.boards[boardID]; !ok {
		return pkgerrors.NewNotFoundError("board").WithDetail("boardId", boardID)
	}
	delete(s.boards, boardID)
	return nil
}

func clone(rec board.Record) board.Record {
	rec.Nodes = append(make([]board.Node, 0, len(rec.Nodes)), rec.Nodes...)
	rec.Edges = append(make([]board.Edge, 0, len(rec.Edges)), rec.Edges...)
	return rec
}
