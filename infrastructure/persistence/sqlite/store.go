// Package sqlite is a self-hosted board store backed by a single SQLite
// file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"mindboard/application/ports"
	"mindboard/domain/board"
	pkgerrors "mindboard/pkg/errors"
	"mindboard/pkg/utils"
)

// Store implements ports.BoardStore using SQLite
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ ports.BoardStore = (*Store)(nil)

// New opens (or creates) the database at path. ":memory:" gives a private
// in-memory database.
func New(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serialises writes
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	PRAGMA journal_mode = WAL;
	PRAGMA busy_timeout = 5000;

	CREATE TABLE IF NOT EXISTS boards (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		node_count INTEGER NOT NULL DEFAULT 0,
		edge_count INTEGER NOT NULL DEFAULT 0,
		nodes JSON NOT NULL,
		edges JSON NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_boards_updated ON boards(updated_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get loads a board
func (s *Store) Get(ctx context.Context, boardID string) (board.Record, error) {
	var (
		rec          board.Record
		nodes, edges []byte
		updatedAt    string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, nodes, edges, updated_at
		FROM boards WHERE id = ?
	`, boardID).Scan(&rec.ID, &rec.Name, &nodes, &edges, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return board.Record{}, pkgerrors.NewNotFoundError("board").WithDetail("boardId", boardID)
	}
	if err != nil {
		return board.Record{}, fmt.Errorf("failed to query board: %w", err)
	}

	if err := json.Unmarshal(nodes, &rec.Nodes); err != nil {
		return board.Record{}, fmt.Errorf("failed to unmarshal nodes: %w", err)
	}
	if err := json.Unmarshal(edges, &rec.Edges); err != nil {
		return board.Record{}, fmt.Errorf("failed to unmarshal edges: %w", err)
	}
	if rec.UpdatedAt, err = utils.ParseTimestamp(updatedAt); err != nil {
		return board.Record{}, fmt.Errorf("invalid board timestamp: %w", err)
	}
	return rec, nil
}

// Put creates or replaces a board
func (s *Store) Put(ctx context.Context, rec board.Record) error {
	if rec.ID == "" {
		return pkgerrors.NewValidationError("board id is required")
	}
	nodes, err := json.Marshal(nonNilNodes(rec.Nodes))
	if err != nil {
		return fmt.Errorf("failed to marshal nodes: %w", err)
	}
	edges, err := json.Marshal(nonNilEdges(rec.Edges))
	if err != nil {
		return fmt.Errorf("failed to marshal edges: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO boards (id, name, node_count, edge_count, nodes, edges, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			node_count = excluded.node_count,
			edge_count = excluded.edge_count,
			nodes = excluded.nodes,
			edges = excluded.edges,
			updated_at = excluded.updated_at
	`, rec.ID, rec.Name, len(rec.Nodes), len(rec.Edges), nodes, edges, utils.FormatTimestamp(rec.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save board: %w", err)
	}

	s.logger.Debug("Saved board to SQLite",
		zap.String("boardId", rec.ID),
		zap.Int("nodeCount", len(rec.Nodes)),
	)
	return nil
}

// List returns board summaries, most recently updated first
func (s *Store) List(ctx context.Context) ([]board.Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, node_count, updated_at
		FROM boards
		ORDER BY updated_at DESC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query boards: %w", err)
	}
	defer rows.Close()

	summaries := []board.Summary{}
	for rows.Next() {
		var (
			sum       board.Summary
			updatedAt string
		)
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.NodeCount, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan board: %w", err)
		}
		if sum.UpdatedAt, err = utils.ParseTimestamp(updatedAt); err != nil {
			return nil, fmt.Errorf("invalid board timestamp: %w", err)
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating boards: %w", err)
	}
	return summaries, nil
}

// Delete removes a board; deleting a missing board is a NotFound error
func (s *Store) Delete(ctx context.Context, boardID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM boards WHERE id = ?`, boardID)
	if err != nil {
		return fmt.Errorf("failed to delete board: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete board: %w", err)
	}
	if n == 0 {
		return pkgerrors.NewNotFoundError("board").WithDetail("boardId", boardID)
	}
	return nil
}

func nonNilNodes(n []board.Node) []board.Node {
	if n == nil {
		return []board.Node{}
	}
	return n
}

func nonNilEdges(e []board.Edge) []board.Edge {
	if e == nil {
		return []board.Edge{}
	}
	return e
}
