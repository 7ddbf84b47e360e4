package ports

import (
	"context"
	"time"

	"mindboard/domain/board"
	"mindboard/domain/events"
)

// BoardStore is the remote persistence collaborator
// This is a port in hexagonal architecture - the domain doesn't know about the implementation
type BoardStore interface {
	// Get retrieves a board; a missing board is a NotFound error
	Get(ctx context.Context, boardID string) (board.Record, error)

	// Put creates or replaces a board
	Put(ctx context.Context, rec board.Record) error

	// List returns summaries of all stored boards, most recently updated first
	List(ctx context.Context) ([]board.Summary, error)

	// Delete removes a board
	Delete(ctx context.Context, boardID string) error
}

// BoardCache is the local mirror consulted before the remote store
type BoardCache interface {
	Get(ctx context.Context, boardID string) (board.Record, bool, error)
	Put(ctx context.Context, rec board.Record) error
	Delete(ctx context.Context, boardID string) error
}

// WriterLock grants one writer at a time per board
type WriterLock interface {
	// Acquire takes or renews the lease for owner; it returns a Conflict
	// error when another owner holds it
	Acquire(ctx context.Context, boardID, owner string, ttl time.Duration) error
	Release(ctx context.Context, boardID, owner string) error
}

// EventPublisher publishes domain events to external consumers
type EventPublisher interface {
	Publish(ctx context.Context, events ...events.DomainEvent) error
}

// Message is one turn of conversation context sent to the AI collaborator
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SuggestRequest carries everything the AI collaborator needs
type SuggestRequest struct {
	Model    string    `json:"model"`
	Message  string    `json:"message"`
	Context  []Message `json:"context"`
	APIKey   string    `json:"-"`
	Provider string    `json:"provider"`
}

// Suggester is the AI collaborator; it returns the raw, unvalidated payload
type Suggester interface {
	Suggest(ctx context.Context, req SuggestRequest) ([]byte, error)
}
