package events

import "time"

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregateId"`
	EventType   string    `json:"eventType"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

const (
	TypeBoardOpened        = "board.opened"
	TypeBoardSaved         = "board.saved"
	TypeBoardImported      = "board.imported"
	TypeSuggestionsApplied = "board.suggestions_applied"
)

// BoardOpened is raised when a board becomes the active document
type BoardOpened struct {
	BaseEvent
	BoardID string `json:"boardId"`
	Source  string `json:"source"`
}

// NewBoardOpened creates a BoardOpened event. Source is "remote", "cache"
// or "default".
func NewBoardOpened(boardID, source string, timestamp time.Time) BoardOpened {
	return BoardOpened{
		BaseEvent: BaseEvent{AggregateID: boardID, EventType: TypeBoardOpened, Timestamp: timestamp, Version: 1},
		BoardID:   boardID,
		Source:    source,
	}
}

// BoardSaved is raised after a successful remote save
type BoardSaved struct {
	BaseEvent
	BoardID   string `json:"boardId"`
	Name      string `json:"name"`
	NodeCount int    `json:"nodeCount"`
	EdgeCount int    `json:"edgeCount"`
}

// NewBoardSaved creates a BoardSaved event
func NewBoardSaved(boardID, name string, nodes, edges int, timestamp time.Time) BoardSaved {
	return BoardSaved{
		BaseEvent: BaseEvent{AggregateID: boardID, EventType: TypeBoardSaved, Timestamp: timestamp, Version: 1},
		BoardID:   boardID,
		Name:      name,
		NodeCount: nodes,
		EdgeCount: edges,
	}
}

// BoardImported is raised when an import replaces the active board
type BoardImported struct {
	BaseEvent
	BoardID string `json:"boardId"`
}

// NewBoardImported creates a BoardImported event
func NewBoardImported(boardID string, timestamp time.Time) BoardImported {
	return BoardImported{
		BaseEvent: BaseEvent{AggregateID: boardID, EventType: TypeBoardImported, Timestamp: timestamp, Version: 1},
		BoardID:   boardID,
	}
}

// SuggestionsApplied is raised when a suggestion tree is materialised
type SuggestionsApplied struct {
	BaseEvent
	BoardID    string `json:"boardId"`
	FocalID    string `json:"focalId"`
	NodesAdded int    `json:"nodesAdded"`
	Repaired   bool   `json:"repaired"`
}

// NewSuggestionsApplied creates a SuggestionsApplied event
func NewSuggestionsApplied(boardID, focalID string, added int, repaired bool, timestamp time.Time) SuggestionsApplied {
	return SuggestionsApplied{
		BaseEvent:  BaseEvent{AggregateID: boardID, EventType: TypeSuggestionsApplied, Timestamp: timestamp, Version: 1},
		BoardID:    boardID,
		FocalID:    focalID,
		NodesAdded: added,
		Repaired:   repaired,
	}
}
