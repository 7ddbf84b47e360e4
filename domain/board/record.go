package board

import (
	"time"

	"github.com/google/uuid"
)

// Record is the persisted form of a board.
type Record struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Nodes     []Node    `json:"nodes" yaml:"nodes"`
	Edges     []Edge    `json:"edges" yaml:"edges"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// Snapshot returns the graph portion of the record.
func (r Record) Snapshot() Snapshot {
	return Snapshot{Nodes: r.Nodes, Edges: r.Edges}
}

// Summary is a listing entry for a stored board.
type Summary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	NodeCount int       `json:"nodeCount"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Summarize builds the listing entry for the record.
func (r Record) Summarize() Summary {
	return Summary{ID: r.ID, Name: r.Name, NodeCount: len(r.Nodes), UpdatedAt: r.UpdatedAt}
}

// Envelope is the import/export file format.
type Envelope struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Nodes     []Node    `json:"nodes" yaml:"nodes"`
	Edges     []Edge    `json:"edges" yaml:"edges"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// ExportEnvelope captures the document as an export envelope.
func (d *Document) ExportEnvelope(at time.Time) Envelope {
	st := d.State()
	return Envelope{
		ID:        st.ID,
		Name:      st.Name,
		Nodes:     st.Snapshot.Nodes,
		Edges:     st.Snapshot.Edges,
		Timestamp: at,
	}
}

// Record converts an imported envelope into a board record. Envelopes
// without an id receive a fresh one.
func (e Envelope) Record() Record {
	id := e.ID
	if id == "" {
		id = NewBoardID()
	}
	return Record{ID: id, Name: e.Name, Nodes: e.Nodes, Edges: e.Edges, UpdatedAt: e.Timestamp}
}

// NewBoardID returns a random board identifier.
func NewBoardID() string {
	return uuid.New().String()
}
