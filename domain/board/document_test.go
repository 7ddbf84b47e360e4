package board

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindboard/pkg/clock"
	pkgerrors "mindboard/pkg/errors"
)

func newTestDocument(t *testing.T) (*Document, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	doc := NewDocument("board-1", "Test", 100, clk)
	require.NoError(t, doc.Load(Record{
		ID:    "board-1",
		Name:  "Test",
		Nodes: DefaultSnapshot("Main Idea").Nodes,
		Edges: []Edge{},
	}, true))
	return doc, clk
}

func edge(id, source, target string) Edge {
	return Edge{ID: id, Source: source, Target: target, SourceHandle: "right-source", TargetHandle: "left-target"}
}

func TestDocument_LoadPersistedIsClean(t *testing.T) {
	doc, _ := newTestDocument(t)

	st := doc.State()
	assert.False(t, st.Dirty)
	assert.False(t, st.CanUndo)
	assert.Len(t, st.Snapshot.Nodes, 1)
	assert.Equal(t, "Main Idea", st.Snapshot.Nodes[0].Data.Label)
}

func TestDocument_LoadUnpersistedIsDirty(t *testing.T) {
	doc := NewDocument("b", "x", 10, nil)
	require.NoError(t, doc.Load(Record{ID: "imported", Name: "Imported"}, false))

	assert.True(t, doc.IsDirty())
	assert.Equal(t, "imported", doc.ID())
	assert.NotNil(t, doc.Snapshot().Nodes)
	assert.NotNil(t, doc.Snapshot().Edges)
}

func TestDocument_AddNodeRejectsDuplicate(t *testing.T) {
	doc, _ := newTestDocument(t)

	err := doc.AddNode(NewTextNode("1", Position{}, "dup", ""))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDuplicateNode))
	assert.False(t, doc.IsDirty())
	assert.False(t, doc.State().CanUndo)
}

func TestDocument_DanglingEdgesAbortMutation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *Document) error
	}{
		{
			name: "update edges with unknown target",
			mutate: func(d *Document) error {
				return d.UpdateEdges([]Edge{edge("e1", "1", "missing")})
			},
		},
		{
			name: "update nodes dropping an edge endpoint",
			mutate: func(d *Document) error {
				return d.UpdateNodes([]Node{NewTextNode("1", Position{}, "Main Idea", "")})
			},
		},
		{
			name: "set board with dangling source",
			mutate: func(d *Document) error {
				return d.SetBoard(
					[]Node{NewTextNode("1", Position{}, "a", "")},
					[]Edge{edge("e1", "ghost", "1")},
				)
			},
		},
		{
			name: "insert with edge to missing node",
			mutate: func(d *Document) error {
				return d.Insert([]Node{NewTextNode("3", Position{}, "c", "")}, []Edge{edge("e9", "3", "nope")})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, _ := newTestDocument(t)
			require.NoError(t, doc.Insert(
				[]Node{NewTextNode("2", Position{X: 200}, "child", "")},
				[]Edge{edge("e-1-2", "1", "2")},
			))
			before := doc.State()

			err := tt.mutate(doc)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsValidation(err))

			after := doc.State()
			assert.True(t, before.Snapshot.Equal(after.Snapshot))
			assert.Equal(t, before.Version, after.Version)
		})
	}
}

func TestDocument_RemoveNodeCascadesEdges(t *testing.T) {
	doc, _ := newTestDocument(t)
	require.NoError(t, doc.Insert(
		[]Node{
			NewTextNode("2", Position{X: 200}, "a", ""),
			NewTextNode("3", Position{X: 400}, "b", ""),
		},
		[]Edge{edge("e12", "1", "2"), edge("e23", "2", "3"), edge("e13", "1", "3")},
	))

	require.NoError(t, doc.RemoveNode("2"))

	snap := doc.Snapshot()
	assert.Len(t, snap.Nodes, 2)
	require.Len(t, snap.Edges, 1)
	assert.Equal(t, "e13", snap.Edges[0].ID)

	err := doc.RemoveNode("2")
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestDocument_UndoRedoInverse(t *testing.T) {
	doc, _ := newTestDocument(t)
	initial := doc.Snapshot()

	ops := []func() error{
		func() error { return doc.AddNode(NewTextNode("2", Position{X: 100}, "two", "")) },
		func() error { return doc.UpdateEdges([]Edge{edge("e12", "1", "2")}) },
		func() error { return doc.MoveNodes(map[string]Position{"2": {X: 300, Y: 40}}) },
		func() error {
			return doc.UpdateNodeContent("2", NodeData{Label: "two!", Content: Content{Text: "<p>x</p>"}})
		},
		func() error { return doc.UpdateBoardName("Renamed") },
		func() error { return doc.RemoveNode("1") },
	}
	var states []Snapshot
	for _, op := range ops {
		require.NoError(t, op())
		states = append(states, doc.Snapshot())
	}
	final := doc.Snapshot()

	for i := len(ops) - 1; i >= 0; i-- {
		require.True(t, doc.Undo())
		if i > 0 {
			assert.True(t, states[i-1].Equal(doc.Snapshot()), "undo step %d", i)
		}
	}
	assert.True(t, initial.Equal(doc.Snapshot()))
	assert.Equal(t, "Test", doc.Name())
	assert.False(t, doc.Undo())

	for range ops {
		require.True(t, doc.Redo())
	}
	assert.True(t, final.Equal(doc.Snapshot()))
	assert.Equal(t, "Renamed", doc.Name())
	assert.False(t, doc.Redo())
}

func TestDocument_NewMutationClearsRedo(t *testing.T) {
	doc, _ := newTestDocument(t)
	require.NoError(t, doc.AddNode(NewTextNode("2", Position{}, "a", "")))
	require.True(t, doc.Undo())
	require.True(t, doc.State().CanRedo)

	require.NoError(t, doc.AddNode(NewTextNode("3", Position{}, "b", "")))
	assert.False(t, doc.State().CanRedo)
}

func TestDocument_DirtyTracksSavedBaseline(t *testing.T) {
	doc, clk := newTestDocument(t)
	require.False(t, doc.IsDirty())

	require.NoError(t, doc.AddNode(NewTextNode("2", Position{}, "a", "")))
	assert.True(t, doc.IsDirty())

	require.True(t, doc.Undo())
	assert.False(t, doc.IsDirty(), "undo back to the saved state is clean")

	require.True(t, doc.Redo())
	assert.True(t, doc.IsDirty())

	saved := doc.Snapshot()
	doc.MarkSaved(saved, doc.Name(), clk.Now())
	assert.False(t, doc.IsDirty())
	assert.Equal(t, clk.Now(), doc.State().LastSavedAt)

	require.NoError(t, doc.UpdateBoardName("Other"))
	assert.True(t, doc.IsDirty())
}

func TestDocument_MarkSavedWithStaleSnapshotStaysDirty(t *testing.T) {
	doc, clk := newTestDocument(t)
	require.NoError(t, doc.AddNode(NewTextNode("2", Position{}, "a", "")))
	inFlight := doc.Snapshot()

	require.NoError(t, doc.AddNode(NewTextNode("3", Position{}, "b", "")))
	doc.MarkSaved(inFlight, doc.Name(), clk.Now())

	assert.True(t, doc.IsDirty())
}

func TestDocument_NoOpMutationIsNotRecorded(t *testing.T) {
	doc, _ := newTestDocument(t)
	v := doc.Version()

	require.NoError(t, doc.MoveNodes(map[string]Position{"1": {}}))
	require.NoError(t, doc.MoveNodes(map[string]Position{"unknown": {X: 5}}))
	require.NoError(t, doc.SetBoard(doc.Snapshot().Nodes, doc.Snapshot().Edges))

	assert.Equal(t, v, doc.Version())
	assert.False(t, doc.State().CanUndo)
}

func TestDocument_ObserversSeeCommittedState(t *testing.T) {
	doc, clk := newTestDocument(t)
	var changes []Change
	unsubscribe := doc.Subscribe(func(c Change) {
		// Reading back from inside the callback must not deadlock.
		assert.Equal(t, c.Version, doc.Version())
		changes = append(changes, c)
	})

	clk.Advance(time.Second)
	require.NoError(t, doc.MoveNodes(map[string]Position{"1": {X: 10, Y: 20}}))
	require.Len(t, changes, 1)
	assert.Equal(t, OpMoveNodes, changes[0].Op)
	assert.Equal(t, []string{"1"}, changes[0].Moved)
	assert.Equal(t, clk.Now(), doc.PositionStamps()["1"])

	unsubscribe()
	require.NoError(t, doc.UpdateBoardName("x"))
	assert.Len(t, changes, 1)
}

func TestDocument_HistoryLimit(t *testing.T) {
	doc := NewDocument("b", "n", 3, nil)
	require.NoError(t, doc.Load(Record{ID: "b", Name: "n"}, true))

	for i := 0; i < 5; i++ {
		require.NoError(t, doc.AddNode(NewTextNode(fmt.Sprintf("n%d", i), Position{}, "", "")))
	}

	undos := 0
	for doc.Undo() {
		undos++
	}
	assert.Equal(t, 3, undos)
	assert.Len(t, doc.Snapshot().Nodes, 2)
}

func TestDocument_SnapshotsAreNotMutatedByLaterOps(t *testing.T) {
	doc, _ := newTestDocument(t)
	before := doc.Snapshot()

	require.NoError(t, doc.MoveNodes(map[string]Position{"1": {X: 99}}))
	require.NoError(t, doc.UpdateNodeContent("1", NodeData{Label: "changed"}))

	assert.Equal(t, Position{}, before.Nodes[0].Position)
	assert.Equal(t, "Main Idea", before.Nodes[0].Data.Label)
}

func TestDocument_UpdateBoardNameRejectsBlank(t *testing.T) {
	doc, _ := newTestDocument(t)
	err := doc.UpdateBoardName("   ")
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestDocument_SetBoardIfChecksVersion(t *testing.T) {
	doc, clk := newTestDocument(t)
	clk.Advance(time.Second)
	rev := doc.Revision()
	require.Len(t, rev.Snapshot.Nodes, 1)

	moved := rev.Snapshot.Nodes[0]
	moved.Position = Position{X: 40, Y: 40}

	require.NoError(t, doc.AddNode(NewTextNode("2", Position{X: 300}, "late", "")))
	err := doc.SetBoardIf(rev.Version, []Node{moved}, nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStaleVersion))
	assert.Len(t, doc.Snapshot().Nodes, 2, "stale write changes nothing")

	fresh := doc.Revision()
	assert.Equal(t, doc.Version(), fresh.Version)
	require.NoError(t, doc.SetBoardIf(fresh.Version, []Node{moved}, nil))
	assert.Len(t, doc.Snapshot().Nodes, 1)
	assert.Equal(t, clk.Now(), doc.Revision().Moves[moved.ID])
}
