package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_UndoRedoRoundTrip(t *testing.T) {
	m := New[int](0)
	state := 0
	for i := 1; i <= 5; i++ {
		m.Record(state)
		state = i
	}

	for i := 0; i < 5; i++ {
		prev, ok := m.Undo(state)
		require.True(t, ok)
		state = prev
	}
	assert.Equal(t, 0, state)
	assert.False(t, m.CanUndo())

	for i := 0; i < 5; i++ {
		next, ok := m.Redo(state)
		require.True(t, ok)
		state = next
	}
	assert.Equal(t, 5, state)
	assert.False(t, m.CanRedo())
}

func TestManager_EmptyStacksAreNoOps(t *testing.T) {
	m := New[string](10)

	v, ok := m.Undo("current")
	assert.False(t, ok)
	assert.Empty(t, v)

	v, ok = m.Redo("current")
	assert.False(t, ok)
	assert.Empty(t, v)

	past, future := m.Depth()
	assert.Zero(t, past)
	assert.Zero(t, future)
}

func TestManager_RecordClearsRedo(t *testing.T) {
	m := New[int](0)
	m.Record(1)
	_, ok := m.Undo(2)
	require.True(t, ok)
	require.True(t, m.CanRedo())

	m.Record(1)
	assert.False(t, m.CanRedo())
}

func TestManager_LimitEvictsOldest(t *testing.T) {
	tests := []struct {
		name      string
		limit     int
		records   int
		wantDepth int
		wantFirst int
	}{
		{name: "under limit", limit: 5, records: 3, wantDepth: 3, wantFirst: 0},
		{name: "at limit", limit: 3, records: 3, wantDepth: 3, wantFirst: 0},
		{name: "over limit", limit: 3, records: 7, wantDepth: 3, wantFirst: 4},
		{name: "unbounded", limit: 0, records: 250, wantDepth: 250, wantFirst: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New[int](tt.limit)
			for i := 0; i < tt.records; i++ {
				m.Record(i)
			}
			past, _ := m.Depth()
			assert.Equal(t, tt.wantDepth, past)

			state := tt.records
			for m.CanUndo() {
				state, _ = m.Undo(state)
			}
			assert.Equal(t, tt.wantFirst, state)
		})
	}
}

func TestManager_Reset(t *testing.T) {
	m := New[int](0)
	m.Record(1)
	m.Record(2)
	_, _ = m.Undo(3)

	m.Reset()
	assert.False(t, m.CanUndo())
	assert.False(t, m.CanRedo())
}
