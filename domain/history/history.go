// Package history keeps bounded undo/redo stacks of whole snapshots.
package history

// DefaultLimit is the default number of undo steps retained.
const DefaultLimit = 100

// Manager tracks past and future snapshots of a value. Snapshots are stored
// as given, so T must be treated as immutable by callers.
//
// Manager is not safe for concurrent use; the owning document serialises
// access to it.
type Manager[T any] struct {
	past   []T
	future []T
	limit  int
}

// New creates a manager retaining at most limit undo steps. A limit of zero
// means unbounded.
func New[T any](limit int) *Manager[T] {
	if limit < 0 {
		limit = 0
	}
	return &Manager[T]{limit: limit}
}

// Record pushes the pre-mutation snapshot and clears the redo stack.
func (m *Manager[T]) Record(prev T) {
	m.past = append(m.past, prev)
	if m.limit > 0 && len(m.past) > m.limit {
		drop := len(m.past) - m.limit
		var zero T
		for i := 0; i < drop; i++ {
			m.past[i] = zero
		}
		m.past = append(m.past[:0:0], m.past[drop:]...)
	}
	m.future = nil
}

// Undo returns the previous snapshot and pushes current onto the redo stack.
// It reports false and leaves both stacks unchanged when there is nothing to undo.
func (m *Manager[T]) Undo(current T) (T, bool) {
	if len(m.past) == 0 {
		var zero T
		return zero, false
	}
	last := len(m.past) - 1
	prev := m.past[last]
	var zero T
	m.past[last] = zero
	m.past = m.past[:last]
	m.future = append(m.future, current)
	return prev, true
}

// Redo is the mirror of Undo.
func (m *Manager[T]) Redo(current T) (T, bool) {
	if len(m.future) == 0 {
		var zero T
		return zero, false
	}
	last := len(m.future) - 1
	next := m.future[last]
	var zero T
	m.future[last] = zero
	m.future = m.future[:last]
	m.past = append(m.past, current)
	if m.limit > 0 && len(m.past) > m.limit {
		m.past = append(m.past[:0:0], m.past[len(m.past)-m.limit:]...)
	}
	return next, true
}

// Reset drops both stacks.
func (m *Manager[T]) Reset() {
	m.past = nil
	m.future = nil
}

// CanUndo reports whether Undo would succeed.
func (m *Manager[T]) CanUndo() bool { return len(m.past) > 0 }

// CanRedo reports whether Redo would succeed.
func (m *Manager[T]) CanRedo() bool { return len(m.future) > 0 }

// Depth returns the sizes of the undo and redo stacks.
func (m *Manager[T]) Depth() (past, future int) {
	return len(m.past), len(m.future)
}

// Limit returns the configured cap, zero meaning unbounded.
func (m *Manager[T]) Limit() int { return m.limit }
