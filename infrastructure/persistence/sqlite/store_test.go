package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindboard/domain/board"
	pkgerrors "mindboard/pkg/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func record(id, name string, updated time.Time, nodes ...board.Node) board.Record {
	return board.Record{ID: id, Name: name, Nodes: nodes, UpdatedAt: updated}
}

func TestStoreRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 6, 1, 12, 0, 0, 500, time.UTC)

	rec := record("b1", "Trip", at,
		board.NewTextNode("1", board.Position{X: 10, Y: 20}, "Root", "<p>go</p>"),
		board.NewTextNode("2", board.Position{X: 300}, "Pack", ""),
	)
	rec.Edges = []board.Edge{{ID: "e1", Source: "1", Target: "2"}}
	require.NoError(t, s.Put(ctx, rec))

	got, err := s.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "Trip", got.Name)
	assert.True(t, at.Equal(got.UpdatedAt))
	assert.True(t, rec.Snapshot().Equal(got.Snapshot()))

	rec.Name = "Trip v2"
	rec.Nodes = rec.Nodes[:1]
	rec.Edges = nil
	require.NoError(t, s.Put(ctx, rec))

	got, err = s.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "Trip v2", got.Name)
	assert.Len(t, got.Nodes, 1)
	assert.Empty(t, got.Edges)
}

func TestStoreGetMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "nope")
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestStorePutRequiresID(t *testing.T) {
	s := newTestStore(t)

	err := s.Put(context.Background(), board.Record{Name: "anonymous"})
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestStoreListOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Put(ctx, record("old", "Old", base)))
	require.NoError(t, s.Put(ctx, record("new", "New", base.Add(time.Hour),
		board.NewTextNode("1", board.Position{}, "A", ""),
	)))
	require.NoError(t, s.Put(ctx, record("tie", "Tie", base)))

	summaries, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 3)

	ids := make([]string, len(summaries))
	for i, sum := range summaries {
		ids[i] = sum.ID
	}
	assert.Equal(t, []string{"new", "old", "tie"}, ids)
	assert.Equal(t, 1, summaries[0].NodeCount)
}

func TestStoreDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, record("b1", "Gone", time.Now())))

	require.NoError(t, s.Delete(ctx, "b1"))
	assert.True(t, pkgerrors.IsNotFound(s.Delete(ctx, "b1")))

	summaries, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, summaries)
}
