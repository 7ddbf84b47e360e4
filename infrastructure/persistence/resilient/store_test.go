package resilient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mindboard/domain/board"
	"mindboard/infrastructure/persistence/memory"
	pkgerrors "mindboard/pkg/errors"
	"mindboard/pkg/observability"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Get(ctx context.Context, id string) (board.Record, error) {
	args := m.Called(ctx, id)
	rec, _ := args.Get(0).(board.Record)
	return rec, args.Error(1)
}

func (m *mockStore) Put(ctx context.Context, rec board.Record) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *mockStore) List(ctx context.Context) ([]board.Summary, error) {
	args := m.Called(ctx)
	out, _ := args.Get(0).([]board.Summary)
	return out, args.Error(1)
}

func (m *mockStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func settings() Settings {
	return Settings{Backend: "test", MaxFailures: 2, OpenTimeout: time.Hour}
}

func TestStorePassesThrough(t *testing.T) {
	metrics := observability.NewCollector("test")
	s := NewStore(memory.NewStore(), settings(), metrics, nil, nil)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, board.Record{ID: "b1", Name: "One"}))
	rec, err := s.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "One", rec.Name)

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	require.NoError(t, s.Delete(ctx, "b1"))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StoreOperations.WithLabelValues("put", "test", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StoreOperations.WithLabelValues("get", "test", "success")))
}

func TestStoreOpensAfterConsecutiveFailures(t *testing.T) {
	next := &mockStore{}
	s := NewStore(next, settings(), nil, nil, nil)
	ctx := context.Background()

	next.On("Put", mock.Anything, mock.Anything).Return(errors.New("connection reset")).Twice()

	for i := 0; i < 2; i++ {
		err := s.Put(ctx, board.Record{ID: "b1"})
		require.Error(t, err)
		assert.False(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeUnavailable))
	}
	assert.Equal(t, gobreaker.StateOpen, s.State())

	err := s.Put(ctx, board.Record{ID: "b1"})
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeUnavailable))
	next.AssertNumberOfCalls(t, "Put", 2)
}

func TestStoreCallerErrorsDoNotTrip(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "not found", err: pkgerrors.NewNotFoundError("board")},
		{name: "validation", err: pkgerrors.NewValidationError("bad id")},
		{name: "conflict", err: pkgerrors.NewConflictError("locked")},
		{name: "canceled", err: context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := &mockStore{}
			s := NewStore(next, settings(), nil, nil, nil)
			next.On("Get", mock.Anything, "b1").Return(nil, tt.err)

			for i := 0; i < 5; i++ {
				_, err := s.Get(context.Background(), "b1")
				assert.ErrorIs(t, err, tt.err)
			}
			assert.Equal(t, gobreaker.StateClosed, s.State())
		})
	}
}

func TestStoreCallTimeout(t *testing.T) {
	next := &mockStore{}
	cfg := settings()
	cfg.CallTimeout = 10 * time.Millisecond
	s := NewStore(next, cfg, nil, nil, nil)

	next.On("List", mock.Anything).Return(nil, context.DeadlineExceeded).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		<-ctx.Done()
	})

	_, err := s.List(context.Background())
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeTimeout))
}
