// Package resilient wraps a board store with a circuit breaker, per-call
// timeouts, tracing and metrics.
package resilient

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"mindboard/application/ports"
	"mindboard/domain/board"
	pkgerrors "mindboard/pkg/errors"
	"mindboard/pkg/observability"
)

// Settings configures the breaker around a store
type Settings struct {
	Backend     string        // Label used in metrics and logs
	MaxFailures uint32        // Consecutive failures before the breaker opens
	OpenTimeout time.Duration // How long the breaker stays open before probing
	CallTimeout time.Duration // Deadline applied to each store call; zero disables it
}

// DefaultSettings returns settings suitable for a remote store
func DefaultSettings(backend string) Settings {
	return Settings{
		Backend:     backend,
		MaxFailures: 5,
		OpenTimeout: 30 * time.Second,
		CallTimeout: 5 * time.Second,
	}
}

// Store decorates a ports.BoardStore
type Store struct {
	next     ports.BoardStore
	breaker  *gobreaker.CircuitBreaker
	settings Settings
	metrics  *observability.Collector
	tracer   *observability.Tracer
	logger   *zap.Logger
}

var _ ports.BoardStore = (*Store)(nil)

// NewStore wraps next. Metrics and tracer may be nil.
func NewStore(next ports.BoardStore, settings Settings, metrics *observability.Collector, tracer *observability.Tracer, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.MaxFailures == 0 {
		settings.MaxFailures = 1
	}
	s := &Store{
		next:     next,
		settings: settings,
		metrics:  metrics,
		tracer:   tracer,
		logger:   logger,
	}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "board-store-" + settings.Backend,
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.MaxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Board store circuit breaker changed state",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: isSuccessful,
	})
	return s
}

// isSuccessful keeps caller mistakes from tripping the breaker
func isSuccessful(err error) bool {
	if err == nil {
		return true
	}
	return pkgerrors.IsNotFound(err) ||
		pkgerrors.IsValidation(err) ||
		pkgerrors.IsConflict(err) ||
		errors.Is(err, context.Canceled)
}

// State reports the breaker state, for readiness checks
func (s *Store) State() gobreaker.State {
	return s.breaker.State()
}

// Get loads a board
func (s *Store) Get(ctx context.Context, boardID string) (board.Record, error) {
	var rec board.Record
	err := s.call(ctx, "get", func(ctx context.Context) error {
		var err error
		rec, err = s.next.Get(ctx, boardID)
		return err
	})
	return rec, err
}

// Put creates or replaces a board
func (s *Store) Put(ctx context.Context, rec board.Record) error {
	return s.call(ctx, "put", func(ctx context.Context) error {
		return s.next.Put(ctx, rec)
	})
}

// List returns board summaries
func (s *Store) List(ctx context.Context) ([]board.Summary, error) {
	var out []board.Summary
	err := s.call(ctx, "list", func(ctx context.Context) error {
		var err error
		out, err = s.next.List(ctx)
		return err
	})
	return out, err
}

// Delete removes a board
func (s *Store) Delete(ctx context.Context, boardID string) error {
	return s.call(ctx, "delete", func(ctx context.Context) error {
		return s.next.Delete(ctx, boardID)
	})
}

func (s *Store) call(ctx context.Context, operation string, fn func(context.Context) error) error {
	start := time.Now()
	err := s.tracer.TraceFunction(ctx, "BoardStore."+operation, func(ctx context.Context) error {
		_, err := s.breaker.Execute(func() (interface{}, error) {
			callCtx := ctx
			if s.settings.CallTimeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, s.settings.CallTimeout)
				defer cancel()
			}
			return nil, fn(callCtx)
		})
		return err
	})
	err = s.translate(operation, err)
	s.metrics.RecordStoreOperation(operation, s.settings.Backend, err, time.Since(start))
	return err
}

func (s *Store) translate(operation string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		s.logger.Warn("Board store call rejected by circuit breaker",
			zap.String("operation", operation),
			zap.String("backend", s.settings.Backend),
		)
		return pkgerrors.NewUnavailableError("board store").WithCause(err)
	case errors.Is(err, context.DeadlineExceeded):
		return pkgerrors.NewTimeoutError("board store " + operation).WithCause(err)
	default:
		return err
	}
}
