package bus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessionCommand struct {
	session string
	invalid bool
}

func (c sessionCommand) Validate() error {
	if c.invalid {
		return errors.New("invalid")
	}
	return nil
}

func (c sessionCommand) DispatchKey() string { return c.session }

type unkeyedCommand struct{}

func (unkeyedCommand) Validate() error { return nil }

func TestCommandBusDispatch(t *testing.T) {
	b := NewCommandBus()
	require.NoError(t, b.Register(sessionCommand{}, Typed(func(_ context.Context, cmd sessionCommand) (interface{}, error) {
		return cmd.session, nil
	})))

	t.Run("routes by command type", func(t *testing.T) {
		result, err := b.Send(context.Background(), sessionCommand{session: "a"})
		require.NoError(t, err)
		assert.Equal(t, "a", result)
	})

	t.Run("validation runs first", func(t *testing.T) {
		_, err := b.Send(context.Background(), sessionCommand{session: "a", invalid: true})
		assert.EqualError(t, err, "invalid")
	})

	t.Run("unregistered type", func(t *testing.T) {
		_, err := b.Send(context.Background(), unkeyedCommand{})
		assert.ErrorIs(t, err, ErrHandlerNotFound)
	})

	t.Run("duplicate registration", func(t *testing.T) {
		err := b.Register(sessionCommand{}, Typed(func(context.Context, sessionCommand) (interface{}, error) {
			return nil, nil
		}))
		assert.Error(t, err)
	})
}

func TestCommandBusSessionsRunConcurrently(t *testing.T) {
	release := make(chan struct{})
	b := NewCommandBus()
	require.NoError(t, b.Register(sessionCommand{}, Typed(func(_ context.Context, cmd sessionCommand) (interface{}, error) {
		if cmd.session == "slow" {
			<-release
		}
		return nil, nil
	})))

	slowDone := make(chan struct{})
	go func() {
		defer close(slowDone)
		_, _ = b.Send(context.Background(), sessionCommand{session: "slow"})
	}()

	// A command for another session completes while the slow one is held.
	fastDone := make(chan struct{})
	go func() {
		defer close(fastDone)
		_, _ = b.Send(context.Background(), sessionCommand{session: "fast"})
	}()
	select {
	case <-fastDone:
	case <-time.After(2 * time.Second):
		t.Fatal("command for an idle session waited on another session")
	}

	close(release)
	<-slowDone
	assert.Equal(t, 0, b.keys.size())
}

func TestCommandBusSerialisesOneSession(t *testing.T) {
	var running, maxRunning int32
	b := NewCommandBus()
	require.NoError(t, b.Register(sessionCommand{}, Typed(func(context.Context, sessionCommand) (interface{}, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			m := atomic.LoadInt32(&maxRunning)
			if n <= m || atomic.CompareAndSwapInt32(&maxRunning, m, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&running, -1)
		return nil, nil
	})))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.Send(context.Background(), sessionCommand{session: "same"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxRunning))
	assert.Equal(t, 0, b.keys.size())
}

func TestCommandBusExclusive(t *testing.T) {
	b := NewCommandBus()
	entered := make(chan struct{})
	require.NoError(t, b.Register(sessionCommand{}, Typed(func(context.Context, sessionCommand) (interface{}, error) {
		close(entered)
		return nil, nil
	})))

	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = b.Exclusive("s1", func() error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	go func() {
		_, _ = b.Send(context.Background(), sessionCommand{session: "s1"})
	}()
	select {
	case <-entered:
		t.Fatal("keyed command ran inside an exclusive section for its key")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("keyed command never ran after the section ended")
	}
}
