// Package clock abstracts wall time and timers so debounce and cooldown
// logic can be driven deterministically in tests.
package clock

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock provides the current time and delayed callbacks.
type Clock = clockwork.Clock

// Timer is a pending callback created by Clock.AfterFunc.
type Timer = clockwork.Timer

// Real returns a Clock backed by the time package.
func Real() Clock { return clockwork.NewRealClock() }

// Fake is a manually advanced Clock. Advance returns only after every
// callback that fell due has finished, and due callbacks run in deadline
// order, so timer chains settle within a single Advance.
type Fake struct {
	*clockwork.FakeClock

	mu      sync.Mutex
	pending map[*fakeTimer]struct{}
}

// NewFake creates a fake clock starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{
		FakeClock: clockwork.NewFakeClockAt(start),
		pending:   make(map[*fakeTimer]struct{}),
	}
}

// AfterFunc schedules f to run once the fake time reaches now+d.
func (c *Fake) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{clock: c, fn: f}
	c.mu.Lock()
	defer c.mu.Unlock()
	t.armLocked(d)
	return t
}

// Advance moves the clock forward and runs every callback that falls due,
// including callbacks scheduled by earlier ones inside the window.
func (c *Fake) Advance(d time.Duration) {
	target := c.FakeClock.Now().Add(d)
	for {
		c.mu.Lock()
		at, done := c.nextDueLocked(target)
		c.mu.Unlock()
		if len(done) == 0 {
			break
		}
		c.FakeClock.Advance(max(at.Sub(c.FakeClock.Now()), 0))
		for _, ch := range done {
			<-ch
		}
	}
	if rest := target.Sub(c.FakeClock.Now()); rest > 0 {
		c.FakeClock.Advance(rest)
	}
}

// Pending reports how many timers are scheduled.
func (c *Fake) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// nextDueLocked returns the earliest deadline not after target and the
// completion channels of every timer due at it.
func (c *Fake) nextDueLocked(target time.Time) (time.Time, []chan struct{}) {
	var at time.Time
	var done []chan struct{}
	for t := range c.pending {
		switch {
		case t.at.After(target):
		case len(done) == 0 || t.at.Before(at):
			at, done = t.at, []chan struct{}{t.done}
		case t.at.Equal(at):
			done = append(done, t.done)
		}
	}
	return at, done
}

type fakeTimer struct {
	clock *Fake
	fn    func()
	at    time.Time
	done  chan struct{}
	inner clockwork.Timer
}

func (t *fakeTimer) armLocked(d time.Duration) {
	c := t.clock
	done := make(chan struct{})
	t.at = c.FakeClock.Now().Add(d)
	t.done = done
	c.pending[t] = struct{}{}
	t.inner = c.FakeClock.AfterFunc(d, func() {
		defer close(done)
		c.mu.Lock()
		if t.done == done {
			delete(c.pending, t)
		}
		c.mu.Unlock()
		t.fn()
	})
}

func (t *fakeTimer) Chan() <-chan time.Time {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	return t.inner.Chan()
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	return t.stopLocked()
}

func (t *fakeTimer) Reset(d time.Duration) bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := t.stopLocked()
	t.armLocked(d)
	return active
}

func (t *fakeTimer) stopLocked() bool {
	if !t.inner.Stop() {
		return false
	}
	delete(t.clock.pending, t)
	close(t.done)
	return true
}
