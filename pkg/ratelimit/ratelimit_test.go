package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindboard/pkg/clock"
)

func TestSlidingWindowLimiter(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	l := NewSlidingWindowLimiter(2, time.Minute, clk)

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "s1")
		require.NoError(t, err)
		assert.True(t, ok)
		clk.Advance(10 * time.Second)
	}

	ok, _ := l.Allow(ctx, "s1")
	assert.False(t, ok, "third request within the window")
	assert.Equal(t, 40*time.Second, l.RetryAfter("s1"))

	ok, _ = l.Allow(ctx, "s2")
	assert.True(t, ok, "keys are independent")

	clk.Advance(40 * time.Second)
	ok, _ = l.Allow(ctx, "s1")
	assert.True(t, ok, "oldest request left the window")
}

func TestSlidingWindowLimiterReset(t *testing.T) {
	ctx := context.Background()
	l := NewSlidingWindowLimiter(1, time.Hour, clock.NewFake(time.Now()))

	ok, _ := l.Allow(ctx, "s1")
	require.True(t, ok)
	ok, _ = l.Allow(ctx, "s1")
	require.False(t, ok)

	require.NoError(t, l.Reset(ctx, "s1"))
	ok, _ = l.Allow(ctx, "s1")
	assert.True(t, ok)
}

func TestSlidingWindowLimiterForgetsIdleKeys(t *testing.T) {
	clk := clock.NewFake(time.Now())
	l := NewSlidingWindowLimiter(3, time.Minute, clk)

	_, _ = l.Allow(context.Background(), "s1")
	clk.Advance(2 * time.Minute)

	assert.Zero(t, l.RetryAfter("s1"))
	assert.Empty(t, l.windows)
}
