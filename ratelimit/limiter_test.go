package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loreweave/loreweave/errors"
)

// mockClock allows controlling time in tests
type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMockClock(now time.Time) *mockClock {
	return &mockClock{now: now}
}

func (m *mockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *mockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

func TestLimiter_UnderLimit(t *testing.T) {
	clock := newMockClock(time.Now())
	limiter := NewLimiterWithClock(10, time.Minute, clock.Now)

	for i := 0; i < 5; i++ {
		if err := limiter.Allow(); err != nil {
			t.Errorf("Call %d: expected no error, got %v", i+1, err)
		}
		clock.Advance(1 * time.Second)
	}
}

func TestLimiter_AtLimit(t *testing.T) {
	clock := newMockClock(time.Now())
	limiter := NewLimiterWithClock(3, time.Minute, clock.Now)

	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Allow())
	}

	err := limiter.Allow()
	assert.Error(t, err, "call over the limit must be denied")

	inWindow, remaining := limiter.Stats()
	assert.Equal(t, 3, inWindow)
	assert.Equal(t, 0, remaining)
}

func TestLimiter_WindowRollover(t *testing.T) {
	clock := newMockClock(time.Now())
	limiter := NewLimiterWithClock(2, time.Minute, clock.Now)

	require.NoError(t, limiter.Allow())
	require.NoError(t, limiter.Allow())
	require.Error(t, limiter.Allow())

	// After the window passes, capacity frees up
	clock.Advance(61 * time.Second)
	assert.NoError(t, limiter.Allow())
}

func TestLimiter_Reset(t *testing.T) {
	clock := newMockClock(time.Now())
	limiter := NewLimiterWithClock(1, time.Minute, clock.Now)

	require.NoError(t, limiter.Allow())
	require.Error(t, limiter.Allow())

	limiter.Reset()
	assert.NoError(t, limiter.Allow())
}

// Issuing 2N calls within the window must observably delay at least one
// caller until the window rolls over, and every caller must complete.
func TestLimiter_WaitDelaysButNeverStarves(t *testing.T) {
	const n = 3
	window := 150 * time.Millisecond
	limiter := NewLimiter(n, window)

	start := time.Now()
	var wg sync.WaitGroup
	var mu sync.Mutex
	var completions []time.Duration

	for i := 0; i < 2*n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := limiter.Wait(context.Background()); err != nil {
				t.Errorf("Wait failed: %v", err)
				return
			}
			mu.Lock()
			completions = append(completions, time.Since(start))
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, completions, 2*n, "no caller may be dropped")

	delayed := 0
	for _, d := range completions {
		if d >= window {
			delayed++
		}
	}
	assert.GreaterOrEqual(t, delayed, 1, "at least one caller must wait for the window to roll over")
}

func TestLimiter_WaitCancellation(t *testing.T) {
	limiter := NewLimiter(1, time.Hour)
	require.NoError(t, limiter.Allow()) // exhaust the window

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLimiter_Do_RetriesThrottled(t *testing.T) {
	limiter := NewLimiter(100, time.Minute)
	backoff := NewBackoff(time.Millisecond, 10*time.Millisecond)

	calls := 0
	err := limiter.Do(context.Background(), backoff, nil, func() error {
		calls++
		if calls < 3 {
			return errors.Mark(errors.New("429"), errors.ErrThrottled)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls, "the same call is retried until it succeeds")
	assert.Equal(t, 0, backoff.Attempts(), "backoff counter resets on success")
}

func TestLimiter_Do_NonThrottleErrorPropagates(t *testing.T) {
	limiter := NewLimiter(100, time.Minute)
	backoff := DefaultBackoff()

	sentinel := errors.New("connection refused")
	calls := 0
	err := limiter.Do(context.Background(), backoff, nil, func() error {
		calls++
		return sentinel
	})

	assert.ErrorIs(t, err, sentinel, "non-throttle errors propagate unchanged")
	assert.Equal(t, 1, calls, "no retry for non-throttle errors")
	assert.Equal(t, 0, backoff.Attempts(), "backoff counter untouched by non-throttle errors")
}

func TestLimiter_Do_Cancellation(t *testing.T) {
	limiter := NewLimiter(100, time.Minute)
	backoff := NewBackoff(time.Hour, time.Hour) // would sleep forever

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := limiter.Do(ctx, backoff, nil, func() error {
		return errors.Mark(errors.New("429"), errors.ErrThrottled)
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
