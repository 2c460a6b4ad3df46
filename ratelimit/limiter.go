// Package ratelimit bounds outbound call rate per endpoint class and
// handles throttling retries with exponential backoff.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/loreweave/loreweave/errors"
)

// Limiter enforces max calls per rolling window using a sliding window of
// call timestamps. One Limiter is shared per endpoint class; admission
// decisions serialize through a single critical section that only decides
// "go now" vs "sleep until", never holding the lock across a sleep.
type Limiter struct {
	maxCalls int
	window   time.Duration
	mu       sync.Mutex
	callTimes []time.Time
	timeNow  func() time.Time // Injectable for testing
}

// NewLimiter creates a rate limiter with real time.
func NewLimiter(maxCalls int, window time.Duration) *Limiter {
	return NewLimiterWithClock(maxCalls, window, time.Now)
}

// NewLimiterWithClock creates a rate limiter with injectable clock (for testing).
func NewLimiterWithClock(maxCalls int, window time.Duration, timeNow func() time.Time) *Limiter {
	return &Limiter{
		maxCalls:  maxCalls,
		window:    window,
		callTimes: make([]time.Time, 0, maxCalls),
		timeNow:   timeNow,
	}
}

// Allow checks if a call is allowed under rate limits without blocking.
// Returns an error if the window is full.
func (l *Limiter) Allow() error {
	_, ok := l.reserve()
	if !ok {
		return errors.Newf("rate limit exceeded: %d calls per %s", l.maxCalls, l.window)
	}
	return nil
}

// Wait blocks until a call slot is available or the context is cancelled.
// The wake time is computed exactly from the oldest timestamp in the
// window, so no caller sleeps longer than necessary and none is starved.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		wait, ok := l.reserve()
		if ok {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// reserve admits the call (recording its timestamp) or returns how long
// until the oldest call rolls out of the window.
func (l *Limiter) reserve() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.timeNow()
	l.removeExpiredCalls(now)

	if len(l.callTimes) < l.maxCalls {
		l.callTimes = append(l.callTimes, now)
		return 0, true
	}

	wait := l.callTimes[0].Add(l.window).Sub(now)
	if wait <= 0 {
		// Clock moved between reads; treat as immediately retryable
		wait = time.Millisecond
	}
	return wait, false
}

// removeExpiredCalls drops timestamps outside the window. Caller holds mu.
func (l *Limiter) removeExpiredCalls(now time.Time) {
	cutoff := now.Add(-l.window)

	expired := 0
	for _, callTime := range l.callTimes {
		if !callTime.After(cutoff) {
			expired++
		} else {
			break
		}
	}

	l.callTimes = l.callTimes[expired:]
}

// Reset clears the rate limiter state.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.callTimes = l.callTimes[:0]
}

// Stats returns calls currently in the window and remaining capacity.
func (l *Limiter) Stats() (callsInWindow int, remaining int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.removeExpiredCalls(l.timeNow())

	callsInWindow = len(l.callTimes)
	remaining = l.maxCalls - callsInWindow
	if remaining < 0 {
		remaining = 0
	}
	return callsInWindow, remaining
}

// Do wraps one outbound call with admission control and throttling retry.
// The same call is retried after an exponentially growing, jittered pause
// whenever fn reports a throttling error; the backoff counter resets on
// success. Non-throttling errors propagate unchanged and do not touch the
// backoff counter. The call is never dropped, only delayed; cancellation
// comes solely from ctx.
func (l *Limiter) Do(ctx context.Context, b *Backoff, logger *zap.SugaredLogger, fn func() error) error {
	for {
		if err := l.Wait(ctx); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			if b != nil {
				b.Reset()
			}
			return nil
		}
		if !errors.IsThrottled(err) {
			return err
		}

		if b == nil {
			return err
		}
		pause := b.Next()
		if logger != nil {
			logger.Debugw("Throttled by upstream, backing off",
				"pause", pause,
				"attempt", b.Attempts(),
			)
		}

		timer := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
