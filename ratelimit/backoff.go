package ratelimit

import (
	"math/rand"
	"sync"
	"time"
)

const (
	// DefaultInitialBackoff is the first pause after a throttling signal
	DefaultInitialBackoff = 1 * time.Second
	// DefaultMaxBackoff caps the exponential growth
	DefaultMaxBackoff = 60 * time.Second
	// DefaultJitter is the ± fraction applied to each pause
	DefaultJitter = 0.2
)

// Backoff computes base × 2^attempts pauses, capped, with jitter. One
// Backoff exists per call site; Reset on success.
type Backoff struct {
	base   time.Duration
	max    time.Duration
	jitter float64

	mu       sync.Mutex
	attempts int
	randFloat func() float64 // Injectable for testing
}

// NewBackoff creates a backoff with the given base and cap.
func NewBackoff(base, max time.Duration) *Backoff {
	return &Backoff{
		base:      base,
		max:       max,
		jitter:    DefaultJitter,
		randFloat: rand.Float64,
	}
}

// DefaultBackoff creates a backoff with the package defaults.
func DefaultBackoff() *Backoff {
	return NewBackoff(DefaultInitialBackoff, DefaultMaxBackoff)
}

// Next increments the attempt counter and returns the next pause:
// base × 2^(attempts-1), capped at max, with ±jitter applied.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	pause := b.base
	for i := 0; i < b.attempts; i++ {
		pause *= 2
		if pause >= b.max {
			pause = b.max
			break
		}
	}
	b.attempts++

	if b.jitter > 0 {
		// Spread across [1-jitter, 1+jitter]
		factor := 1 + b.jitter*(2*b.randFloat()-1)
		pause = time.Duration(float64(pause) * factor)
	}
	if pause > b.max {
		pause = b.max
	}
	return pause
}

// Reset clears the attempt counter after a successful call.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempts = 0
}

// Attempts returns how many throttling retries have occurred since the
// last reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}
