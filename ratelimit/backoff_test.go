package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fixed random factor of 1.0 (no jitter deviation) for deterministic tests
func fixedRand() float64 { return 0.5 }

func TestBackoff_ExponentialGrowth(t *testing.T) {
	b := NewBackoff(time.Second, time.Minute)
	b.randFloat = fixedRand

	assert.Equal(t, 1*time.Second, b.Next())
	assert.Equal(t, 2*time.Second, b.Next())
	assert.Equal(t, 4*time.Second, b.Next())
	assert.Equal(t, 8*time.Second, b.Next())
	assert.Equal(t, 4, b.Attempts())
}

func TestBackoff_Cap(t *testing.T) {
	b := NewBackoff(time.Second, 5*time.Second)
	b.randFloat = fixedRand

	for i := 0; i < 10; i++ {
		pause := b.Next()
		assert.LessOrEqual(t, pause, 5*time.Second)
	}
}

func TestBackoff_Reset(t *testing.T) {
	b := NewBackoff(time.Second, time.Minute)
	b.randFloat = fixedRand

	b.Next()
	b.Next()
	b.Reset()

	assert.Equal(t, 0, b.Attempts())
	assert.Equal(t, 1*time.Second, b.Next(), "after reset the pause starts from base again")
}

func TestBackoff_JitterBounds(t *testing.T) {
	b := NewBackoff(10*time.Second, time.Minute)

	// real randomness: pause must stay within ±20% of the nominal value
	pause := b.Next()
	assert.GreaterOrEqual(t, pause, 8*time.Second)
	assert.LessOrEqual(t, pause, 12*time.Second)
}
