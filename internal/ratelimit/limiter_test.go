package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiterAllowsUpToMaxAttemptsThenBlocks(t *testing.T) {
	l := New(3, time.Minute)

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
}

func TestLimiterTracksKeysIndependently(t *testing.T) {
	l := New(1, time.Minute)

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))
	assert.False(t, l.Allow("a"))
}

func TestLimiterExpiresOldAttempts(t *testing.T) {
	l := New(1, -time.Nanosecond)

	assert.True(t, l.Allow("a"))
	// The window has already elapsed by the time of the next call, so
	// the first attempt no longer counts against the limit.
	assert.True(t, l.Allow("a"))
}

func TestLimiterRemainingReflectsUsage(t *testing.T) {
	l := New(2, time.Minute)

	assert.Equal(t, 2, l.Remaining("a"))
	l.Allow("a")
	assert.Equal(t, 1, l.Remaining("a"))
	l.Allow("a")
	assert.Equal(t, 0, l.Remaining("a"))
}

func TestLimiterResetClearsAttempts(t *testing.T) {
	l := New(1, time.Minute)

	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))

	l.Reset("a")
	assert.True(t, l.Allow("a"))
}
