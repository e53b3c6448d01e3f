package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_AllowsWithinLimit(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("user-1"), "request %d should be allowed", i)
	}
	assert.False(t, rl.Allow("user-1"), "fourth request should be throttled")
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)

	assert.True(t, rl.Allow("user-1"))
	assert.False(t, rl.Allow("user-1"))
	assert.True(t, rl.Allow("user-2"))
}

func TestRateLimiter_Reset(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)

	assert.True(t, rl.Allow("user-1"))
	assert.False(t, rl.Allow("user-1"))

	rl.Reset("user-1")
	assert.True(t, rl.Allow("user-1"))
}

func TestRateLimiter_RefillsOverTime(t *testing.T) {
	rl := NewRateLimiter(2, 100*time.Millisecond)

	assert.True(t, rl.Allow("user-1"))
	assert.True(t, rl.Allow("user-1"))
	assert.False(t, rl.Allow("user-1"))

	time.Sleep(120 * time.Millisecond)
	assert.True(t, rl.Allow("user-1"), "bucket should refill after the period")
}

func TestRateLimiter_Limits(t *testing.T) {
	rl := NewRateLimiter(5, time.Minute)

	rl.Allow("user-1")
	rl.Allow("user-1")

	remaining, limit := rl.Limits("user-1")
	assert.Equal(t, 3, remaining)
	assert.Equal(t, 5, limit)
}
