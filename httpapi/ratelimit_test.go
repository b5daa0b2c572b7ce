package httpapi

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestRateLimiterRefillsOverTime(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerMinute: 60, Burst: 2}, WithRateLimiterClock(clock.Now))
	defer rl.Stop()

	assert.True(t, rl.Allow("client"))
	assert.True(t, rl.Allow("client"))
	assert.False(t, rl.Allow("client"))
	assert.True(t, rl.Allow("other"))

	clock.Advance(time.Second)
	assert.True(t, rl.Allow("client"))
	assert.False(t, rl.Allow("client"))
}

func TestRateLimiterCleanupDropsIdleClients(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(RateLimiterConfig{CleanupInterval: time.Minute}, WithRateLimiterClock(clock.Now))
	defer rl.Stop()

	rl.Allow("idle")
	clock.Advance(90 * time.Second)
	rl.Allow("busy")
	assert.Equal(t, 2, rl.Len())

	clock.Advance(60 * time.Second)
	rl.Cleanup()
	assert.Equal(t, 1, rl.Len())

	rl.Stop()
	rl.Stop()
}

func TestStatusForUnknownError(t *testing.T) {
	assert.Equal(t, 500, StatusFor(assert.AnError))
}
