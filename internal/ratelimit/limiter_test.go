package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
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

func TestLimiter_WindowAdmission(t *testing.T) {
	clock := newFakeClock()
	l := New(3, 60*time.Second, WithClock(clock.Now))

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("10.0.0.1", "/x"), "request %d should be admitted", i+1)
		clock.Advance(time.Second)
	}
	assert.False(t, l.Allow("10.0.0.1", "/x"), "4th request within the window must be rejected")
	assert.ErrorIs(t, l.Check("10.0.0.1", "/x"), ErrRateLimited)

	clock.Advance(61 * time.Second)
	assert.True(t, l.Allow("10.0.0.1", "/x"), "request after the window must be admitted")
}

func TestLimiter_RejectionsAreNotRecorded(t *testing.T) {
	clock := newFakeClock()
	l := New(1, 10*time.Second, WithClock(clock.Now))

	require.True(t, l.Allow("c", "/p"))
	for i := 0; i < 5; i++ {
		clock.Advance(time.Second)
		require.False(t, l.Allow("c", "/p"))
	}
	// first hit at t=0 leaves the window at t=10s; rejected attempts at t=1..5 must not extend it
	clock.Advance(5*time.Second + time.Millisecond)
	assert.True(t, l.Allow("c", "/p"))
}

func TestLimiter_SlidingNotFixed(t *testing.T) {
	clock := newFakeClock()
	l := New(2, 10*time.Second, WithClock(clock.Now))

	require.True(t, l.Allow("c", "/p")) // t=0
	clock.Advance(6 * time.Second)
	require.True(t, l.Allow("c", "/p")) // t=6
	clock.Advance(5 * time.Second)
	assert.True(t, l.Allow("c", "/p"), "t=11: the t=0 hit has left the window")
	assert.False(t, l.Allow("c", "/p"), "t=11: hits at 6 and 11 fill the window")
}

func TestLimiter_BoundaryEntryIsKept(t *testing.T) {
	clock := newFakeClock()
	l := New(1, 10*time.Second, WithClock(clock.Now))

	require.True(t, l.Allow("c", "/p"))
	clock.Advance(10 * time.Second)
	assert.False(t, l.Allow("c", "/p"), "an entry exactly window old is not purged")
	clock.Advance(time.Nanosecond)
	assert.True(t, l.Allow("c", "/p"))
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l := New(1, time.Minute)

	assert.True(t, l.Allow("a", "/x"))
	assert.False(t, l.Allow("a", "/x"))
	assert.True(t, l.Allow("a", "/y"), "different path is a different key")
	assert.True(t, l.Allow("b", "/x"), "different client is a different key")
	assert.Equal(t, 3, l.Len())
}

func TestLimiter_FallbackClientSharesBucket(t *testing.T) {
	l := New(1, time.Minute)

	assert.True(t, l.Allow("", "/x"))
	assert.False(t, l.Allow(FallbackClient, "/x"))
}

func TestLimiter_ClockGoingBackwardsKeepsOrder(t *testing.T) {
	clock := newFakeClock()
	l := New(2, 10*time.Second, WithClock(clock.Now))

	require.True(t, l.Allow("c", "/p"))
	clock.Advance(-5 * time.Second)
	require.True(t, l.Allow("c", "/p"))

	l.mu.RLock()
	ws := l.windows[Key{Client: "c", Path: "/p"}]
	l.mu.RUnlock()
	ws.mu.Lock()
	defer ws.mu.Unlock()
	for i := 1; i < len(ws.hits); i++ {
		assert.False(t, ws.hits[i].Before(ws.hits[i-1]), "hits must be non-decreasing")
	}
}

func TestLimiter_SweepDropsIdleKeysOnly(t *testing.T) {
	clock := newFakeClock()
	l := New(2, 10*time.Second, WithClock(clock.Now))

	l.Allow("idle", "/p")
	clock.Advance(8 * time.Second)
	l.Allow("busy", "/p")
	clock.Advance(3 * time.Second)

	assert.Equal(t, 1, l.Sweep())
	assert.Equal(t, 1, l.Len())

	// busy still has its hit from t=8
	assert.True(t, l.Allow("busy", "/p"))
	assert.False(t, l.Allow("busy", "/p"))
}

func TestLimiter_SweepDoesNotChangeDecisions(t *testing.T) {
	clock := newFakeClock()
	swept := New(1, 10*time.Second, WithClock(clock.Now))
	plain := New(1, 10*time.Second, WithClock(clock.Now))

	for step := 0; step < 40; step++ {
		if step%3 == 0 {
			swept.Sweep()
		}
		assert.Equal(t, plain.Allow("c", "/p"), swept.Allow("c", "/p"), "step %d", step)
		clock.Advance(4 * time.Second)
	}
}

func TestLimiter_Reset(t *testing.T) {
	l := New(1, time.Minute)
	l.Allow("c", "/p")
	l.Reset()
	assert.Equal(t, 0, l.Len())
	assert.True(t, l.Allow("c", "/p"))
}

func TestLimiter_ConcurrentAdmissionsNeverExceedMax(t *testing.T) {
	l := New(50, time.Minute)

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("c", "/p") {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), admitted.Load())
}

func TestLimiter_ConcurrentSweep(t *testing.T) {
	l := New(1000, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx, time.Millisecond)

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 500; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("c", "/p") {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()
	// every hit is recent, so no sweep may lose one
	assert.Equal(t, int64(500), admitted.Load())
	l.mu.RLock()
	ws := l.windows[Key{Client: "c", Path: "/p"}]
	l.mu.RUnlock()
	require.NotNil(t, ws)
	ws.mu.Lock()
	assert.Len(t, ws.hits, 500)
	ws.mu.Unlock()
}
