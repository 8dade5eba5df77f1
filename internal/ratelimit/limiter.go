// Package ratelimit implements per-(client, path) sliding window admission control.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrRateLimited is returned by Check when the window for a key is full.
var ErrRateLimited = errors.New("rate limit exceeded")

// FallbackClient is the client identity used when the caller address is unknown.
// All such callers share one bucket per path.
const FallbackClient = "unknown"

// Key identifies one sliding window.
type Key struct {
	Client string
	Path   string
}

// Limiter admits at most max requests per key within any trailing window.
type Limiter struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	windows map[Key]*windowState
}

// windowState holds the admitted timestamps of one key in non-decreasing order.
type windowState struct {
	mu   sync.Mutex
	hits []time.Time
	dead bool
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(fn func() time.Time) Option {
	return func(l *Limiter) {
		if fn != nil {
			l.now = fn
		}
	}
}

// New creates a Limiter admitting max requests per window for every key.
func New(max int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		max:     max,
		window:  window,
		now:     time.Now,
		windows: make(map[Key]*windowState),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Max returns the number of requests admitted per window.
func (l *Limiter) Max() int { return l.max }

// Window returns the window length.
func (l *Limiter) Window() time.Duration { return l.window }

// Allow records and admits a request for (client, path) unless the window is full.
// Rejected requests are not recorded.
func (l *Limiter) Allow(client, path string) bool {
	if client == "" {
		client = FallbackClient
	}
	key := Key{Client: client, Path: path}
	for {
		ws := l.getOrCreate(key)
		ws.mu.Lock()
		if ws.dead {
			// swept between lookup and lock
			ws.mu.Unlock()
			continue
		}
		now := l.now()
		if n := len(ws.hits); n > 0 && now.Before(ws.hits[n-1]) {
			now = ws.hits[n-1]
		}
		ws.purge(now.Add(-l.window))
		if len(ws.hits) >= l.max {
			ws.mu.Unlock()
			return false
		}
		ws.hits = append(ws.hits, now)
		ws.mu.Unlock()
		return true
	}
}

// Check is Allow returning ErrRateLimited on rejection.
func (l *Limiter) Check(client, path string) error {
	if !l.Allow(client, path) {
		return ErrRateLimited
	}
	return nil
}

// Sweep drops keys whose window holds no recent request and returns how many were dropped.
// A dropped key behaves exactly like one never seen, so admission is unaffected.
func (l *Limiter) Sweep() int {
	cutoff := l.now().Add(-l.window)
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, ws := range l.windows {
		ws.mu.Lock()
		ws.purge(cutoff)
		if len(ws.hits) == 0 {
			ws.dead = true
			delete(l.windows, key)
			removed++
		}
		ws.mu.Unlock()
	}
	return removed
}

// Run sweeps idle keys every interval until ctx is done.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = l.window
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				log.Debug().Str("logger", "ratelimit").Int("removed", n).Int("active", l.Len()).Msg("swept idle windows")
			}
		}
	}
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.windows)
}

// Reset forgets every window.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ws := range l.windows {
		ws.mu.Lock()
		ws.dead = true
		ws.mu.Unlock()
	}
	l.windows = make(map[Key]*windowState)
}

func (l *Limiter) getOrCreate(key Key) *windowState {
	l.mu.RLock()
	ws, ok := l.windows[key]
	l.mu.RUnlock()
	if ok {
		return ws
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if ws, ok := l.windows[key]; ok {
		return ws
	}
	ws = &windowState{}
	l.windows[key] = ws
	return ws
}

// purge removes hits strictly older than cutoff.
func (ws *windowState) purge(cutoff time.Time) {
	i := 0
	for i < len(ws.hits) && ws.hits[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		ws.hits = append(ws.hits[:0], ws.hits[i:]...)
	}
}
