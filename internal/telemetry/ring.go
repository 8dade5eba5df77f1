// Package telemetry holds the in-process operational buffers: request metrics,
// the audit trail and the captured log lines. Every buffer is an owned value
// with its own lock; nothing here is a package-level singleton.
package telemetry

import "sync"

// Ring is a fixed-capacity FIFO that evicts the oldest element on overflow.
// It is safe for concurrent use.
type Ring[T any] struct {
	mu    sync.Mutex
	buf   []T
	start int
	size  int
}

// NewRing creates a Ring holding at most capacity elements. Capacity below 1 is raised to 1.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Append adds v, dropping the oldest element when full.
func (r *Ring[T]) Append(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appendLocked(v)
}

func (r *Ring[T]) appendLocked(v T) {
	idx := (r.start + r.size) % len(r.buf)
	r.buf[idx] = v
	if r.size < len(r.buf) {
		r.size++
		return
	}
	r.start = (r.start + 1) % len(r.buf)
}

// Last returns up to n of the newest elements, oldest first.
// n <= 0 returns an empty slice.
func (r *Ring[T]) Last(n int) []T {
	return r.LastMatching(n, nil)
}

// LastMatching filters the buffer with keep, then returns up to n of the newest
// matching elements, oldest first. A nil keep matches everything.
func (r *Ring[T]) LastMatching(n int, keep func(T) bool) []T {
	if n <= 0 {
		return []T{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	// walk newest to oldest so we can stop once n matches are found
	picked := make([]T, 0, min(n, r.size))
	for i := r.size - 1; i >= 0 && len(picked) < n; i-- {
		v := r.buf[(r.start+i)%len(r.buf)]
		if keep == nil || keep(v) {
			picked = append(picked, v)
		}
	}
	for i, j := 0, len(picked)-1; i < j; i, j = i+1, j-1 {
		picked[i], picked[j] = picked[j], picked[i]
	}
	return picked
}

// Len returns the number of stored elements.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Cap returns the capacity.
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

// Reset drops every element.
func (r *Ring[T]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.buf)
	r.start, r.size = 0, 0
}
