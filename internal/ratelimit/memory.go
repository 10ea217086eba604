package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultMaxKeys bounds the number of tracked keys in MemoryLimiter.
const DefaultMaxKeys = 10000

// ErrCapacity is returned when MemoryLimiter tracks too many live keys.
var ErrCapacity = errors.New("ratelimit: capacity exceeded")

type window struct {
	count int
	end   time.Time
}

// MemoryLimiter is a single-process fixed-window limiter.
type MemoryLimiter struct {
	mu      sync.Mutex
	now     func() time.Time
	windows map[string]*window
	maxKeys int
}

// NewMemoryLimiter returns a MemoryLimiter. now may be nil; maxKeys <= 0
// selects DefaultMaxKeys.
func NewMemoryLimiter(now func() time.Time, maxKeys int) *MemoryLimiter {
	if now == nil {
		now = time.Now
	}
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	return &MemoryLimiter{now: now, windows: make(map[string]*window), maxKeys: maxKeys}
}

// Allow records a hit for key.
func (m *MemoryLimiter) Allow(_ context.Context, key string, limit int, period time.Duration) (Decision, error) {
	if limit <= 0 {
		return Decision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if !ok || !now.Before(w.end) {
		if !ok && len(m.windows) >= m.maxKeys {
			m.sweep(now)
			if len(m.windows) >= m.maxKeys {
				return Decision{}, ErrCapacity
			}
		}
		w = &window{end: now.Add(period)}
		m.windows[key] = w
	}

	w.count++
	return Decision{
		Allowed:   w.count <= limit,
		Limit:     limit,
		Remaining: max(limit-w.count, 0),
		ResetAt:   w.end,
	}, nil
}

func (m *MemoryLimiter) sweep(now time.Time) {
	for k, w := range m.windows {
		if !now.Before(w.end) {
			delete(m.windows, k)
		}
	}
}
