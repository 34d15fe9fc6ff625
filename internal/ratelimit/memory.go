package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is a per-process fixed-window fallback used when no
// Redis address is configured. Good enough for a single instance.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

type window struct {
	count int
	start time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		windows: map[string]*window{},
		now:     time.Now,
	}
}

func (m *MemoryLimiter) Allow(ctx context.Context, key string, rate float64, burst int) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// The window spans the time one full burst takes to refill.
	span := time.Duration(float64(burst) / rate * float64(time.Second))
	if span < time.Second {
		span = time.Second
	}

	now := m.now()
	w, ok := m.windows[key]
	if !ok || now.Sub(w.start) >= span {
		w = &window{start: now}
		m.windows[key] = w
	}

	if w.count >= burst {
		return &Result{
			Allowed:    false,
			RetryAfter: w.start.Add(span).Sub(now),
		}, nil
	}
	w.count++

	if len(m.windows) > 10000 {
		m.evictExpired(now, span)
	}
	return &Result{Allowed: true, Remaining: burst - w.count}, nil
}

func (m *MemoryLimiter) evictExpired(now time.Time, span time.Duration) {
	for key, w := range m.windows {
		if now.Sub(w.start) >= span {
			delete(m.windows, key)
		}
	}
}
