package admission

import (
	"context"
	"sync"
	"time"
)

// Limiter is a fixed-window request counter. Allow reports whether the
// caller identified by key may proceed given the per-window limit.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int) (bool, error)
}

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter keeps per-key fixed windows in process memory.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	size    time.Duration
	now     func() time.Time
}

// NewMemoryLimiter creates a limiter with the given window size.
func NewMemoryLimiter(size time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string]*window),
		size:    size,
		now:     time.Now,
	}
}

// Allow counts a request against key's current window. The first request in
// a window opens it; once count reaches limit, further requests are denied
// until the window resets.
func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.After(w.resetAt) {
		l.windows[key] = &window{count: 1, resetAt: now.Add(l.size)}
		return true, nil
	}

	if w.count >= limit {
		return false, nil
	}

	w.count++
	return true, nil
}

// Purge drops windows that have already reset, bounding memory under churn.
func (l *MemoryLimiter) Purge() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, w := range l.windows {
		if now.After(w.resetAt) {
			delete(l.windows, key)
		}
	}
}
