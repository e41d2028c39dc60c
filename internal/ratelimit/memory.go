package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	start time.Time
	count int
}

// MemoryLimiter keeps windows in a mutex-guarded map. Entries are
// created lazily on first sight of a principal and swept once they have
// been idle for a full window.
type MemoryLimiter struct {
	limit  int
	period time.Duration
	now    func() time.Time

	mu        sync.Mutex
	windows   map[string]*window
	lastSweep time.Time
}

func NewMemoryLimiter(limit int, period time.Duration) *MemoryLimiter {
	if limit <= 0 {
		limit = 10
	}
	if period <= 0 {
		period = time.Minute
	}
	return &MemoryLimiter{
		limit:   limit,
		period:  period,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

func (l *MemoryLimiter) Admit(ctx context.Context, principal string) (Decision, error) {
	_ = ctx

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweepLocked(now)

	w, ok := l.windows[principal]
	if !ok {
		w = &window{start: now}
		l.windows[principal] = w
	}
	if now.Sub(w.start) >= l.period {
		w.start = now
		w.count = 0
	}

	w.count++
	if w.count <= l.limit {
		return Decision{Allowed: true}, nil
	}

	retryAfter := l.period - now.Sub(w.start)
	if retryAfter <= 0 {
		retryAfter = time.Millisecond
	}
	return Decision{Allowed: false, RetryAfter: retryAfter}, nil
}

// sweepLocked drops windows idle long enough that they cannot influence
// any future decision. Runs at most once per period.
func (l *MemoryLimiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < l.period {
		return
	}
	l.lastSweep = now
	for p, w := range l.windows {
		if now.Sub(w.start) >= 2*l.period {
			delete(l.windows, p)
		}
	}
}
