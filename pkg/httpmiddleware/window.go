package httpmiddleware

import (
	"context"
	"sync"
	"time"
)

// WindowLimiter is an in-process sliding window counter. The previous
// window's count is weighted by how much of it still overlaps the sliding
// window ending now.
type WindowLimiter struct {
	max    int
	window time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	prev      float64
	curr      float64
	currStart time.Time
}

// NewWindowLimiter allows limit requests per window and key.
func NewWindowLimiter(limit int, window time.Duration) *WindowLimiter {
	return &WindowLimiter{max: limit, window: window, buckets: map[string]*bucket{}}
}

func (l *WindowLimiter) Allow(_ context.Context, key string, now time.Time) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{currStart: now.Truncate(l.window)}
		l.buckets[key] = b
	}
	if elapsed := now.Sub(b.currStart); elapsed >= l.window {
		b.prev = b.curr
		if elapsed >= 2*l.window {
			b.prev = 0
		}
		b.curr = 0
		b.currStart = now.Truncate(l.window)
	}

	overlap := 1 - now.Sub(b.currStart).Seconds()/l.window.Seconds()
	used := b.prev*max(overlap, 0) + b.curr
	d := Decision{ResetAt: b.currStart.Add(l.window)}
	if used >= float64(l.max) {
		return d, nil
	}

	b.curr++
	d.Allowed = true
	d.Remaining = max(int(float64(l.max)-used-1), 0)
	return d, nil
}

// Sweep drops buckets idle for two windows.
func (l *WindowLimiter) Sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, b := range l.buckets {
		if now.Sub(b.currStart) >= 2*l.window {
			delete(l.buckets, k)
		}
	}
}

// RunSweeper calls Sweep every two windows until ctx is done.
func (l *WindowLimiter) RunSweeper(ctx context.Context) {
	t := time.NewTicker(2 * l.window)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			l.Sweep(now)
		}
	}
}
