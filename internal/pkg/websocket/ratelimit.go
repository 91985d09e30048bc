package websocket

import (
	"sync"
	"time"
)

// EventLimiter enforces a fixed-window rate limit per user and event kind.
// State is process-local; each node limits its own connections.
type EventLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	buckets map[limiterKey]*window
	now     func() time.Time
}

type limiterKey struct {
	userID string
	event  string
}

type window struct {
	start time.Time
	count int
}

// NewEventLimiter creates a limiter allowing limit events per window
func NewEventLimiter(limit int, windowDur time.Duration) *EventLimiter {
	if limit <= 0 {
		limit = 10
	}
	if windowDur <= 0 {
		windowDur = 10 * time.Second
	}
	return &EventLimiter{
		limit:   limit,
		window:  windowDur,
		buckets: make(map[limiterKey]*window),
		now:     time.Now,
	}
}

// Allow reports whether the user may emit another event of this kind
func (l *EventLimiter) Allow(userID, event string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	key := limiterKey{userID: userID, event: event}

	b, ok := l.buckets[key]
	if !ok || now.Sub(b.start) >= l.window {
		l.buckets[key] = &window{start: now, count: 1}
		return true
	}

	if b.count >= l.limit {
		return false
	}
	b.count++
	return true
}

// Forget drops all buckets for a user, called when their last connection closes
func (l *EventLimiter) Forget(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key := range l.buckets {
		if key.userID == userID {
			delete(l.buckets, key)
		}
	}
}
