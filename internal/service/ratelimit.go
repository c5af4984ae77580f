package service

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// callerLimiter tracks a per-caller rate limiter and when it was last seen.
// lastSeen holds unix nanos and is atomic: Allow updates it concurrently
// with the sweeper's reads.
type callerLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

// CallerLimiter enforces a per-caller token-bucket rate limit. Stale
// per-caller buckets are swept in the background until Close is called.
type CallerLimiter struct {
	rps     rate.Limit
	burst   int
	callers sync.Map // map[string]*callerLimiter
	stop    chan struct{}
	once    sync.Once
}

// NewCallerLimiter creates a limiter granting rps sustained queries per
// second with the given burst per caller.
func NewCallerLimiter(rps float64, burst int) *CallerLimiter {
	l := &CallerLimiter{rps: rate.Limit(rps), burst: burst, stop: make(chan struct{})}
	go l.sweep()
	return l
}

// Allow reports whether the caller may proceed now. It never waits.
func (l *CallerLimiter) Allow(caller string) bool {
	return l.get(caller).Allow()
}

func (l *CallerLimiter) get(caller string) *rate.Limiter {
	if v, ok := l.callers.Load(caller); ok {
		cl := v.(*callerLimiter)
		cl.lastSeen.Store(time.Now().UnixNano())
		return cl.limiter
	}
	cl := &callerLimiter{limiter: rate.NewLimiter(l.rps, l.burst)}
	cl.lastSeen.Store(time.Now().UnixNano())
	if existing, loaded := l.callers.LoadOrStore(caller, cl); loaded {
		return existing.(*callerLimiter).limiter
	}
	return cl.limiter
}

// sweep removes buckets for callers idle longer than ten minutes.
func (l *CallerLimiter) sweep() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-10 * time.Minute).UnixNano()
			l.callers.Range(func(key, value any) bool {
				if value.(*callerLimiter).lastSeen.Load() < cutoff {
					l.callers.Delete(key)
				}
				return true
			})
		}
	}
}

// Close stops the background sweeper.
func (l *CallerLimiter) Close() {
	l.once.Do(func() { close(l.stop) })
}
