package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// IPLimiter is a token bucket per client IP, used to throttle the
// unauthenticated auth endpoints as a whole.
type IPLimiter struct {
	limit rate.Limit
	burst int
	idle  time.Duration

	mu       sync.Mutex
	visitors map[string]*visitor
	clock    Clock
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewIPLimiter allows perMinute requests per IP with the given burst.
func NewIPLimiter(perMinute, burst int, clock Clock) *IPLimiter {
	if clock == nil {
		clock = realClock{}
	}
	return &IPLimiter{
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    burst,
		idle:     10 * time.Minute,
		visitors: make(map[string]*visitor),
		clock:    clock,
	}
}

// Allow consumes a token for ip. The second result is the wait before the
// next token when the request is refused.
func (l *IPLimiter) Allow(ip string) (bool, time.Duration) {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	v := l.visitors[ip]
	if v == nil {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now

	reservation := v.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return false, 0
	}
	delay := reservation.DelayFrom(now)
	if delay > 0 {
		reservation.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Prune drops visitors idle for longer than the idle window.
func (l *IPLimiter) Prune() {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.idle {
			delete(l.visitors, ip)
		}
	}
}
