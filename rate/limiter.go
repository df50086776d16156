// Package rate keeps one token bucket per client so that a single
// caller hammering the login endpoint cannot exhaust it for everyone.
package rate

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter hands out a token bucket per client id and forgets clients
// that have been quiet long enough.
type Limiter struct {
	burst  int
	rps    float64
	expiry time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewLimiter builds a limiter allowing limitRPS requests per second
// with the given burst. Buckets idle for expiry minutes are dropped.
func NewLimiter(burst int, expiry int, limitRPS float64) *Limiter {
	l := &Limiter{
		burst:   burst,
		rps:     limitRPS,
		expiry:  time.Duration(expiry) * time.Minute,
		buckets: make(map[string]*bucket),
	}
	go l.sweep()
	return l
}

// Check reports whether the client identified by id may proceed.
func (l *Limiter) Check(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[id]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Limit(l.rps), l.burst)}
		l.buckets[id] = b
	}
	b.seen = time.Now()
	return b.lim.Allow()
}

func (l *Limiter) sweep() {
	tick := time.NewTicker(time.Minute)
	defer tick.Stop()

	for range tick.C {
		l.mu.Lock()
		for id, b := range l.buckets {
			if time.Since(b.seen) > l.expiry {
				delete(l.buckets, id)
			}
		}
		l.mu.Unlock()
	}
}

// Every converts a minimum interval between requests into the rps form
// NewLimiter takes.
func Every(interval time.Duration) float64 {
	return float64(rate.Every(interval))
}
