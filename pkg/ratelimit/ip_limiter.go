package ratelimit

import (
	"sync"
	"time"
)

// IPLimiter keeps one token bucket per client IP and evicts buckets that
// have been idle longer than the eviction window.
type IPLimiter struct {
	mu         sync.Mutex
	buckets    map[string]*ipBucket
	capacity   float64
	refillRate float64
	idleWindow time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
}

type ipBucket struct {
	bucket   *TokenBucket
	lastSeen time.Time
}

// NewIPLimiter creates a per-IP limiter. Buckets idle for more than
// idleWindow are evicted by a background sweep.
func NewIPLimiter(capacity, refillRate float64, idleWindow time.Duration) *IPLimiter {
	if idleWindow <= 0 {
		idleWindow = 10 * time.Minute
	}

	l := &IPLimiter{
		buckets:    make(map[string]*ipBucket),
		capacity:   capacity,
		refillRate: refillRate,
		idleWindow: idleWindow,
		stop:       make(chan struct{}),
	}

	go l.sweep()
	return l
}

// Allow consumes a token from the bucket for ip.
func (l *IPLimiter) Allow(ip string) bool {
	l.mu.Lock()
	entry, ok := l.buckets[ip]
	if !ok {
		entry = &ipBucket{bucket: NewTokenBucket(l.capacity, l.refillRate)}
		l.buckets[ip] = entry
	}
	entry.lastSeen = time.Now()
	l.mu.Unlock()

	return entry.bucket.Allow()
}

// Size returns the number of tracked IPs.
func (l *IPLimiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Stop terminates the background sweep.
func (l *IPLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *IPLimiter) sweep() {
	ticker := time.NewTicker(l.idleWindow / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-l.idleWindow)
			l.mu.Lock()
			for ip, entry := range l.buckets {
				if entry.lastSeen.Before(cutoff) {
					delete(l.buckets, ip)
				}
			}
			l.mu.Unlock()
		case <-l.stop:
			return
		}
	}
}
