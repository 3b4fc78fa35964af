package fetch

import (
	"context"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostRateLimiter keeps one token bucket per host. Hosts with an override
// (geocoding services with a published usage policy) get their own rate;
// every other host shares the default rate.
type HostRateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*rate.Limiter
	overrides map[string]rate.Limit
	rate      rate.Limit
	burst     int
}

func NewHostRateLimiter(rps float64, burst int) *HostRateLimiter {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &HostRateLimiter{
		buckets:   make(map[string]*rate.Limiter),
		overrides: make(map[string]rate.Limit),
		rate:      rate.Limit(rps),
		burst:     burst,
	}
}

// Limit sets the rate for one host. Overrides apply to buckets created
// afterwards, and to an existing bucket immediately.
func (l *HostRateLimiter) Limit(host string, rps float64) {
	host = hostKey(host)
	if l == nil || host == "" || rps <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.overrides[host] = rate.Limit(rps)
	if b, ok := l.buckets[host]; ok {
		b.SetLimit(rate.Limit(rps))
	}
}

// Wait blocks until host may be contacted again or ctx ends.
func (l *HostRateLimiter) Wait(ctx context.Context, host string) error {
	host = hostKey(host)
	if l == nil || host == "" {
		return nil
	}
	return l.limiter(host).Wait(ctx)
}

func (l *HostRateLimiter) limiter(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[host]
	if !ok {
		limit := l.rate
		if override, ok := l.overrides[host]; ok {
			limit = override
		}
		b = rate.NewLimiter(limit, l.burst)
		l.buckets[host] = b
	}
	return b
}

// hostKey lower-cases host and drops a port.
func hostKey(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

// backoffDuration doubles base per attempt and adds up to base of jitter.
func backoffDuration(base time.Duration, attempt int, jitterFn func(max int64) int64) time.Duration {
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	if attempt < 0 {
		attempt = 0
	}
	backoff := base << attempt
	if jitterFn == nil {
		return backoff
	}
	jitter := time.Duration(jitterFn(int64(base)))
	if jitter < 0 {
		jitter = 0
	}
	return backoff + jitter
}
