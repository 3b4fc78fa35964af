package fetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func testFetcher(retries int) *HTTPFetcher {
	return NewWithConfig(slog.New(slog.NewTextHandler(io.Discard, nil)), Config{
		Retries:      retries,
		BaseBackoff:  time.Millisecond,
		MaxBackoff:   5 * time.Millisecond,
		RateLimitRPS: 1000,
		RateBurst:    10,
		MaxBodyBytes: 16,
	})
}

func TestGetRetriesTransientStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.UserAgent() != DefaultUserAgent {
			t.Errorf("unexpected user agent: %q", r.UserAgent())
		}
		if got := r.Header.Get("X-Test"); got != "yes" {
			t.Errorf("unexpected X-Test header: %q", got)
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	body, status, err := testFetcher(2).Get(context.Background(), srv.URL, map[string]string{"X-Test": "yes", "": "skip"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != http.StatusOK || string(body) != "ok" {
		t.Fatalf("unexpected response: %d %q", status, body)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 calls, got %d", got)
	}
}

func TestGetReturnsLastStatusWhenRetriesExhausted(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, status, err := testFetcher(1).Get(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", status)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected 2 calls, got %d", got)
	}
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, status, err := testFetcher(3).Get(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected 1 call, got %d", got)
	}
}

func TestGetLimitsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("0123456789abcdefghijklmnop"))
	}))
	defer srv.Close()

	body, _, err := testFetcher(0).Get(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(body) != 16 {
		t.Fatalf("expected 16 bytes, got %d", len(body))
	}
}

func TestGetCanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("late"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := testFetcher(2).Get(ctx, srv.URL, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestIsTransientError(t *testing.T) {
	ctx := context.Background()
	if isTransientError(ctx, nil) {
		t.Fatalf("nil error should not be transient")
	}
	if !isTransientError(ctx, context.DeadlineExceeded) {
		t.Fatalf("deadline exceeded should be transient")
	}
	if isTransientError(ctx, io.EOF) {
		t.Fatalf("EOF should not be transient")
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if isTransientError(canceled, context.DeadlineExceeded) {
		t.Fatalf("errors after cancellation should not be transient")
	}
}

func TestBackoffDuration(t *testing.T) {
	noJitter := func(int64) int64 { return 0 }
	maxJitter := func(max int64) int64 { return max }
	cases := []struct {
		base    time.Duration
		attempt int
		jitter  func(int64) int64
		want    time.Duration
	}{
		{100 * time.Millisecond, 0, noJitter, 100 * time.Millisecond},
		{100 * time.Millisecond, 2, noJitter, 400 * time.Millisecond},
		{0, 0, nil, 200 * time.Millisecond},
		{100 * time.Millisecond, 0, maxJitter, 200 * time.Millisecond},
	}
	for _, tc := range cases {
		if got := backoffDuration(tc.base, tc.attempt, tc.jitter); got != tc.want {
			t.Fatalf("backoffDuration(%v, %d) = %v, want %v", tc.base, tc.attempt, got, tc.want)
		}
	}
}

func TestHostRateLimiterPerHost(t *testing.T) {
	l := NewHostRateLimiter(1, 1)
	if l.limiter("a.example") != l.limiter("a.example") {
		t.Fatalf("expected the same limiter for one host")
	}
	if l.limiter("a.example") == l.limiter("b.example") {
		t.Fatalf("expected separate limiters per host")
	}
	if l.limiter("a.example") != l.limiter(hostKey("A.Example:443")) {
		t.Fatalf("expected host keys to ignore case and port")
	}
	var nilLimiter *HostRateLimiter
	if err := nilLimiter.Wait(context.Background(), "x"); err != nil {
		t.Fatalf("nil limiter should not block: %v", err)
	}
}

func TestHostRateLimiterOverrides(t *testing.T) {
	l := NewHostRateLimiter(5, 1)
	existing := l.limiter("geo.example")
	l.Limit("GEO.example", 0.5)
	l.Limit("nominatim.example:443", 1)
	l.Limit("ignored.example", 0)

	cases := []struct {
		name string
		got  rate.Limit
		want rate.Limit
	}{
		{"existing", existing.Limit(), 0.5},
		{"override", l.limiter("nominatim.example").Limit(), 1},
		{"zero ignored", l.limiter("ignored.example").Limit(), 5},
		{"default", l.limiter("other.example").Limit(), 5},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Fatalf("%s: limit %v, want %v", tc.name, tc.got, tc.want)
		}
	}
}
