package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/time/rate"

	"github.com/mmuslimabdulj/goat-dm/internal/metrics"
)

func newTestLimiter(t *testing.T, r rate.Limit, b int) *IPRateLimiter {
	t.Helper()
	l := NewIPRateLimiter("test", r, b)
	t.Cleanup(l.Stop)
	return l
}

func TestNewIPRateLimiter(t *testing.T) {
	limiter := newTestLimiter(t, 10, 20)

	if limiter.rate != 10 {
		t.Errorf("Expected rate 10, got %v", limiter.rate)
	}
	if limiter.burst != 20 {
		t.Errorf("Expected burst 20, got %d", limiter.burst)
	}
	if limiter.name != "test" {
		t.Errorf("Expected name test, got %s", limiter.name)
	}
}

func TestIPRateLimiter_GetLimiter(t *testing.T) {
	limiter := newTestLimiter(t, 10, 20)

	l1 := limiter.GetLimiter("192.168.1.1")
	if l1 == nil {
		t.Fatal("Expected limiter for IP")
	}

	// Same IP - should be the same instance
	if l2 := limiter.GetLimiter("192.168.1.1"); l1 != l2 {
		t.Error("Expected same limiter instance for same IP")
	}

	// Different IP - should be different
	if l3 := limiter.GetLimiter("192.168.1.2"); l1 == l3 {
		t.Error("Expected different limiter instance for different IP")
	}
}

func TestIPRateLimiter_Allow(t *testing.T) {
	limiter := newTestLimiter(t, 1, 2) // 1 per second, burst of 2
	ip := "192.168.1.1"

	if !limiter.Allow(ip) {
		t.Error("First request should be allowed")
	}
	if !limiter.Allow(ip) {
		t.Error("Second request should be allowed (within burst)")
	}
	if limiter.Allow(ip) {
		t.Error("Third request should be denied (burst exhausted)")
	}
}

func TestIPRateLimiter_AllowAfterWait(t *testing.T) {
	limiter := newTestLimiter(t, rate.Limit(10), 1)
	ip := "192.168.1.1"

	if !limiter.Allow(ip) {
		t.Error("First request should be allowed")
	}
	if limiter.Allow(ip) {
		t.Error("Immediate second request should be denied")
	}

	// Wait for token refill
	time.Sleep(150 * time.Millisecond)

	if !limiter.Allow(ip) {
		t.Error("Request after wait should be allowed")
	}
}

func TestIPRateLimiter_EvictIdle(t *testing.T) {
	limiter := newTestLimiter(t, 10, 1)
	limiter.GetLimiter("10.0.0.1")

	limiter.evictIdle(time.Now())
	if len(limiter.visitors) != 1 {
		t.Fatal("Recently seen visitor should be kept")
	}

	limiter.evictIdle(time.Now().Add(limiter.idle + time.Second))
	if len(limiter.visitors) != 0 {
		t.Error("Idle visitor should be evicted")
	}
}

func TestIPRateLimiter_Concurrency(t *testing.T) {
	limiter := newTestLimiter(t, 100, 100)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			limiter.Allow("192.168.1.1")
		}()
	}
	wg.Wait()
}

func TestIPRateLimiter_CountsRejections(t *testing.T) {
	limiter := NewIPRateLimiter("count-test", 1, 1)
	t.Cleanup(limiter.Stop)
	hits := metrics.RateLimitHits.WithLabelValues("count-test")
	before := testutil.ToFloat64(hits)

	limiter.Allow("10.0.0.9")
	limiter.Allow("10.0.0.9")
	limiter.Allow("10.0.0.9")

	if got := testutil.ToFloat64(hits) - before; got != 2 {
		t.Errorf("Expected 2 rejections counted, got %v", got)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := newTestLimiter(t, 1, 1)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rateLimited := RateLimitMiddleware(limiter)(handler)

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	w := httptest.NewRecorder()
	rateLimited.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("First request should be OK, got %d", w.Result().StatusCode)
	}

	// Same host, different source port
	req.RemoteAddr = "192.168.1.1:54321"
	w = httptest.NewRecorder()
	rateLimited.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusTooManyRequests {
		t.Errorf("Second request should be rate limited, got %d", w.Result().StatusCode)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON error, got %s", ct)
	}
}

func TestGetIP_RemoteAddr(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.168.1.1:12345"

	if ip := getIP(req); ip != "192.168.1.1" {
		t.Errorf("Expected host of RemoteAddr, got %s", ip)
	}
}

func TestGetIP_NoPort(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "1.2.3.4"

	if ip := getIP(req); ip != "1.2.3.4" {
		t.Errorf("Expected raw RemoteAddr, got %s", ip)
	}
}
