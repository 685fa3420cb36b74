package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// fakeClock is a controllable time source for deterministic tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(rate int, window time.Duration) (*Limiter, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	l := New(rate, window)
	l.now = clock.Now
	return l, clock
}

func TestAllowPerKey(t *testing.T) {
	l, _ := newTestLimiter(2, time.Hour)

	for i := 0; i < 2; i++ {
		if !l.Allow("team-a") {
			t.Fatalf("send %d should be allowed", i+1)
		}
	}
	if l.Allow("team-a") {
		t.Fatal("third send should be denied")
	}
	if !l.Allow("team-b") {
		t.Fatal("another team has its own bucket")
	}
}

func TestRefill(t *testing.T) {
	// 60 per minute is one token per second.
	l, clock := newTestLimiter(60, time.Minute)
	for i := 0; i < 60; i++ {
		l.Allow("k")
	}
	if l.Allow("k") {
		t.Fatal("should be denied once exhausted")
	}

	clock.Advance(3 * time.Second)
	for i := 0; i < 3; i++ {
		if !l.Allow("k") {
			t.Fatalf("refilled token %d should be allowed", i+1)
		}
	}
	if l.Allow("k") {
		t.Fatal("should be denied after spending the refill")
	}

	clock.Advance(time.Hour)
	if q := l.Status("k"); q.Remaining != 60 {
		t.Fatalf("remaining should cap at 60, got %d", q.Remaining)
	}
}

func TestDisabled(t *testing.T) {
	l, _ := newTestLimiter(0, time.Minute)
	for i := 0; i < 100; i++ {
		if !l.Allow("k") {
			t.Fatal("a zero rate never denies")
		}
	}
	if l.Len() != 0 {
		t.Fatal("a disabled limiter tracks no keys")
	}
}

func TestStatus(t *testing.T) {
	l, clock := newTestLimiter(10, time.Minute)

	if q := l.Status("s"); q.Limit != 10 || q.Remaining != 10 || !q.ResetAt.Equal(clock.Now()) {
		t.Fatalf("fresh bucket: %+v", q)
	}
	l.Allow("s")
	l.Allow("s")
	l.Allow("s")

	q := l.Status("s")
	if q.Remaining != 7 {
		t.Fatalf("expected 7 remaining, got %d", q.Remaining)
	}
	// Three tokens at one per six seconds.
	if want := clock.Now().Add(18 * time.Second); !q.ResetAt.Equal(want) {
		t.Fatalf("resetAt = %v, want %v", q.ResetAt, want)
	}
}

func TestSweep(t *testing.T) {
	l, clock := newTestLimiter(5, time.Minute)
	l.Allow("busy")
	l.Status("idle")

	if n := l.Sweep(); n != 1 {
		t.Fatalf("expected the full bucket swept, got %d", n)
	}
	clock.Advance(time.Minute)
	if n := l.Sweep(); n != 1 || l.Len() != 0 {
		t.Fatalf("refilled bucket should be swept, got %d, %d left", n, l.Len())
	}
}

func TestConcurrentAccess(t *testing.T) {
	l, _ := newTestLimiter(100, time.Minute)

	var wg sync.WaitGroup
	allowed := make(chan bool, 200)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed <- l.Allow("concurrent")
		}()
	}
	wg.Wait()
	close(allowed)

	count := 0
	for ok := range allowed {
		if ok {
			count++
		}
	}
	if count != 100 {
		t.Fatalf("expected exactly 100 allowed, got %d", count)
	}
}

func TestMiddleware(t *testing.T) {
	l, _ := newTestLimiter(1, time.Hour)
	rejected := 0
	h := Middleware(l, ClientIP, func() { rejected++ })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/invite/send-invitation", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := send("10.0.0.1:5000"); rec.Code != http.StatusOK {
		t.Fatalf("first request: status %d", rec.Code)
	} else if rec.Header().Get("X-RateLimit-Limit") != "1" {
		t.Fatalf("missing limit header: %v", rec.Header())
	}

	rec := send("10.0.0.1:6000")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("same host should be limited, got %d", rec.Code)
	}
	var body struct {
		Error struct{ Code string } `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || body.Error.Code != "rate_limited" {
		t.Fatalf("unexpected body %q: %v", rec.Body.String(), err)
	}
	if rejected != 1 {
		t.Fatalf("onReject called %d times", rejected)
	}

	if rec := send("10.0.0.2:5000"); rec.Code != http.StatusOK {
		t.Fatalf("other host: status %d", rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remote, want string
	}{
		{"192.0.2.1:1234", "192.0.2.1"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"192.0.2.1", "192.0.2.1"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = tt.remote
		if got := ClientIP(r); got != tt.want {
			t.Errorf("ClientIP(%q) = %q, want %q", tt.remote, got, tt.want)
		}
	}
}
