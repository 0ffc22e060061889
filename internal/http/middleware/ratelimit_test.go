package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

// fixedClock is a settable clock for RateLimiter.now.
type fixedClock struct{ t time.Time }

func (f *fixedClock) now() time.Time { return f.t }

func limitedRouter(rl *RateLimiter, pre ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(RequestID())
	r.Use(pre...)
	r.Use(rl.Handler())
	r.GET("/api/deals", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/api/deal/:ref/like", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func TestRateLimiter_BurstThen429(t *testing.T) {
	clk := &fixedClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(0.5, 2, KeyByClient())
	rl.now = clk.now
	r := limitedRouter(rl)

	for i := 0; i < 2; i++ {
		if w := serve(r, http.MethodGet, "/api/deals", nil); w.Code != http.StatusOK {
			t.Fatalf("request %d within burst: status %d", i, w.Code)
		}
	}
	w := serve(r, http.MethodGet, "/api/deals", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("over budget: status %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "2" {
		t.Fatalf("Retry-After = %q, want 2", w.Header().Get("Retry-After"))
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["code"] != codeRateLimited || body["request_id"] == "" {
		t.Fatalf("body = %v", body)
	}

	// The rejected reservation was returned, so one refill interval is enough.
	clk.t = clk.t.Add(2 * time.Second)
	if w := serve(r, http.MethodGet, "/api/deals", nil); w.Code != http.StatusOK {
		t.Fatalf("after refill: status %d", w.Code)
	}
}

func TestRateLimiter_ReadsAndWritesHaveSeparateBuckets(t *testing.T) {
	rl := NewRateLimiter(0.001, 1, KeyByClientAndMethodClass())
	r := limitedRouter(rl)

	if w := serve(r, http.MethodGet, "/api/deals", nil); w.Code != http.StatusOK {
		t.Fatalf("first read: %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/api/deals", nil); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second read: %d", w.Code)
	}
	if w := serve(r, http.MethodPost, "/api/deal/notion/like", nil); w.Code != http.StatusNoContent {
		t.Fatalf("write starved by reads: %d", w.Code)
	}
	if rl.size() != 2 {
		t.Fatalf("buckets = %d, want 2", rl.size())
	}
}

func TestRateLimiter_ReplayBypassesLimit(t *testing.T) {
	rl := NewRateLimiter(0.001, 1, KeyByClient())
	lookup := func(context.Context, string, string, string, time.Time) (bool, error) { return true, nil }
	r := limitedRouter(rl, IdempotencyValidator(IdempotencyOptions{}, lookup))

	for i := 0; i < 3; i++ {
		w := serve(r, http.MethodPost, "/api/deal/notion/like", nil, HeaderIdempotencyKey, "like-1")
		if w.Code != http.StatusNoContent {
			t.Fatalf("replay %d limited: %d", i, w.Code)
		}
	}
	if rl.size() != 0 {
		t.Fatalf("replays should not touch buckets, got %d", rl.size())
	}
}

func TestRateLimiter_SweepsIdleBuckets(t *testing.T) {
	clk := &fixedClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	byHeader := func(c *gin.Context) (string, string) { return c.GetHeader("X-Client"), "all" }
	rl := NewRateLimiter(10, 5, byHeader)
	rl.now = clk.now
	r := limitedRouter(rl)

	for _, id := range []string{"a", "b", "c"} {
		serve(r, http.MethodGet, "/api/deals", nil, "X-Client", id)
	}
	if rl.size() != 3 {
		t.Fatalf("buckets = %d, want 3", rl.size())
	}

	clk.t = clk.t.Add(5 * time.Minute)
	serve(r, http.MethodGet, "/api/deals", nil, "X-Client", "a")
	if rl.size() != 3 {
		t.Fatalf("swept before the idle window: %d", rl.size())
	}

	clk.t = clk.t.Add(11 * time.Minute)
	serve(r, http.MethodGet, "/api/deals", nil, "X-Client", "d")
	if rl.size() != 1 {
		t.Fatalf("idle buckets kept: %d", rl.size())
	}
}

func TestMethodClass(t *testing.T) {
	for m, want := range map[string]string{
		http.MethodGet: "read", http.MethodHead: "read", http.MethodOptions: "read",
		http.MethodPost: "write", http.MethodPut: "write", http.MethodDelete: "write",
	} {
		if got := methodClass(m); got != want {
			t.Fatalf("methodClass(%s) = %s", m, got)
		}
	}
}
