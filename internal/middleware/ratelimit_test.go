package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestRateLimiterMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return fixed }

	r := gin.New()
	r.Use(rl.Middleware())
	r.POST("/api/buy", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/buy", http.NoBody)
		req.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	t.Run("burst_then_reject", func(t *testing.T) {
		if got := send("10.0.0.1"); got != http.StatusOK {
			t.Fatalf("first request: %d", got)
		}
		if got := send("10.0.0.1"); got != http.StatusOK {
			t.Fatalf("second request: %d", got)
		}
		if got := send("10.0.0.1"); got != http.StatusTooManyRequests {
			t.Errorf("third request = %d, want 429", got)
		}
	})

	t.Run("other_clients_unaffected", func(t *testing.T) {
		if got := send("10.0.0.2"); got != http.StatusOK {
			t.Errorf("status = %d, want 200", got)
		}
	})

	t.Run("refills_over_time", func(t *testing.T) {
		fixed = fixed.Add(time.Second)
		if got := send("10.0.0.1"); got != http.StatusOK {
			t.Errorf("status = %d, want 200", got)
		}
	})
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.allow("a")
	now = now.Add(2 * time.Minute)
	rl.allow("b")
	now = now.Add(2 * time.Minute)
	rl.Cleanup()

	if _, ok := rl.visitors["a"]; ok {
		t.Error("expected idle visitor to be removed")
	}
	if _, ok := rl.visitors["b"]; !ok {
		t.Error("expected recent visitor to be kept")
	}
}
