package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/token-tracker/tokentracker/internal/config"
	"github.com/token-tracker/tokentracker/internal/ratelimit"
)

func testEngine(limit int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	manager := ratelimit.NewManager(config.RateLimitConfig{
		Limit:  limit,
		Window: time.Minute,
	}, nil, nil)
	engine := gin.New()
	engine.Use(RateLimitMiddleware(manager))
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return engine
}

func TestRateLimitMiddlewareRejectsOverLimit(t *testing.T) {
	engine := testEngine(2)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.7")
		engine.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, w.Code)
		}
		if w.Header().Get("X-RateLimit-Remaining") == "" {
			t.Fatalf("missing X-RateLimit-Remaining header")
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	engine.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}

	var resp struct {
		Error string `json:"error"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if resp.Error != "Too many requests" {
		t.Fatalf("unexpected error message %q", resp.Error)
	}
	if w.Header().Get("X-RateLimit-Reset") == "" {
		t.Fatalf("missing X-RateLimit-Reset header")
	}
}

func TestRateLimitMiddlewareKeysByForwardedAddress(t *testing.T) {
	engine := testEngine(1)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.1")
	engine.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	// Same address is exhausted, a different one is not.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.1")
	engine.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for exhausted address, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.2")
	engine.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for fresh address, got %d", w.Code)
	}
}
