package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/token-tracker/tokentracker/internal/ratelimit"

	log "github.com/sirupsen/logrus"
)

// RateLimitMiddleware gates every request through the fixed-window
// limiter, keyed by forwarded client address. It runs before
// authentication so unauthenticated floods are rejected cheaply.
func RateLimitMiddleware(manager *ratelimit.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if manager == nil {
			c.Next()
			return
		}

		key := ratelimit.SourceKey(c.Request)
		result, errAllow := manager.Allow(c.Request.Context(), key)
		if errAllow != nil {
			// Limiter trouble never blocks traffic.
			log.WithError(errAllow).Warn("rate limiter unavailable, allowing request")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(manager.Limit()))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.Reset.Unix(), 10))
		if !result.Allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}
