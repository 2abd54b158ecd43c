package ratelimit

import (
	"net/http"
	"strings"
)

// UnknownSourceKey is used when no forwarded address is present. Callers
// behind proxies that do not set X-Forwarded-For share this bucket.
const UnknownSourceKey = "unknown"

// SourceKey derives the limiter key for a request: the first entry of the
// X-Forwarded-For header, or the unknown sentinel when absent.
func SourceKey(r *http.Request) string {
	if r == nil {
		return UnknownSourceKey
	}
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded == "" {
		return UnknownSourceKey
	}
	first := forwarded
	if idx := strings.Index(forwarded, ","); idx >= 0 {
		first = forwarded[:idx]
	}
	first = strings.TrimSpace(first)
	if first == "" {
		return UnknownSourceKey
	}
	return first
}
