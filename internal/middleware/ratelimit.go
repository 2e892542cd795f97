package middleware

import (
	"encoding/json"
	"net"
	"net/http"

	"rul-pipeline/internal/common/logging"
)

// KeyLimiter decides whether a request for a client key may proceed.
type KeyLimiter interface {
	Allow(key string) bool
}

// RateLimit rejects requests over the client's rate with 429.
// Clients are keyed by remote IP.
func RateLimit(limiter KeyLimiter, logger logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)
			if !limiter.Allow(key) {
				logger.Warn("Rate limit exceeded",
					logging.String("client", key),
					logging.String("path", r.URL.Path),
				)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
