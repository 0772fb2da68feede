package ratelimit

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// errorResponse is the JSON body written for rejected requests.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Middleware returns HTTP middleware that paces requests per client IP.
// Requests whose delay is at most maxWait are held for that delay and then
// served; requests that would have to wait longer are rejected with 429.
// A rejected request still counts against its client.
func Middleware(limiter *KeyedLimiter, maxWait time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := getClientIP(r)
			delay := limiter.Admit(key, time.Now())

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Rate()))
			w.Header().Set("X-RateLimit-Delay", strconv.FormatInt(delay.Milliseconds(), 10))

			if delay > maxWait {
				retryAfterSecs := int((delay + time.Second - 1) / time.Second)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSecs))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)

				json.NewEncoder(w).Encode(errorResponse{
					Error: "rate limit exceeded",
					Code:  "RATE_LIMIT_EXCEEDED",
				})

				slog.Warn("Rate limit exceeded",
					"key", key,
					"delay", delay,
					"max_wait", maxWait,
				)
				return
			}

			if delay > 0 {
				if err := sleepContext(r.Context(), delay); err != nil {
					slog.Debug("Request abandoned while paced", "key", key, "delay", delay)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// getClientIP keys a request by the first X-Forwarded-For hop, then
// X-Real-IP, then the host part of RemoteAddr.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
