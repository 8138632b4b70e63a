// Package server implements the haies-server HTTP handlers and middleware.
package server

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

type requestIDKey struct{}

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey{}).(string)
	return id
}

// traceRequests tags each request with an id, turns handler panics into a
// 500 body and writes one log line per request. 5xx responses are logged at
// error level, 4xx at warn level.
func traceRequests(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := uuid.NewString()
			r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id))
			w.Header().Set("X-Request-ID", id)
			w.Header().Set("X-Frame-Options", "SAMEORIGIN")

			sw := &statusWriter{ResponseWriter: w}
			start := time.Now()
			defer func() {
				if v := recover(); v != nil {
					logger.Error("panic recovered", "error", v, "path", r.URL.Path, "request_id", id)
					if sw.status == 0 {
						writeError(sw, http.StatusInternalServerError, "internal_error", "internal server error")
					}
				}

				level := slog.LevelInfo
				switch {
				case sw.status >= 500:
					level = slog.LevelError
				case sw.status >= 400:
					level = slog.LevelWarn
				}
				logger.Log(r.Context(), level, "request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", sw.code(),
					"bytes", sw.written,
					"latency_ms", time.Since(start).Milliseconds(),
					"request_id", id,
				)
			}()
			next.ServeHTTP(sw, r)
		})
	}
}

// requireAdmin guards the admin routes with a bearer token.
func requireAdmin(token string, next http.Handler) http.Handler {
	expected := []byte("Bearer " + token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if subtle.ConstantTimeCompare([]byte(r.Header.Get("Authorization")), expected) != 1 {
			writeError(w, http.StatusUnauthorized, "auth_failed", "invalid admin token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// saveQuota caps the dataset requests of each client address per minute.
// Counters of every address are dropped together when the minute rolls
// over, so the map never outlives one window.
type saveQuota struct {
	perMinute int

	mu      sync.Mutex
	resetAt time.Time
	used    map[string]int
}

func newSaveQuota(perMinute int) *saveQuota {
	return &saveQuota{perMinute: perMinute, used: make(map[string]int)}
}

// take counts one request from addr. When the quota is spent it returns
// false and the time left before the next window.
func (q *saveQuota) take(addr string, now time.Time) (bool, time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !now.Before(q.resetAt) {
		clear(q.used)
		q.resetAt = now.Add(time.Minute)
	}
	if q.used[addr] >= q.perMinute {
		return false, q.resetAt.Sub(now)
	}
	q.used[addr]++
	return true, 0
}

func (q *saveQuota) limit(next http.Handler) http.Handler {
	if q.perMinute <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			addr = r.RemoteAddr
		}
		if ok, wait := q.take(addr, time.Now()); !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many hedge requests, retry later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusWriter records the status and body size of a response.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.written += n
	return n, err
}

func (w *statusWriter) code() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
