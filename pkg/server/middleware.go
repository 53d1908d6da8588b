package server

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/germanamz/relnotes/pkg/metrics"
)

// APIKeyHeader carries the shared function key.
const APIKeyHeader = "x-functions-key"

type contextKey string

const requestIDKey contextKey = "requestID"

// exempt paths are reachable without the function key.
var exempt = map[string]bool{
	"/health":  true,
	"/test":    true,
	"/metrics": true,
}

// Chain wraps the handler with the middleware stack.
// Order: RequestID → Logging → Metrics → APIKey → MaxBytes → mux
func Chain(handler http.Handler, logger *slog.Logger, apiKey string, maxBody int64) http.Handler {
	h := handler
	h = MaxBytes(maxBody)(h)
	h = APIKey(apiKey)(h)
	h = Metrics(h)
	h = Logging(logger)(h)
	h = RequestID(h)

	return h
}

// RequestID reuses the caller's X-Request-ID or generates one, and exposes
// it in the response header and the request context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFromContext returns the request id set by RequestID.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}

	return ""
}

// Logging records method, path, status and duration per request.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			id := RequestIDFromContext(r.Context())
			if id == "" {
				id = "-"
			}

			logger.LogAttrs(r.Context(), slog.LevelInfo, "request",
				slog.String("request_id", id),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", sw.status),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

// Metrics counts requests by method, route pattern and status code.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		// The mux records the matched pattern on r; raw paths would give one
		// series per project and version.
		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}

		metrics.RequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(sw.status)).Inc()
	})
}

// APIKey requires the function key header. An empty expectedKey disables the
// check.
func APIKey(expectedKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if expectedKey == "" || exempt[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			provided := r.Header.Get(APIKeyHeader)
			if provided == "" {
				writeError(w, http.StatusUnauthorized, "missing function key")
				return
			}

			if subtle.ConstantTimeCompare([]byte(provided), []byte(expectedKey)) != 1 {
				writeError(w, http.StatusUnauthorized, "invalid function key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// MaxBytes limits request bodies to n bytes. n <= 0 disables the limit.
func MaxBytes(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if n > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}

			next.ServeHTTP(w, r)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Unwrap() http.ResponseWriter { return sw.ResponseWriter }
