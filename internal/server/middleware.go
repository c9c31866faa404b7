package server

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type contextKey string

const requestIDKey contextKey = "requestID"

// RequestID stamps every request with a UUID for log correlation.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RateLimit rejects requests beyond the configured rate with 429.
func RateLimit(limit float64, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(limit), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Logging emits one structured line per request.
func Logging(log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			id, _ := r.Context().Value(requestIDKey).(string)
			log.WithFields(logrus.Fields{
				"request_id": id,
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     rec.status,
				"duration":   time.Since(start).String(),
			}).Info("http request")
		})
	}
}

// Metrics records request counts and latency per path.
func Metrics(m *HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			m.Requests.WithLabelValues(r.URL.Path).Inc()
			m.Latency.WithLabelValues(r.URL.Path).Observe(time.Since(start).Seconds())
		})
	}
}

type cacheEntry struct {
	body        []byte
	contentType string
	stored      time.Time
}

// Cache is a short-TTL LRU response cache for GET snapshot endpoints. The
// snapshots change once a second at most; caching keeps a polling
// dashboard from re-marshalling identical state.
func Cache(size int, ttl time.Duration) (func(http.Handler) http.Handler, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			key := r.URL.Path + "?" + r.URL.RawQuery
			if v, ok := c.Get(key); ok {
				e := v.(cacheEntry)
				if time.Since(e.stored) < ttl {
					w.Header().Set("Content-Type", e.contentType)
					w.Header().Set("X-Cache", "hit")
					w.Write(e.body)
					return
				}
				c.Remove(key)
			}

			rec := &bufferRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.status == http.StatusOK {
				c.Add(key, cacheEntry{
					body:        rec.buf.Bytes(),
					contentType: rec.Header().Get("Content-Type"),
					stored:      time.Now(),
				})
			}
		})
	}, nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

type bufferRecorder struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (r *bufferRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *bufferRecorder) Write(p []byte) (int, error) {
	r.buf.Write(p)
	return r.ResponseWriter.Write(p)
}
