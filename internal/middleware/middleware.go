// Package middleware provides HTTP middleware for the document store.
package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apierrors "github.com/devrev/docstore/internal/errors"
	"github.com/devrev/docstore/internal/metrics"
	"github.com/devrev/docstore/internal/ratelimit"
	"github.com/devrev/docstore/internal/tenant"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// RequestIDKey is the context key for request ID.
	RequestIDKey ContextKey = "request_id"
	// StartTimeKey is the context key for request start time.
	StartTimeKey ContextKey = "start_time"
	// TenantIDKey is the context key for the validated tenant ID.
	TenantIDKey ContextKey = "tenant_id"
)

// GetTenantID returns the validated tenant ID stored on the request
// context, or an empty string before TenantGuard has run.
func GetTenantID(r *http.Request) string {
	id, _ := r.Context().Value(TenantIDKey).(string)
	return id
}

// RequestID adds a unique request ID to each request.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		// Add request ID to response header
		w.Header().Set("X-Request-ID", requestID)

		// Add request ID to context
		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		r = r.WithContext(ctx)

		// Also set the header on the request for downstream handlers
		r.Header.Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r)
	})
}

// Logging logs HTTP request details.
func Logging(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Store start time in context
			ctx := context.WithValue(r.Context(), StartTimeKey, start)
			r = r.WithContext(ctx)

			// Create response writer wrapper to capture status code
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			// Call next handler
			next.ServeHTTP(rw, r)

			// Log request
			duration := time.Since(start)
			requestID := r.Header.Get("X-Request-ID")

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rw.statusCode),
				zap.Duration("duration", duration),
				zap.String("request_id", requestID),
				zap.String("remote_addr", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()),
			}
			if tenantID := r.Header.Get(tenant.HeaderName); tenantID != "" {
				fields = append(fields, zap.String("tenant_id", tenantID))
			}

			logger.Info("HTTP request", fields...)
		})
	}
}

// Recovery recovers from panics and returns a 500 error.
func Recovery(errorHandler *apierrors.Handler, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					requestID := r.Header.Get("X-Request-ID")
					logger.Error("panic recovered",
						zap.Any("error", err),
						zap.String("request_id", requestID),
						zap.String("path", r.URL.Path),
					)

					errorHandler.WriteError(w, http.StatusInternalServerError, apierrors.ErrCodeInternal, "internal server error", requestID)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// CORS adds CORS headers to responses.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			// Check if origin is allowed
			allowed := false
			for _, o := range allowedOrigins {
				if o == "*" || o == origin {
					allowed = true
					break
				}
			}

			if allowed && origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, X-Tenant-ID")
				w.Header().Set("Access-Control-Max-Age", "86400")
			}

			// Handle preflight requests
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Throttle applies a global token bucket across all callers. It caps the
// total request rate the process will accept, independent of the
// per-source sliding window.
type Throttle struct {
	limiter *rate.Limiter
	errors  *apierrors.Handler
	logger  *zap.Logger
}

// NewThrottle creates a global throttle middleware.
func NewThrottle(requestsPerSecond float64, burstSize int, errorHandler *apierrors.Handler, logger *zap.Logger) *Throttle {
	return &Throttle{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burstSize),
		errors:  errorHandler,
		logger:  logger,
	}
}

// Limit applies the global throttle to requests.
func (t *Throttle) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !t.limiter.Allow() {
			requestID := r.Header.Get("X-Request-ID")
			t.logger.Warn("global throttle exceeded",
				zap.String("request_id", requestID),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
			)

			w.Header().Set("Retry-After", "1")
			t.errors.WriteError(w, http.StatusTooManyRequests, apierrors.ErrCodeRateLimited, "rate limit exceeded", requestID)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// SourceRateLimit applies the per-source sliding window limit.
type SourceRateLimit struct {
	limiter    *ratelimit.SourceLimiter
	errors     *apierrors.Handler
	metrics    *metrics.Metrics
	logger     *zap.Logger
	retryAfter string
}

// NewSourceRateLimit creates the sliding window middleware. The window
// length is advertised to rejected callers via Retry-After.
func NewSourceRateLimit(limiter *ratelimit.SourceLimiter, window time.Duration, errorHandler *apierrors.Handler, m *metrics.Metrics, logger *zap.Logger) *SourceRateLimit {
	return &SourceRateLimit{
		limiter:    limiter,
		errors:     errorHandler,
		metrics:    m,
		logger:     logger,
		retryAfter: strconv.Itoa(int(window / time.Second)),
	}
}

// Limit rejects requests from sources that exhausted their window.
func (srl *SourceRateLimit) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		source := ratelimit.SourceFromRequest(r)
		if !srl.limiter.Allow(source) {
			requestID := r.Header.Get("X-Request-ID")
			srl.logger.Warn("source rate limit exceeded",
				zap.String("source", source),
				zap.String("request_id", requestID),
				zap.String("path", r.URL.Path),
			)
			srl.metrics.RecordRateLimited()

			w.Header().Set("Retry-After", srl.retryAfter)
			srl.errors.WriteError(w, http.StatusTooManyRequests, apierrors.ErrCodeRateLimited, "rate limit exceeded", requestID)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// TenantGuard validates the tenant header and enforces read-only mode
// before requests reach the handlers.
type TenantGuard struct {
	readOnly bool
	errors   *apierrors.Handler
	logger   *zap.Logger
}

// NewTenantGuard creates the tenant validation middleware.
func NewTenantGuard(readOnly bool, errorHandler *apierrors.Handler, logger *zap.Logger) *TenantGuard {
	return &TenantGuard{
		readOnly: readOnly,
		errors:   errorHandler,
		logger:   logger,
	}
}

// Guard checks the tenant header and, in read-only mode, blocks mutating
// methods. On success the validated tenant ID lands on the request
// context under TenantIDKey.
func (tg *TenantGuard) Guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")

		id := r.Header.Get(tenant.HeaderName)
		if id == "" {
			tg.errors.WriteError(w, http.StatusBadRequest, apierrors.ErrCodeMissingTenant, "missing X-Tenant-ID header", requestID)
			return
		}
		if !tenant.ValidID(id) {
			tg.errors.WriteError(w, http.StatusBadRequest, apierrors.ErrCodeInvalidTenant, "X-Tenant-ID must be a valid GUID", requestID)
			return
		}
		if tg.readOnly && isMutating(r.Method) {
			tg.errors.WriteError(w, http.StatusForbidden, apierrors.ErrCodeForbiddenWrite, "store is in read-only mode", requestID)
			return
		}

		ctx := context.WithValue(r.Context(), TenantIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// ContentType sets the Content-Type header for JSON responses.
func ContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code.
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Chain chains multiple middleware functions.
func Chain(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}
