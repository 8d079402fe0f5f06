package router

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/authorization"
	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/directory"
	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/litigation"
	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-litigation-go/pkg/utilities"
)

// Prefix is the mount point of the litigation API.
const Prefix = "/litigation-api"

// Handlers groups the endpoint handlers mounted by RegisterRoutes.
type Handlers struct {
	Users     *user.Handler
	Cases     *litigation.Handler
	Billing   *authorization.Handler
	Directory *directory.Handler
	Metrics   http.Handler
}

type ctxKey struct{}

// RequestID returns the request id set by RequestIDMiddleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// LoggingMiddleware logs requests at debug level, server errors at warn.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			log := logger.Debugw
			if status >= http.StatusInternalServerError {
				log = logger.Warnw
			}
			log("http request",
				"request_id", RequestID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// RequestIDMiddleware keeps an incoming X-Request-Id or assigns a ksuid.
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-Id")
			if id == "" || len(id) > 64 {
				id = utilities.NewKSUID()
			}
			w.Header().Set("X-Request-Id", id)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
		})
	}
}

// SecurityHeadersMiddleware sets common HTTP security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer")
			w.Header().Set("Cache-Control", "no-store")
			if w.Header().Get("Content-Security-Policy") == "" {
				w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none';")
			}
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// APIKeyMiddleware requires X-Api-Key to equal key. An empty key disables
// the check.
func APIKeyMiddleware(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !user.ConstantTimeCompare(r.Header.Get("X-Api-Key"), key) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"invalid api key"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RegisterRoutes mounts HTTP handlers using the standard library's http.ServeMux.
// Health, metrics and the billing webhook are reachable without the API key;
// the webhook authenticates its payload instead.
func RegisterRoutes(logger *zap.SugaredLogger, h Handlers, apiKey string) http.Handler {
	mux := http.NewServeMux()
	protect := APIKeyMiddleware(apiKey)

	mux.HandleFunc("GET "+Prefix+"/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics)
	}
	mux.HandleFunc("POST "+Prefix+"/webhooks/billing", h.Billing.Billing)

	mux.Handle("PUT "+Prefix+"/users", protect(http.HandlerFunc(h.Users.Register)))
	mux.Handle("POST "+Prefix+"/scans", protect(http.HandlerFunc(h.Cases.Scan)))
	mux.Handle("GET "+Prefix+"/users/{email}/cases", protect(http.HandlerFunc(h.Cases.ListByUser)))
	mux.Handle("POST "+Prefix+"/cases/{id}/settle", protect(http.HandlerFunc(h.Cases.Settle)))
	mux.Handle("GET "+Prefix+"/directory", protect(http.HandlerFunc(h.Directory.List)))

	return RequestIDMiddleware()(LoggingMiddleware(logger)(SecurityHeadersMiddleware()(mux)))
}
