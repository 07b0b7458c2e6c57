package router

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mindfulmovement/service-session-go/internal/auth"
	"github.com/mindfulmovement/service-session-go/internal/lookup"
	"github.com/mindfulmovement/service-session-go/internal/routeguard"
)

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

// LoggingMiddleware returns a middleware that logs requests at debug level.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			dur := time.Since(start)
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debugw("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(dur.Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// SecurityHeadersMiddleware returns a middleware that sets common HTTP
// security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer-when-downgrade")
			if w.Header().Get("Content-Security-Policy") == "" {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; object-src 'none'; base-uri 'self';")
			}
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Deps collects the handlers and guard the router mounts.
type Deps struct {
	Auth       *auth.Handler
	EventTypes *lookup.Handler
	Suburbs    *lookup.Handler
	Guard      *routeguard.Guard
	Policies   routeguard.Table
}

// pagePaths maps route names from the policy table to their URL paths.
var pagePaths = map[string]string{
	"home":          "/{$}",
	"explore":       "/explore",
	"dashboard":     "/dashboard",
	"partner":       "/partner",
	"admin":         "/admin",
	"auth":          "/auth",
	"about":         "/about",
	"accessibility": "/accessibility",
}

// RegisterRoutes mounts HTTP handlers using the standard library's
// http.ServeMux. Page routes are wrapped in the route guard per the static
// policy table; the guard itself only reads the session mirror.
func RegisterRoutes(logger *zap.SugaredLogger, deps Deps) http.Handler {
	mux := http.NewServeMux()

	// health
	mux.HandleFunc("GET /mm-session-api/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// auth routes
	mux.HandleFunc("POST /mm-session-api/auth/register", deps.Auth.Register)
	mux.HandleFunc("POST /mm-session-api/auth/login", deps.Auth.Login)
	mux.HandleFunc("POST /mm-session-api/auth/logout", deps.Auth.Logout)
	mux.HandleFunc("GET /mm-session-api/auth/me", deps.Auth.Me)

	// lookup routes
	mux.HandleFunc("GET /mm-session-api/lookups/event-types", deps.EventTypes.List)
	mux.HandleFunc("POST /mm-session-api/lookups/event-types", deps.EventTypes.Add)
	mux.HandleFunc("GET /mm-session-api/lookups/suburbs", deps.Suburbs.List)
	mux.HandleFunc("POST /mm-session-api/lookups/suburbs", deps.Suburbs.Add)

	// guarded page routes
	for name, path := range pagePaths {
		policy := deps.Policies[name]
		mux.Handle("GET "+path, deps.Guard.Middleware(policy)(pageHandler(name)))
	}

	handler := LoggingMiddleware(logger)(SecurityHeadersMiddleware()(mux))
	return handler
}

func pageHandler(name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"page": name})
	})
}
