package router

import (
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/ovaphlow/gatehouse/internal/config"
	"github.com/ovaphlow/gatehouse/internal/session"
	"github.com/ovaphlow/gatehouse/internal/user"
	userrepo "github.com/ovaphlow/gatehouse/internal/user/repo"
	"github.com/ovaphlow/gatehouse/pkg/utilities"
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

// LoggingMiddleware returns a middleware that tags every request with a
// KSUID and logs it at debug level using the provided sugared logger.
// The id is echoed back in the X-Request-Id header.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := ksuid.New().String()
			w.Header().Set("X-Request-Id", requestID)
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			dur := time.Since(start)
			// ensure status is set
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debugw("http request",
				"request_id", requestID,
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

// SecurityHeadersMiddleware returns a middleware that sets common HTTP security headers.
// It is intentionally simple and conservative so it works with most setups.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Prevent MIME sniffing
			w.Header().Set("X-Content-Type-Options", "nosniff")

			// Clickjacking protection
			w.Header().Set("X-Frame-Options", "DENY")

			// Referrer policy
			w.Header().Set("Referrer-Policy", "no-referrer-when-downgrade")

			// Permissions policy - this service never needs device access
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")

			// Basic Content-Security-Policy; callers may override downstream.
			if w.Header().Get("Content-Security-Policy") == "" {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; object-src 'none'; base-uri 'self';")
			}

			// HSTS only makes sense over TLS.
			if r.TLS != nil {
				// 30 days
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RegisterRoutes mounts HTTP handlers using the standard library's
// http.ServeMux. Routes that read or mutate the caller's own record sit
// behind the session guard; registration, login and logout do not.
func RegisterRoutes(cfg *config.Config, logger *zap.SugaredLogger, db *sqlx.DB, ids *utilities.IDGen) http.Handler {
	sessions := session.NewManager(cfg, logger)
	svc := user.NewService(userrepo.NewUserRepo(db), nil, ids.NextID)
	users := user.NewHandler(svc, sessions, logger)

	mux := http.NewServeMux()

	// health
	mux.HandleFunc("GET /gatehouse/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// account and session routes
	mux.HandleFunc("POST /gatehouse/users", users.Register)
	mux.HandleFunc("POST /gatehouse/sessions", users.Login)
	mux.HandleFunc("DELETE /gatehouse/sessions", users.Logout)

	// routes below require a valid session cookie
	mux.Handle("GET /gatehouse/users/me", sessions.Guard(http.HandlerFunc(users.Me)))
	mux.Handle("PATCH /gatehouse/users/me", sessions.Guard(http.HandlerFunc(users.Update)))

	// wrap with security headers middleware then logging middleware
	handler := LoggingMiddleware(logger)(SecurityHeadersMiddleware()(mux))
	return handler
}
