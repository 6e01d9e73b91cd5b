// Package router assembles the gateway's chi.Router: the ambient
// middleware chain plus the health/metrics surface, with every other
// path falling through to the rate-limit decision handler.
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/AlfredDev/ratelimit-gateway/internal/config"
	gwmw "github.com/AlfredDev/ratelimit-gateway/internal/middleware"
)

// NewRouter returns a configured chi Router with the ambient middleware
// chain, health endpoints, an optional /metrics endpoint, and decision
// as the catch-all handler for every other path.
func NewRouter(cfg *config.Config, appLogger zerolog.Logger, decision http.Handler, exposeMetrics bool) http.Handler {
	r := chi.NewRouter()

	// 1. CORS — must be first so preflight responses succeed.
	r.Use(gwmw.CORSMiddleware([]string{"*"}))

	// 2. Security headers.
	r.Use(gwmw.SecurityHeadersMiddleware)

	// 3. Request ID injection (chi built-in).
	r.Use(chimw.RequestID)

	// 4. Panic recovery.
	r.Use(chimw.Recoverer)

	// 5. Request logger.
	r.Use(mwRequestLogger(appLogger))

	// 6. Body size limit.
	r.Use(mwMaxBodySize(cfg.MaxBodyBytes))

	// 7. Per-request deadline.
	r.Use(gwmw.NewTimeoutMiddleware(appLogger, cfg.RequestTimeout).Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})

	if exposeMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.NotFound(decision.ServeHTTP)
	r.MethodNotAllowed(decision.ServeHTTP)
	r.Handle("/*", decision)

	return r
}

func mwMaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = 1 * 1024 * 1024
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > 0 && r.ContentLength > maxBytes {
				http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

func mwRequestLogger(appLogger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(rw, r)
			dur := time.Since(start)
			reqID := chimw.GetReqID(r.Context())
			appLogger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("req_id", reqID).
				Int("status", rw.Status()).
				Dur("duration", dur).
				Msg("request completed")
		})
	}
}
