package main

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"
)

// setupRoutes registers all HTTP routes and middleware
func (s *Server) setupRoutes() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)

	// Health endpoints
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/health/metrics", s.handleMetrics).Methods(http.MethodGet)

	// Legacy phone client endpoint
	r.HandleFunc("/verticalAcceleration", s.handleIngest).Methods(http.MethodPost)
	r.HandleFunc("/verticalAcceleration", s.handleState).Methods(http.MethodGet)

	// Session management endpoints
	api := r.PathPrefix("/api/sessions").Subrouter()
	api.HandleFunc("", s.handleListSessions).Methods(http.MethodGet)
	api.HandleFunc("", s.handleCreateSession).Methods(http.MethodPost)
	api.HandleFunc("/{id}", s.handleGetSession).Methods(http.MethodGet)
	api.HandleFunc("/{id}", s.handleDeleteSession).Methods(http.MethodDelete)
	api.HandleFunc("/{id}/samples", s.handlePushSamples).Methods(http.MethodPost)
	api.HandleFunc("/{id}/estimates", s.handleEstimates).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, http.StatusNotFound, "no route for "+r.URL.Path)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, http.StatusMethodNotAllowed, r.Method+" not allowed on "+r.URL.Path)
	})

	r.Use(s.loggingMiddleware)

	// CORS wraps the router so preflight requests never reach route matching
	return corsMiddleware(parseOrigins(s.config.CORSOrigin))(r)
}

func parseOrigins(raw string) []string {
	if raw == "" || raw == "*" {
		return []string{"*"}
	}
	origins := strings.Split(raw, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return origins
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				allowed = true
			} else {
				for _, allowedOrigin := range allowedOrigins {
					if allowedOrigin == origin {
						w.Header().Set("Access-Control-Allow-Origin", origin)
						w.Header().Add("Vary", "Origin")
						allowed = true
						break
					}
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
				w.Header().Set("Access-Control-Max-Age", "3600")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// loggingMiddleware logs every routed request at debug level
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		s.log.Debugf("%s %s from %s -> %d", r.Method, r.URL.Path, getClientIP(r), wrapped.statusCode)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

// Run serves until ctx is cancelled, then drains in-flight requests within
// the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.setupRoutes(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.log.Infof("Podometre server starting on %s", s.config.Addr)
	s.log.Infof("   CORS Origins: %v", parseOrigins(s.config.CORSOrigin))
	s.log.Infof("Endpoints:")
	s.log.Infof("   POST   /verticalAcceleration             - Ingest a batch (legacy format)")
	s.log.Infof("   GET    /verticalAcceleration?name={id}   - Session state (legacy format)")
	s.log.Infof("   GET    /api/sessions                     - List sessions")
	s.log.Infof("   POST   /api/sessions                     - Create session")
	s.log.Infof("   GET    /api/sessions/{id}                - Get session")
	s.log.Infof("   DELETE /api/sessions/{id}                - Delete session")
	s.log.Infof("   POST   /api/sessions/{id}/samples        - Ingest a batch")
	s.log.Infof("   GET    /api/sessions/{id}/estimates      - Estimate history")
	s.log.Infof("   GET    /api/health/metrics               - Server metrics")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.log.Infof("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
