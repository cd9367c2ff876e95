// Package web provides the HTTP API for tuitiondesk.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/tuitiondesk/internal/config"
	"github.com/JonMunkholm/tuitiondesk/internal/core"
	mw "github.com/JonMunkholm/tuitiondesk/internal/web/middleware"
)

// Server is the HTTP server.
type Server struct {
	service  *core.Service
	cfg      *config.Config
	router   *chi.Mux
	server   *http.Server
	limiters []*rateLimiter
}

// NewServer creates a new Server instance.
func NewServer(service *core.Service, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5, "application/json", "text/csv"))
	s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(securityHeaders)
	s.router.Use(requestMetadata)

	if s.cfg.Rate.Enabled {
		s.router.Use(s.limiter(s.cfg.Rate.RequestsPerMinute))
	}
}

// limiter returns per-IP rate limiting middleware for n requests a minute,
// or a pass-through when limiting is disabled.
func (s *Server) limiter(n int) func(http.Handler) http.Handler {
	if !s.cfg.Rate.Enabled || n <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	rl := newRateLimiter(n, time.Minute)
	s.limiters = append(s.limiters, rl)
	return rl.middleware
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// Link holders are anonymous; the token is the credential. The
		// absence form needs only the tuition ID.
		r.Route("/public", func(r chi.Router) {
			r.Post("/register/{token}", s.handleSubmitRegistration)
			r.Post("/pay/{token}", s.handleSubmitPaymentLink)
			r.Post("/absence-reasons", s.handleSubmitAbsenceReason)
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.APIKeyAuth(&s.cfg.Security))
			if s.cfg.Security.JWTSecret != "" {
				r.Use(mw.JWTAuth(s.cfg.Security.JWTSecret, s.cfg.Security.RequireJWT))
			}

			// Backup
			r.Get("/backup", s.handleExport)
			r.With(s.limiter(s.cfg.Rate.ImportLimit)).Post("/import/backup", s.handleImport)

			// Reports
			r.Get("/reports/{kind}", s.handleReport)

			// Attendance and fees
			r.Post("/attendance", s.handleMarkAttendance)
			r.Get("/absence-reasons", s.handleListAbsenceReasons)
			r.Get("/payments", s.handleListPayments)
			r.Post("/payments", s.handleRecordPayment)
			r.Post("/payments/{id}/verify", s.handleVerifyPayment)
			r.Post("/payments/{id}/reject", s.handleRejectPayment)

			// Registrations and links
			r.Post("/registration-links", s.handleIssueRegistrationLink)
			r.Get("/registrations", s.handleListRegistrations)
			r.Post("/registrations/{id}/review", s.handleReviewRegistration)
			r.Post("/payment-links", s.handleIssuePaymentLink)

			// Result cards
			r.Post("/result-cards", s.handleResultCard)

			// Admin
			r.Post("/admin/backfill-ids", s.handleBackfill)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests, waits for in-flight ones and then for
// running imports to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, rl := range s.limiters {
		rl.Close()
	}
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return err
		}
	}
	return s.service.Limiter().WaitForDrain(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
