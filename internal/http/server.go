// Package http exposes the expense tracker as a JSON API: authentication,
// expense CRUD, budgets, categories, and the derived summary views.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"despesas/internal/cache"
	"despesas/internal/core"
	"despesas/internal/identity"
	"despesas/internal/log"
	"despesas/internal/session"
)

type Server struct {
	http.Server

	auth        *identity.Service
	sessions    *session.Manager
	logger      *log.Logger
	rateLimiter *rateLimiter

	// Derived-view caches keyed by session version, so a write invalidates
	// them without explicit bookkeeping.
	overviewCache *cache.LRU[monthOverviewResponse]
	yearCache     *cache.LRU[yearSummaryResponse]

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

type Options struct {
	Addr      string
	CacheSize int
	CacheTTL  time.Duration
}

// NewServer wires routes and middleware and returns a ready-to-run server.
func NewServer(opts Options, auth *identity.Service, sessions *session.Manager, logger *log.Logger) *Server {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 1000
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP)
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:    opts.Addr,
			Handler: mux,
		},
		auth:             auth,
		sessions:         sessions,
		logger:           logger,
		rateLimiter:      newRateLimiter(),
		overviewCache:    cache.NewLRU[monthOverviewResponse](opts.CacheSize, opts.CacheTTL),
		yearCache:        cache.NewLRU[yearSummaryResponse](opts.CacheSize, opts.CacheTTL),
		stopCacheCleanup: make(chan struct{}),
	}

	go s.startCacheCleanup()

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /api/auth/register", s.guard(s.handleRegister))
	mux.HandleFunc("POST /api/auth/login", s.guard(s.handleLogin))
	mux.HandleFunc("POST /api/auth/logout", s.guard(s.requireAuth(s.handleLogout)))

	mux.HandleFunc("GET /api/expenses", s.guard(s.requireAuth(s.handleListExpenses)))
	mux.HandleFunc("POST /api/expenses", s.guard(s.requireAuth(s.handleCreateExpense)))
	mux.HandleFunc("PUT /api/expenses/{id}", s.guard(s.requireAuth(s.handleUpdateExpense)))
	mux.HandleFunc("DELETE /api/expenses/{id}", s.guard(s.requireAuth(s.handleDeleteExpense)))
	mux.HandleFunc("POST /api/expenses/{id}/toggle", s.guard(s.requireAuth(s.handleTogglePaid)))

	mux.HandleFunc("GET /api/settings", s.guard(s.requireAuth(s.handleGetSettings)))
	mux.HandleFunc("PUT /api/budgets/{month}", s.guard(s.requireAuth(s.handleSetBudget)))
	mux.HandleFunc("POST /api/categories", s.guard(s.requireAuth(s.handleAddCategory)))
	mux.HandleFunc("DELETE /api/categories/{name}", s.guard(s.requireAuth(s.handleDeleteCategory)))

	mux.HandleFunc("GET /api/summary/month/{month}", s.guard(s.requireAuth(s.handleMonthOverview)))
	mux.HandleFunc("GET /api/summary/year/{year}", s.guard(s.requireAuth(s.handleYearSummary)))
	mux.HandleFunc("GET /api/summary/window", s.guard(s.requireAuth(s.handleTrailingWindow)))
	mux.HandleFunc("GET /api/summary/upcoming", s.guard(s.requireAuth(s.handleUpcoming)))
	mux.HandleFunc("GET /api/summary/paid-by-category", s.guard(s.requireAuth(s.handlePaidByCategory)))

	return s
}

func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cleaned := s.overviewCache.CleanExpired() + s.yearCache.CleanExpired()
			if cleaned > 0 {
				s.logger.Debug("Cache cleanup completed", "entries_removed", cleaned)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// Shutdown stops cleanup goroutines and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		close(s.stopCacheCleanup)
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// guard adds security headers, rate limiting, request ids, and request
// logging around a handler.
func (s *Server) guard(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		logger := s.logger.With(log.FieldRequestID, requestID)
		r = r.WithContext(r.Context())

		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			logger.Warn("Rate limit exceeded",
				log.FieldClientIP, clientIP, log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cache-Control", "no-store")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		logger.Info("Request completed",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, rw.statusCode,
			log.FieldDuration, time.Since(start).Milliseconds(),
			log.FieldClientIP, clientIP)
	}
}

// responseWriter captures the status code for request logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// monthKeyPathValue parses the {month} path segment.
func monthKeyPathValue(r *http.Request) (core.MonthKey, error) {
	return core.ParseMonthKey(r.PathValue("month"))
}
