package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

// Server exposes the ledger, billing and reporting services as a JSON API.
type Server struct {
	http.Server

	store       *storage.SQLiteRepository
	ledger      *services.TransactionService
	billing     *services.BillingProcessor
	reports     *services.ReportService
	defaultUser string

	rateLimiter *ratelimit.Limiter
	cacheMgr    *cache.Manager

	// Report responses are cached per user; any ledger write drops the
	// whole user prefix.
	monthlyCache  *cache.LRUCache[services.MonthlyReport]
	totalsCache   *cache.LRUCache[[]core.CategoryTotals]
	forecastCache *cache.LRUCache[core.SpendForecast]

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, store *storage.SQLiteRepository, ledger *services.TransactionService, billing *services.BillingProcessor, reports *services.ReportService, defaultUser string) *Server {
	mux := http.NewServeMux()

	s := &Server{
		store:       store,
		ledger:      ledger,
		billing:     billing,
		reports:     reports,
		defaultUser: defaultUser,

		rateLimiter: ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		cacheMgr:    cache.NewManager(),

		monthlyCache:  cache.NewLRUCache[services.MonthlyReport](100, 5*time.Minute),
		totalsCache:   cache.NewLRUCache[[]core.CategoryTotals](100, 5*time.Minute),
		forecastCache: cache.NewLRUCache[core.SpendForecast](100, 5*time.Minute),
	}

	s.cacheMgr.Register(s.monthlyCache)
	s.cacheMgr.Register(s.totalsCache)
	s.cacheMgr.Register(s.forecastCache)
	s.cacheMgr.StartCleanup(10 * time.Minute)

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	mux.HandleFunc("/api/accounts", s.handleAccounts)
	mux.HandleFunc("/api/transactions", s.handleTransactions)
	mux.HandleFunc("/api/subscriptions", s.handleSubscriptions)
	mux.HandleFunc("/api/subscriptions/", s.handleSubscriptionStatus)
	mux.HandleFunc("/api/categories", s.handleCategories)
	mux.HandleFunc("/api/billing/run", s.handleBillingRun)

	mux.HandleFunc("/api/reports/monthly", s.handleMonthlyReport)
	mux.HandleFunc("/api/reports/categories", s.handleCategoryReport)
	mux.HandleFunc("/api/reports/years", s.handleYears)
	mux.HandleFunc("/api/reports/forecast", s.handleForecast)

	logger := applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)
	tracer := trace.NewMiddleware(clientIP)
	handler := tracer.Middleware(applog.Middleware(logger)(s.withRateLimit(mux)))

	s.Server = http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// withRateLimit throttles mutating requests per client IP. Reads stay
// unthrottled; report endpoints are cached anyway.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	limit := s.rateLimiter.Middleware(clientIP, nil)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			limit(next).ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// invalidateReports drops all cached report responses for one user.
func (s *Server) invalidateReports(userID string) {
	prefix := userID + ":"
	s.monthlyCache.DeletePrefix(prefix)
	s.totalsCache.DeletePrefix(prefix)
	s.forecastCache.DeletePrefix(prefix)
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheMgr.Stop()
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		slog.ErrorContext(r.Context(), "Failed to write health response", "error", err)
	}
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	// Ready when the database answers.
	if _, err := s.store.ListAccounts(r.Context(), s.defaultUser); err != nil {
		respondError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ready")); err != nil {
		slog.ErrorContext(r.Context(), "Failed to write ready response", "error", err)
	}
}
