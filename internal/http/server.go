package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
	"expensetracker/internal/middleware/ratelimit"
	"expensetracker/internal/middleware/security"
	"expensetracker/internal/middleware/trace"
)

const welcomeText = "Welcome to the Expense Tracker API"

// ExpenseAPI is the behaviour the handlers need from the expense service.
type ExpenseAPI interface {
	List(ctx context.Context) ([]core.Expense, error)
	Get(ctx context.Context, id string) (core.Expense, error)
	Create(ctx context.Context, in core.Input) (core.Expense, error)
	Update(ctx context.Context, id string, in core.Input) (core.Expense, error)
	Delete(ctx context.Context, id string) error
	Ready(ctx context.Context) error
}

// Options configures the middleware stack around the API.
type Options struct {
	// CORSOrigins defaults to every origin.
	CORSOrigins []string
	// RateLimitPerMinute bounds mutating requests per client; 0 disables it.
	RateLimitPerMinute int
	Logger             *applog.Logger
	// Registry receives the HTTP metrics and backs /metrics. A fresh one is
	// created when nil.
	Registry *prometheus.Registry
}

type Server struct {
	http.Server
	svc         ExpenseAPI
	rateLimiter *ratelimit.Limiter
	detector    *security.Detector

	shutdownOnce sync.Once
}

// NewServer builds the router and wraps it in an http.Server listening on addr.
func NewServer(addr string, svc ExpenseAPI, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
		opts.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}

	s := &Server{
		svc:      svc,
		detector: security.NewDetector(),
	}
	if opts.RateLimitPerMinute > 0 {
		s.rateLimiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute})
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(opts),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.CleanPath)
	r.Use(applog.Middleware(opts.Logger.WithComponent(applog.ComponentHTTP)))
	r.Use(trace.NewMiddleware(s.detector.ExtractClientIP, trace.NewMetrics(opts.Registry)).Middleware)
	// Inside trace so a recovered panic is still counted and logged as a 500.
	r.Use(middleware.Recoverer)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.detector.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", trace.RequestIDHeader},
		ExposedHeaders: []string{trace.RequestIDHeader, "Retry-After"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError(msgRouteNotFound).Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, msgMethodNotAllow).Write(w)
	})

	r.Get("/", handleWelcome)
	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{}))

	r.Get("/expenses", s.handleListExpenses)
	r.Get("/expenses/{id}", s.handleGetExpense)

	r.Group(func(r chi.Router) {
		if s.rateLimiter != nil {
			r.Use(s.rateLimiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, _ *http.Request) {
				TooManyRequestsError().Write(w)
			}))
		}
		r.Post("/expenses", s.handleCreateExpense)
		r.Patch("/expenses/{id}", s.handleUpdateExpense)
		r.Delete("/expenses/{id}", s.handleDeleteExpense)
	})

	return r
}

func handleWelcome(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(welcomeText))
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := s.svc.Ready(ctx); err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err.Error())
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	_, _ = w.Write([]byte("ready"))
}

// Shutdown stops the rate limiter cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
	})
	return s.Server.Shutdown(ctx)
}
