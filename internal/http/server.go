package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"expenses/internal/backend"
	"expenses/internal/core"
	"expenses/internal/log"
	"expenses/internal/metrics"
	"expenses/internal/middleware/cors"
	"expenses/internal/middleware/ratelimit"
	"expenses/internal/middleware/recovery"
	"expenses/internal/middleware/security"
	"expenses/internal/middleware/trace"
)

// APIPrefix is where every resource route lives.
const APIPrefix = "/api/v1"

// ExpenseService is the expense surface used by the handlers.
type ExpenseService interface {
	ListExpenses(ctx context.Context, f core.ExpenseFilter, p core.PageRequest) (core.ExpensePage, error)
	GetExpense(ctx context.Context, id int64) (core.Expense, error)
	CreateExpense(ctx context.Context, ne core.NewExpense) (core.Expense, error)
	UpdateExpense(ctx context.Context, id int64, p core.ExpensePatch) (core.Expense, error)
	DeleteExpense(ctx context.Context, id int64) (core.Expense, error)
}

// StatisticsService serves the per-user reports.
type StatisticsService interface {
	TopDays(ctx context.Context) ([]core.TopDayExpenditure, error)
	MonthlyChanges(ctx context.Context) ([]core.MonthlyPercentageChange, error)
	Predictions(ctx context.Context) ([]core.ExpenditurePrediction, error)
	All(ctx context.Context) (core.Statistics, error)
}

// ReferenceStore lists users and categories and reports whether it is reachable.
type ReferenceStore interface {
	backend.ReferenceReader
	Ping(ctx context.Context) error
}

// Config holds the server settings taken from the application config.
type Config struct {
	Addr         string
	AppName      string
	Development  bool
	CORSOrigins  []string
	RateLimitRPM int
}

// Dependencies are the collaborators the handlers call. Metrics may be nil.
type Dependencies struct {
	Expenses   ExpenseService
	Statistics StatisticsService
	Store      ReferenceStore
	Logger     *log.Logger
	Metrics    *metrics.Metrics
}

type Server struct {
	http.Server

	cfg        Config
	expenses   ExpenseService
	statistics StatisticsService
	store      ReferenceStore
	metrics    *metrics.Metrics

	logger      *log.Logger
	httpLog     *log.StructuredLogger
	rateLimiter *ratelimit.Limiter
	detector    *security.Detector

	startedAt    time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
// The caller must call Shutdown to release the rate limiter.
func NewServer(cfg Config, deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	s := &Server{
		cfg:        cfg,
		expenses:   deps.Expenses,
		statistics: deps.Statistics,
		store:      deps.Store,
		metrics:    deps.Metrics,
		logger:     logger,
		httpLog:    log.NewStructuredLogger(logger),
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: cfg.RateLimitRPM,
		}),
		detector:  security.NewDetector(logger),
		startedAt: time.Now(),
	}

	mux := http.NewServeMux()
	s.routes(mux)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.middleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.route(s.handleHealth))
	mux.HandleFunc("GET /ready", s.route(s.handleReady))
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.route(s.metrics.Handler().ServeHTTP))
	}

	s.api(mux, "GET /users", s.handleListUsers)
	s.api(mux, "GET /users/active", s.handleListActiveUsers)
	s.api(mux, "GET /categories", s.handleListCategories)

	s.api(mux, "GET /expenses", s.handleListExpenses)
	s.api(mux, "GET /expenses/{id}", s.handleGetExpense)
	s.api(mux, "POST /expenses", s.handleCreateExpense)
	s.api(mux, "PUT /expenses/{id}", s.handleUpdateExpense)
	s.api(mux, "DELETE /expenses/{id}", s.handleDeleteExpense)

	s.api(mux, "GET /statistics", s.handleAllStatistics)
	s.api(mux, "GET /statistics/top-days", s.handleTopDays)
	s.api(mux, "GET /statistics/monthly-change", s.handleMonthlyChange)
	s.api(mux, "GET /statistics/prediction", s.handlePrediction)

	mux.HandleFunc("/", s.handleNotFound)
}

// api registers a rate limited route under APIPrefix.
func (s *Server) api(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	method, path, _ := strings.Cut(pattern, " ")
	limited := s.rateLimiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited)(h)
	mux.Handle(method+" "+APIPrefix+path, s.route(limited.ServeHTTP))
}

// route tags the request with its pattern for the request metrics.
func (s *Server) route(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		trace.SetRoute(r.Context(), r.Pattern)
		h(w, r)
	}
}

// middleware wraps the mux, outermost first: tracing sees the final status
// of every request, panics included.
func (s *Server) middleware(next http.Handler) http.Handler {
	var recorder trace.Recorder
	if s.metrics != nil {
		recorder = s.metrics
	}
	tracer := trace.NewMiddleware(s.logger, s.detector.ExtractClientIP, recorder)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	h := next
	h = s.detector.Middleware(h)
	h = cors.Middleware(cors.DefaultConfig(s.cfg.CORSOrigins))(h)
	h = headers.Middleware(h)
	h = recovery.Middleware(s.logger, s.handlePanic)(h)
	h = log.Middleware(s.logger)(h)
	h = tracer.Middleware(h)
	return h
}

// Shutdown gracefully shuts down the server and its rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// Run serves until ctx is cancelled, then shuts the server down within
// timeout.
func (s *Server) Run(ctx context.Context, timeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.Addr, log.FieldOperation, log.OpStartup)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server", log.FieldOperation, log.OpShutdown, "timeout", timeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
