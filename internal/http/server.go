// Package http serves the ledger JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"kharcha/internal/assistant"
	"kharcha/internal/auth"
	"kharcha/internal/core"
	"kharcha/internal/export"
	"kharcha/internal/metrics"
	"kharcha/internal/middleware/ratelimit"
	"kharcha/internal/middleware/security"
	"kharcha/internal/middleware/trace"
	"kharcha/internal/refresh"
	"kharcha/internal/services"
)

// Reader is the read side of the ledger store.
type Reader interface {
	Ping(ctx context.Context) error
	ListCashInflows(ctx context.Context) ([]core.CashInflow, error)
	ListGenericExpenses(ctx context.Context) ([]core.GenericExpense, error)
	ListMarketPurchases(ctx context.Context) ([]core.MarketPurchase, error)
	ListMealRecords(ctx context.Context) ([]core.MealRecord, error)
	ListFriendTransactions(ctx context.Context) ([]core.FriendTransaction, error)
	ListBudgets(ctx context.Context) ([]core.Budget, error)
	ListMenu(ctx context.Context) ([]core.MenuDay, error)
	GetMenuDay(ctx context.Context, day time.Weekday) (core.MenuDay, error)
}

// Deps wires the server to the rest of the application. Metrics may be nil.
type Deps struct {
	Ledger    *services.LedgerService
	Store     Reader
	Refresher *refresh.Refresher
	Tokens    *auth.JWTManager
	Exporter  *export.Exporter
	Assistant *assistant.Builder
	Metrics   *metrics.Metrics
	Currency  string
	// MutationsPerMinute caps writes per client; 0 uses the limiter default.
	MutationsPerMinute int
}

type Server struct {
	http.Server
	ledger    *services.LedgerService
	store     Reader
	refresher *refresh.Refresher
	tokens    *auth.JWTManager
	exporter  *export.Exporter
	assistant *assistant.Builder
	metrics   *metrics.Metrics
	currency  string

	validate  *validator.Validate
	detector  *security.Detector
	limiter   *ratelimit.Limiter
	tracer    *trace.Middleware
	resources map[string]resource

	started time.Time
	now     func() time.Time

	stopLimiter  context.CancelFunc
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, d Deps) *Server {
	mux := http.NewServeMux()
	detector := security.NewDetector()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		ledger:    d.Ledger,
		store:     d.Store,
		refresher: d.Refresher,
		tokens:    d.Tokens,
		exporter:  d.Exporter,
		assistant: d.Assistant,
		metrics:   d.Metrics,
		currency:  d.Currency,
		validate:  newValidator(),
		detector:  detector,
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: d.MutationsPerMinute}),
		tracer:    trace.NewMiddleware(detector.ExtractClientIP),
		started:   time.Now(),
		now:       time.Now,
	}
	s.resources = s.buildResources()

	limiterCtx, cancel := context.WithCancel(context.Background())
	s.stopLimiter = cancel
	go s.limiter.Run(limiterCtx)

	s.routes(mux)

	var h http.Handler = mux
	h = s.limiter.Middleware(detector.ExtractClientIP, s.handleRateLimited)(h)
	h = detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.tracer.Middleware(h)
	s.Handler = h

	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	mux.HandleFunc("GET /api/me", s.authenticated(s.handleMe))
	mux.HandleFunc("GET /api/dashboard", s.authenticated(s.handleDashboard))
	mux.HandleFunc("GET /api/budgets/progress", s.authenticated(s.handleBudgetProgress))
	mux.HandleFunc("GET /api/assistant/context", s.authenticated(s.handleAssistantContext))
	mux.HandleFunc("GET /api/export", s.authenticated(s.handleExport))

	mux.HandleFunc("GET /api/menu", s.authenticated(s.handleListMenu))
	mux.HandleFunc("PUT /api/menu/{day}", s.authenticated(s.handleUpsertMenu))

	mux.HandleFunc("GET /api/users", s.authenticated(s.handleListUsers))
	mux.HandleFunc("PUT /api/users/{id}/edit-access", s.authenticated(s.handleSetEditAccess))

	mux.HandleFunc("POST /api/friends/{id}/settle", s.authenticated(s.handleSettleFriend))

	mux.HandleFunc("GET /api/{collection}", s.authenticated(s.handleList))
	mux.HandleFunc("POST /api/{collection}", s.authenticated(s.handleCreate))
	mux.HandleFunc("PUT /api/{collection}/{id}", s.authenticated(s.handleUpdate))
	mux.HandleFunc("DELETE /api/{collection}/{id}", s.authenticated(s.handleDelete))
}

// Shutdown stops background work and drains the HTTP server. It is safe to
// call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.stopLimiter()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
