package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"financeiro/internal/auth"
	"financeiro/internal/log"
	"financeiro/internal/middleware/ratelimit"
	"financeiro/internal/middleware/security"
	"financeiro/internal/middleware/trace"
	"financeiro/internal/services"
)

// Config holds the transport settings of the server.
type Config struct {
	Addr        string
	CORSOrigins []string
	RateLimit   float64
	RateBurst   int
}

// Server exposes the services layer as JSON.
type Server struct {
	http.Server
	svc      *services.Service
	verifier *auth.Verifier
	logger   *log.Logger
	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware
	detector *security.Detector
	started  time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(cfg Config, svc *services.Service, verifier *auth.Verifier, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	detector := security.NewDetector()

	s := &Server{
		svc:      svc,
		verifier: verifier,
		logger:   logger,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerSecond: cfg.RateLimit,
			Burst:             cfg.RateBurst,
		}),
		tracer:   trace.NewMiddleware(detector.ExtractClientIP, logger),
		detector: detector,
		started:  time.Now(),
	}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusNotFound, "rota não encontrada", "")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusMethodNotAllowed, "método não permitido", "")
	})

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(
		s.limiter.Middleware(detector.ExtractClientIP, nil),
		verifier.Middleware(func(r *http.Request, err error) {
			log.FromContext(r.Context()).WithComponent(log.ComponentAuth).
				DebugContext(r.Context(), "Request without valid identity", log.FieldError, err.Error())
		}),
	)

	api.HandleFunc("/periods", s.handleListPeriods).Methods(http.MethodGet)
	api.HandleFunc("/periods", s.handleCreatePeriod).Methods(http.MethodPost)
	api.HandleFunc("/periods/activate", s.handleActivatePeriod).Methods(http.MethodPatch)
	api.HandleFunc("/periods/{id}/dashboard", s.handlePeriodDashboard).Methods(http.MethodGet)
	api.HandleFunc("/periods/{id}/records", s.handleRecords).Methods(http.MethodGet)
	api.HandleFunc("/periods/{id}/goal", s.handleGetGoal).Methods(http.MethodGet)
	api.HandleFunc("/periods/{id}/goal", s.handleSetGoal).Methods(http.MethodPut)

	api.HandleFunc("/categories", s.handleListCategories).Methods(http.MethodGet)
	api.HandleFunc("/categories", s.handleCreateCategory).Methods(http.MethodPost)
	api.HandleFunc("/payment-methods", s.handleListPaymentMethods).Methods(http.MethodGet)
	api.HandleFunc("/payment-methods", s.handleCreatePaymentMethod).Methods(http.MethodPost)

	api.HandleFunc("/dashboard", s.handleYearDashboard).Methods(http.MethodGet)
	api.HandleFunc("/goals", s.handleGoalComparison).Methods(http.MethodGet)
	api.HandleFunc("/goals/{year:[0-9]+}", s.handleBulkGoals).Methods(http.MethodPut)
	api.HandleFunc("/goals/{year:[0-9]+}", s.handleClearGoals).Methods(http.MethodDelete)

	s.recordRoutes(api)

	var h http.Handler = r
	h = cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type", trace.HeaderRequestID},
		ExposedHeaders:   []string{trace.HeaderRequestID},
	}).Handler(h)
	h = detector.Middleware(logger)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.tracer.Middleware(h)
	h = log.Middleware(logger)(h)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
