// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/okian/footprint/internal/adapters/http/swagger"
	service "github.com/okian/footprint/internal/app"
	"github.com/okian/footprint/internal/domain/model"
	"github.com/okian/footprint/pkg/logger"
)

const defaultRequestTimeout = 30 * time.Second

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	StatsProvider

	ProcessVisit(ctx context.Context, req service.VisitRequest) (service.VisitResult, error)
	Visitor(ctx context.Context, id string) (model.VisitorRecord, error)
	VisitorInsight(ctx context.Context, id string) (model.VisitorInsight, error)
	Analytics(ctx context.Context) (service.AnalyticsReport, error)
}

// Server wires HTTP routes for the visitor API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	visitsHandler    *VisitsHandler
	visitorsHandler  *VisitorsHandler
	analyticsHandler *AnalyticsHandler

	corsOrigins    []string
	requestTimeout time.Duration
	logger         logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(deps),
		visitsHandler:    NewVisitsHandler(deps),
		visitorsHandler:  NewVisitorsHandler(deps),
		analyticsHandler: NewAnalyticsHandler(deps),
		corsOrigins:      []string{"*"},
		requestTimeout:   defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("http")
	}
	return s
}

// Router builds the chi router with middleware and every route attached.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(s.logger))
	r.Use(MetricsMiddleware)
	r.Use(middleware.Timeout(s.requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/stats", s.statsHandler.HandleStats)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/visits", s.visitsHandler.HandlePostVisit)
		r.Get("/visitors/{id}", s.visitorsHandler.HandleGetVisitor)
		r.Get("/visitors/{id}/patterns", s.visitorsHandler.HandleGetPatterns)
		r.Get("/analytics", s.analyticsHandler.HandleGetAnalytics)
	})

	swagger.Register(r)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	})
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
