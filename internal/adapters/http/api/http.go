// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	service "github.com/okian/zonal/internal/app"
	"github.com/okian/zonal/internal/domain/dataset"
	"github.com/okian/zonal/pkg/logger"
)

// Default API limits.
const (
	defaultDataset      = "Global-Land-Cover"
	defaultMaxBodyBytes = 1 << 20
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Compute runs one zonal statistics submission.
	Compute(ctx context.Context, sub service.Submission) (service.Outcome, error)
}

// Catalog exposes the read-only dataset registry.
type Catalog interface {
	Describe(key string) (*dataset.Descriptor, error)
	Keys() []string
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMaxBodyBytes caps the size of submitted AOIs.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithDefaultDataset sets the dataset used when a submission names none.
func WithDefaultDataset(key string) Option {
	return func(s *Server) {
		if key != "" {
			s.defaultDataset = key
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	log            logger.Logger
	maxBodyBytes   int64
	defaultDataset string

	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	zonalHandler    *ZonalHandler
	datasetsHandler *DatasetsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, catalog Catalog, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		log:            logger.Nop(),
		maxBodyBytes:   defaultMaxBodyBytes,
		defaultDataset: defaultDataset,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.zonalHandler = NewZonalHandler(deps, s.log, s.maxBodyBytes, s.defaultDataset)
	s.datasetsHandler = NewDatasetsHandler(catalog)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/v1/zonal-stats", MetricsMiddleware(s.zonalHandler.HandleCompute, "zonal_stats"))
	mux.HandleFunc("/v1/datasets", MetricsMiddleware(s.datasetsHandler.HandleList, "datasets"))
	mux.HandleFunc("/v1/datasets/", MetricsMiddleware(s.datasetsHandler.HandleGet, "dataset"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

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
