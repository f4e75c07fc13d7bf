// Package service sequences AOI validation, raster aggregation and
// normalization into zonal statistics runs for the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/zonal/internal/adapters/raster"
	"github.com/okian/zonal/internal/domain/aoi"
	"github.com/okian/zonal/internal/domain/dataset"
	"github.com/okian/zonal/internal/domain/histogram"
	"github.com/okian/zonal/pkg/logger"
	"github.com/okian/zonal/pkg/metrics"
)

// Default service configuration.
const (
	defaultTopN    = 8
	defaultMaxTopN = 50
	defaultMaxArea = 300000
)

// Aggregator reduces a dataset's raster over a validated geometry.
type Aggregator interface {
	Aggregate(ctx context.Context, g *aoi.Geometry, desc *dataset.Descriptor) (histogram.RawHistogram, error)
}

// Submission is one compute request.
type Submission struct {
	Geometry *aoi.Geometry
	Datasets []string
	// TopN limits each result's ranked classes. Zero selects the default.
	TopN int
}

// Point is a lon/lat pair.
type Point struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Result is the distribution computed for one dataset.
type Result struct {
	Dataset      string                 `json:"dataset"`
	Title        string                 `json:"title,omitempty"`
	Units        string                 `json:"units,omitempty"`
	Distribution histogram.Distribution `json:"distribution"`
	Top          []histogram.Share      `json:"top"`
}

// Outcome is the terminal state of a run. Results is only populated when
// State is StateDone.
type Outcome struct {
	RunID       string       `json:"run_id"`
	State       State        `json:"state"`
	Reason      Reason       `json:"reason,omitempty"`
	Message     string       `json:"message,omitempty"`
	Area        float64      `json:"area"`
	AreaMetric  aoi.Metric   `json:"area_metric"`
	MaxArea     float64      `json:"max_area"`
	Centroid    *Point       `json:"centroid,omitempty"`
	Results     []Result     `json:"results,omitempty"`
	Transitions []Transition `json:"transitions"`
}

// Service runs zonal statistics computations.
type Service struct {
	mu sync.RWMutex

	// Core components
	registry   *dataset.Registry
	aggregator Aggregator
	policy     aoi.Policy

	// Configuration
	defaultTopN int
	maxTopN     int
	now         func() time.Time
	newID       func() string

	// State
	started bool
	runs    map[State]int64

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRegistry sets the dataset registry.
func WithRegistry(r *dataset.Registry) Option {
	return func(s *Service) {
		if r != nil {
			s.registry = r
		}
	}
}

// WithPolicy sets the AOI validation policy.
func WithPolicy(p aoi.Policy) Option {
	return func(s *Service) {
		if p.MaxArea > 0 {
			s.policy = p
		}
	}
}

// WithAggregator sets the histogram aggregator.
func WithAggregator(a Aggregator) Option {
	return func(s *Service) {
		if a != nil {
			s.aggregator = a
		}
	}
}

// WithTopN sets the default and maximum number of ranked classes per result.
func WithTopN(def, maxN int) Option {
	return func(s *Service) {
		if def > 0 && maxN >= def {
			s.defaultTopN = def
			s.maxTopN = maxN
		}
	}
}

// WithClock overrides the transition timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		policy:      aoi.NewPolicy(aoi.GeodesicKm2, defaultMaxArea),
		defaultTopN: defaultTopN,
		maxTopN:     defaultMaxTopN,
		now:         time.Now,
		newID:       uuid.NewString,
		runs:        make(map[State]int64),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start resolves defaults for unset components and marks the service ready.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting zonal statistics service...")

	if s.registry == nil {
		reg, err := dataset.Default()
		if err != nil {
			return fmt.Errorf("load embedded catalog: %w", err)
		}
		s.registry = reg
	}
	if s.aggregator == nil {
		s.aggregator = raster.NewAggregator(
			raster.NewSimulatedBackend(s.registry),
			raster.WithLogger(s.logger.Named("raster")),
		)
		s.logger.Info(ctx, "using simulated raster backend")
	}

	metrics.UpdateDatasetsRegistered(s.registry.Len())

	s.started = true
	s.logger.Info(ctx, "zonal statistics service started",
		logger.Int("datasets", s.registry.Len()),
		logger.String("areaMetric", string(s.policy.Metric)),
		logger.Float64("maxArea", s.policy.MaxArea),
	)

	return nil
}

// Stop marks the service stopped. In-flight runs finish normally.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.started = false
	s.logger.Info(context.Background(), "zonal statistics service stopped")
}

// Registry returns the dataset registry. It is nil before Start unless set
// with WithRegistry.
func (s *Service) Registry() *dataset.Registry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry
}

// Compute runs one submission through validation, aggregation and
// normalization. The returned error is reserved for caller mistakes; every
// domain outcome, including rejections and backend failures, is an Outcome.
func (s *Service) Compute(ctx context.Context, sub Submission) (Outcome, error) {
	s.mu.RLock()
	started, reg, agg, policy := s.started, s.registry, s.aggregator, s.policy
	s.mu.RUnlock()

	if !started {
		return Outcome{}, ErrNotStarted
	}
	if sub.Geometry == nil {
		return Outcome{}, ErrNoGeometry
	}
	descs, err := s.resolve(ctx, reg, sub.Datasets)
	if err != nil {
		return Outcome{}, err
	}
	topN := s.clampTopN(sub.TopN)

	r := newRun(s.newID(), s.now)
	runID := logger.String("run_id", r.id)
	out := Outcome{RunID: r.id, AreaMetric: policy.Metric, MaxArea: policy.MaxArea}

	s.logger.Debug(ctx, "zonal run submitted", runID, logger.Int("datasets", len(descs)))

	// Validating
	r.to(StateValidating)
	area, verr := policy.Validate(sub.Geometry)
	out.Area = area
	metrics.RecordAOIArea(area)
	if verr != nil {
		var rej *aoi.Rejection
		if !errors.As(verr, &rej) {
			return out, verr
		}
		r.fail(StateRejected, Reason(rej.Reason))
		out.Message = verr.Error()
		metrics.RecordRejection(string(rej.Reason))
		s.logger.Info(ctx, "aoi rejected", runID,
			logger.String("reason", string(rej.Reason)),
			logger.Float64("area", area))
		return s.finish(out, r), nil
	}
	if lon, lat, cerr := sub.Geometry.Centroid(); cerr == nil {
		out.Centroid = &Point{Lon: lon, Lat: lat}
	}

	// Aggregating
	r.to(StateAggregating)
	raws := make([]histogram.RawHistogram, len(descs))
	for i, desc := range descs {
		h, aerr := agg.Aggregate(ctx, sub.Geometry, desc)
		if aerr != nil {
			r.fail(StateFailed, ReasonBackendUnavailable)
			out.Message = aerr.Error()
			s.logger.Warn(ctx, "aggregation failed", runID,
				logger.String("dataset", desc.Key), logger.Error(aerr))
			return s.finish(out, r), nil
		}
		if len(h) == 0 || h.Total() == 0 {
			r.fail(StateFailed, ReasonEmptyHistogram)
			out.Message = "no data for this region"
			s.logger.Info(ctx, "no pixels in aoi", runID, logger.String("dataset", desc.Key))
			return s.finish(out, r), nil
		}
		raws[i] = h
	}

	// Normalizing
	r.to(StateNormalizing)
	results := make([]Result, 0, len(descs))
	for i, desc := range descs {
		dist, nerr := histogram.Normalize(raws[i], desc)
		if nerr != nil {
			reason := ReasonEmptyHistogram
			if errors.Is(nerr, dataset.ErrUnknownClass) {
				reason = ReasonUnknownClass
				metrics.RecordIntegrityError(desc.Key, string(reason))
				s.logger.Error(ctx, "class table drift", runID,
					logger.String("dataset", desc.Key), logger.Error(nerr))
			}
			r.fail(StateFailed, reason)
			out.Message = nerr.Error()
			return s.finish(out, r), nil
		}
		metrics.RecordDistributionClasses(desc.Key, len(dist.Shares))
		results = append(results, Result{
			Dataset:      desc.Key,
			Title:        desc.Title,
			Units:        desc.Units,
			Distribution: dist,
			Top:          histogram.TopN(dist, topN),
		})
	}

	r.to(StateDone)
	out.Results = results
	s.logger.Info(ctx, "zonal run done", runID,
		logger.Int("datasets", len(results)),
		logger.Float64("area", area))
	return s.finish(out, r), nil
}

// finish copies the run's terminal state into out and counts it.
func (s *Service) finish(out Outcome, r *run) Outcome {
	out.State, out.Reason, out.Transitions = r.state, r.reason, r.history

	s.mu.Lock()
	s.runs[r.state]++
	s.mu.Unlock()
	metrics.RecordRun(string(r.state), string(r.reason))

	return out
}

func (s *Service) resolve(ctx context.Context, reg *dataset.Registry, keys []string) ([]*dataset.Descriptor, error) {
	if len(keys) == 0 {
		return nil, ErrNoDatasets
	}
	seen := make(map[string]struct{}, len(keys))
	descs := make([]*dataset.Descriptor, 0, len(keys))
	for _, key := range keys {
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateDataset, key)
		}
		seen[key] = struct{}{}
		desc, err := reg.Describe(key)
		if err != nil {
			metrics.RecordIntegrityError(key, "unknown_dataset")
			s.logger.Error(ctx, "unknown dataset requested", logger.String("dataset", key))
			return nil, err
		}
		descs = append(descs, desc)
	}
	return descs, nil
}

func (s *Service) clampTopN(n int) int {
	switch {
	case n <= 0:
		return s.defaultTopN
	case n > s.maxTopN:
		return s.maxTopN
	default:
		return n
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":      s.started,
		"areaMetric":   string(s.policy.Metric),
		"maxArea":      s.policy.MaxArea,
		"defaultTopN":  s.defaultTopN,
		"maxTopN":      s.maxTopN,
		"runsDone":     s.runs[StateDone],
		"runsRejected": s.runs[StateRejected],
		"runsFailed":   s.runs[StateFailed],
	}

	if s.registry != nil {
		stats["datasets"] = s.registry.Len()
	}
	if a, ok := s.aggregator.(*raster.Aggregator); ok {
		stats["backend"] = a.Backend().Name()
	}

	return stats
}
