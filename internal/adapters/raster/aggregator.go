package raster

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/okian/zonal/internal/domain/aoi"
	"github.com/okian/zonal/internal/domain/dataset"
	"github.com/okian/zonal/internal/domain/histogram"
	"github.com/okian/zonal/pkg/logger"
	"github.com/okian/zonal/pkg/metrics"
)

const defaultTimeout = 30 * time.Second

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithTimeout bounds each backend round trip.
func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.log = l
		}
	}
}

// Aggregator issues one best-effort frequency-histogram reduction per call and
// turns the backend's answer into a RawHistogram.
type Aggregator struct {
	backend Backend
	timeout time.Duration
	log     logger.Logger
}

// NewAggregator creates an aggregator over backend.
func NewAggregator(backend Backend, opts ...Option) *Aggregator {
	a := &Aggregator{
		backend: backend,
		timeout: defaultTimeout,
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Backend returns the wrapped backend.
func (a *Aggregator) Backend() Backend { return a.backend }

// Aggregate reduces desc's raster over g. Any failure, including a timeout or
// an unparsable answer, is returned as ErrBackendUnavailable; an empty
// histogram is only ever returned when the backend reported no pixels.
func (a *Aggregator) Aggregate(ctx context.Context, g *aoi.Geometry, desc *dataset.Descriptor) (histogram.RawHistogram, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	resp, err := a.backend.FrequencyHistogram(ctx, Request{
		Geometry:   g,
		Source:     desc.Source,
		Reducer:    ReducerFrequencyHistogram,
		BestEffort: true,
	})
	if err == nil {
		var h histogram.RawHistogram
		if h, err = decode(resp, desc); err == nil {
			metrics.RecordAggregationLatency(desc.Key, "ok", msSince(start))
			return h, nil
		}
	}

	kind := errorKind(err)
	metrics.RecordAggregationLatency(desc.Key, "error", msSince(start))
	metrics.RecordBackendError(a.backend.Name(), kind)
	a.log.Warn(ctx, "raster aggregation failed",
		logger.String("dataset", desc.Key),
		logger.String("backend", a.backend.Name()),
		logger.String("kind", kind),
		logger.Error(err))
	return nil, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
}

func decode(resp Response, desc *dataset.Descriptor) (histogram.RawHistogram, error) {
	band, ok := resp[desc.Source.Band]
	if !ok {
		return nil, fmt.Errorf("%w: band %q missing", ErrMalformedResponse, desc.Source.Band)
	}

	values := make(map[float64]float64, len(band))
	for key, count := range band {
		v, err := strconv.ParseFloat(key, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: pixel value %q", ErrMalformedResponse, key)
		}
		if !histogram.ValidCount(count) {
			return nil, fmt.Errorf("%w: pixel value %q has count %v", ErrMalformedResponse, key, count)
		}
		values[v] += count
	}

	var h histogram.RawHistogram
	if desc.Ramp == dataset.RampIntervals {
		h = histogram.Reclassify(values, desc.Breaks())
	} else {
		h = make(histogram.RawHistogram, len(values))
		for v, count := range values {
			if v != math.Trunc(v) {
				return nil, fmt.Errorf("%w: fractional class value %v", ErrMalformedResponse, v)
			}
			h[int(v)] += count
		}
	}

	if err := h.Check(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return h, nil
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "transport"
	}
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
