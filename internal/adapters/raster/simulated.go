package raster

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"strconv"
	"time"

	"github.com/okian/zonal/internal/domain/dataset"
)

// Default simulation settings.
const (
	defaultMinLatency   = 80 * time.Millisecond
	defaultMaxLatency   = 150 * time.Millisecond
	maxSimulatedClasses = 6
	maxSimulatedPixels  = 5000
	rampOvershoot       = 0.2
)

// SimulatedOption applies a configuration option to the SimulatedBackend.
type SimulatedOption func(*SimulatedBackend)

// WithLatencyRange sets the simulated round-trip latency range.
func WithLatencyRange(minLatency, maxLatency time.Duration) SimulatedOption {
	return func(s *SimulatedBackend) {
		if minLatency >= 0 && maxLatency > minLatency {
			s.minLatency = minLatency
			s.maxLatency = maxLatency
		}
	}
}

type valueDomain struct {
	classes []int
	ramp    bool
}

// SimulatedBackend fabricates plausible histograms without a remote service.
// Output depends only on the request geometry's bounds and source, so the same
// AOI always yields the same histogram.
type SimulatedBackend struct {
	domains    map[string]valueDomain
	minLatency time.Duration
	maxLatency time.Duration
}

// NewSimulatedBackend creates a backend that knows the value domain of every
// dataset in reg.
func NewSimulatedBackend(reg *dataset.Registry, opts ...SimulatedOption) *SimulatedBackend {
	s := &SimulatedBackend{
		domains:    make(map[string]valueDomain, reg.Len()),
		minLatency: defaultMinLatency,
		maxLatency: defaultMaxLatency,
	}
	for _, key := range reg.Keys() {
		d, err := reg.Describe(key)
		if err != nil {
			continue
		}
		s.domains[sourceID(d.Source)] = valueDomain{
			classes: d.ClassIDs(),
			ramp:    d.Ramp == dataset.RampIntervals,
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name identifies the backend in logs and metrics.
func (s *SimulatedBackend) Name() string { return "simulated" }

// FrequencyHistogram returns a synthetic histogram after a simulated delay.
func (s *SimulatedBackend) FrequencyHistogram(ctx context.Context, req Request) (Response, error) {
	if req.Geometry == nil {
		return nil, fmt.Errorf("simulated backend: missing geometry")
	}
	domain, ok := s.domains[sourceID(req.Source)]
	if !ok {
		return nil, fmt.Errorf("simulated backend: unknown source %q", sourceID(req.Source))
	}

	rng := rand.New(rand.NewSource(seedFor(req))) //nolint:gosec // deterministic by design

	latency := s.minLatency
	if span := s.maxLatency - s.minLatency; span > 0 {
		latency += time.Duration(rng.Int63n(int64(span)))
	}
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	case <-time.After(latency):
	}

	classes := domain.classes
	if req.Source.MaskMax != nil {
		kept := make([]int, 0, len(classes))
		for _, c := range classes {
			if c <= *req.Source.MaskMax {
				kept = append(kept, c)
			}
		}
		classes = kept
	}

	band := make(map[string]float64)
	if len(classes) > 0 {
		n := 1 + rng.Intn(min(maxSimulatedClasses, len(classes)))
		for _, i := range rng.Perm(len(classes))[:n] {
			count := float64(1 + rng.Intn(maxSimulatedPixels))
			band[s.valueKey(rng, domain, classes[i])] += count
		}
	}
	return Response{req.Source.Band: band}, nil
}

// valueKey renders a pixel value. Ramp datasets get a continuous value that
// reclassifies back into the chosen class.
func (s *SimulatedBackend) valueKey(rng *rand.Rand, d valueDomain, class int) string {
	if !d.ramp {
		return strconv.Itoa(class)
	}
	top := d.classes[len(d.classes)-1]
	if class == top {
		v := float64(top) * (1 + rng.Float64()*rampOvershoot)
		return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
	}
	v := float64(class) - rng.Float64()
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

func sourceID(src dataset.Source) string {
	if src.Asset != "" {
		return src.Asset
	}
	return src.Collection
}

func seedFor(req Request) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(sourceID(req.Source)))
	minLon, minLat, maxLon, maxLat := req.Geometry.Bounds()
	var buf [8]byte
	for _, f := range []float64{minLon, minLat, maxLon, maxLat} {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
		_, _ = h.Write(buf[:])
	}
	return int64(h.Sum64()) //nolint:gosec // seed only
}
