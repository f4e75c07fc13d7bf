package aoi

import "fmt"

// Reason is the machine-readable cause of a rejection.
type Reason string

const (
	ReasonTooLarge        Reason = "too_large"
	ReasonOutsideBoundary Reason = "outside_boundary"
)

// Envelope is an inclusive lon/lat box.
type Envelope struct {
	MinLon, MinLat, MaxLon, MaxLat float64
}

// WorldEnvelope keeps AOIs away from the antimeridian and the poles, where the
// base map projection distorts the raster.
var WorldEnvelope = Envelope{MinLon: -175, MinLat: -85, MaxLon: 175, MaxLat: 85}

// Contains reports whether lon/lat lies inside e, edges included.
func (e Envelope) Contains(lon, lat float64) bool {
	return lon >= e.MinLon && lon <= e.MaxLon && lat >= e.MinLat && lat <= e.MaxLat
}

// Policy is the area ceiling and boundary an AOI must satisfy.
type Policy struct {
	Metric   Metric
	MaxArea  float64
	Envelope Envelope
}

// NewPolicy returns a Policy bounded by WorldEnvelope.
func NewPolicy(metric Metric, maxArea float64) Policy {
	return Policy{Metric: metric, MaxArea: maxArea, Envelope: WorldEnvelope}
}

// Rejection is the expected, user-facing outcome of a failed validation.
// It wraps ErrTooLarge or ErrOutsideBoundary.
type Rejection struct {
	Reason  Reason
	Area    float64
	MaxArea float64
	Metric  Metric
}

func (r *Rejection) Error() string {
	switch r.Reason {
	case ReasonTooLarge:
		return fmt.Sprintf("%s: area %.4f %s exceeds %.4f", ErrTooLarge, r.Area, r.Metric, r.MaxArea)
	default:
		return ErrOutsideBoundary.Error()
	}
}

func (r *Rejection) Unwrap() error {
	if r.Reason == ReasonTooLarge {
		return ErrTooLarge
	}
	return ErrOutsideBoundary
}

// IsTooLarge reports whether area is strictly greater than maxArea.
func IsTooLarge(area, maxArea float64) bool {
	return area > maxArea
}

// IsOutsideBoundary reports whether any vertex of g falls outside env.
func IsOutsideBoundary(g *Geometry, env Envelope) bool {
	for _, c := range g.Ring() {
		if !env.Contains(c[0], c[1]) {
			return true
		}
	}
	return false
}

// Validate measures g and checks it against p, area first. It returns the
// measured area in every case; the error is nil or a *Rejection.
func (p Policy) Validate(g *Geometry) (float64, error) {
	area := p.Metric.Area(g)
	if IsTooLarge(area, p.MaxArea) {
		return area, &Rejection{Reason: ReasonTooLarge, Area: area, MaxArea: p.MaxArea, Metric: p.Metric}
	}
	if IsOutsideBoundary(g, p.Envelope) {
		return area, &Rejection{Reason: ReasonOutsideBoundary, Area: area, MaxArea: p.MaxArea, Metric: p.Metric}
	}
	return area, nil
}
