package aoi

import (
	"fmt"
	"math"
)

// Metric names the unit an AOI area is measured in. The threshold of a
// Policy is always expressed in its Metric.
type Metric string

const (
	// GeodesicKm2 is the spherical-excess area of the ring on a sphere with
	// the WGS84 semi-major radius, in square kilometres.
	GeodesicKm2 Metric = "geodesic_km2"
	// PlanarDeg2 is the planar shoelace area of the raw lon/lat ring, in
	// square degrees.
	PlanarDeg2 Metric = "planar_deg2"
)

// Earth radius used for geodesic area, metres.
const wgs84SemiMajor = 6378137.0

// ParseMetric maps a configuration value onto a Metric.
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(s); m {
	case GeodesicKm2, PlanarDeg2:
		return m, nil
	default:
		return "", fmt.Errorf("unknown area metric %q", s)
	}
}

// Area measures g in metric m.
func (m Metric) Area(g *Geometry) float64 {
	if m == PlanarDeg2 {
		return PlanarDegrees(g)
	}
	return GeodesicArea(g)
}

// PlanarDegrees returns the planar area of g in square degrees.
func PlanarDegrees(g *Geometry) float64 {
	return math.Abs(g.poly.Area())
}

// GeodesicArea returns the area of g on the sphere in square kilometres.
// Latitude is interpolated linearly along each edge, which is exact for the
// axis-aligned rectangles the drawing surface produces.
func GeodesicArea(g *Geometry) float64 {
	ring := g.poly.FlatCoords()
	stride := g.poly.Stride()

	var sum float64
	for i := 0; i+stride < len(ring); i += stride {
		lon1, lat1 := radians(ring[i]), radians(ring[i+1])
		lon2, lat2 := radians(ring[i+stride]), radians(ring[i+stride+1])
		sum += (lon2 - lon1) * (2 + math.Sin(lat1) + math.Sin(lat2))
	}

	m2 := math.Abs(sum * wgs84SemiMajor * wgs84SemiMajor / 2)
	return m2 / 1e6
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
