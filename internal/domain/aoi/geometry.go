// Package aoi models the user-drawn area of interest and decides whether it
// may be sent to the raster backend.
package aoi

import (
	"bytes"
	"fmt"
	"math"

	"github.com/goccy/go-json"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/xy"
)

const minRingVertices = 4

// Geometry is a validated single-ring lon/lat polygon. It is immutable once
// constructed.
type Geometry struct {
	poly *geom.Polygon
}

// New builds a Geometry from a closed ring of lon/lat coordinates.
func New(ring []geom.Coord) (*Geometry, error) {
	if len(ring) < minRingVertices {
		return nil, fmt.Errorf("%w: ring has %d vertices, need at least %d", ErrInvalidGeometry, len(ring), minRingVertices)
	}

	flat := make([]float64, 0, 2*len(ring))
	for i, c := range ring {
		if len(c) < 2 {
			return nil, fmt.Errorf("%w: vertex %d has %d ordinates", ErrInvalidGeometry, i, len(c))
		}
		lon, lat := c[0], c[1]
		if !finite(lon) || !finite(lat) {
			return nil, fmt.Errorf("%w: vertex %d is not finite", ErrInvalidGeometry, i)
		}
		flat = append(flat, lon, lat)
	}

	first, last := ring[0], ring[len(ring)-1]
	if first[0] != last[0] || first[1] != last[1] {
		return nil, fmt.Errorf("%w: ring is not closed", ErrInvalidGeometry)
	}

	poly := geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)}).SetSRID(4326)
	if poly.Area() == 0 {
		return nil, fmt.Errorf("%w: ring encloses no area", ErrInvalidGeometry)
	}
	return &Geometry{poly: poly}, nil
}

// NewRectangle builds the closed axis-aligned rectangle the drawing surface
// produces, wound counter-clockwise from the south-west corner.
func NewRectangle(minLon, minLat, maxLon, maxLat float64) (*Geometry, error) {
	if minLon >= maxLon || minLat >= maxLat {
		return nil, fmt.Errorf("%w: empty rectangle", ErrInvalidGeometry)
	}
	return New([]geom.Coord{
		{minLon, minLat},
		{maxLon, minLat},
		{maxLon, maxLat},
		{minLon, maxLat},
		{minLon, minLat},
	})
}

// Ring returns a copy of the polygon's vertices, closing vertex included.
func (g *Geometry) Ring() []geom.Coord {
	return g.poly.Coords()[0]
}

// Polygon returns a copy of the underlying go-geom polygon.
func (g *Geometry) Polygon() *geom.Polygon {
	return g.poly.Clone()
}

// Bounds returns the lon/lat bounding box as minLon, minLat, maxLon, maxLat.
func (g *Geometry) Bounds() (minLon, minLat, maxLon, maxLat float64) {
	b := g.poly.Bounds()
	return b.Min(0), b.Min(1), b.Max(0), b.Max(1)
}

// Centroid returns the area-weighted centroid as lon, lat.
func (g *Geometry) Centroid() (lon, lat float64, err error) {
	c, err := xy.Centroid(g.poly)
	if err != nil {
		return 0, 0, fmt.Errorf("centroid: %w", err)
	}
	return c.X(), c.Y(), nil
}

// MarshalJSON encodes the geometry as a GeoJSON Polygon.
func (g *Geometry) MarshalJSON() ([]byte, error) {
	return geojson.Marshal(g.poly)
}

type geoJSONDoc struct {
	Type        string          `json:"type"`
	Geometry    json.RawMessage `json:"geometry"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Decode parses an AOI from JSON. It accepts {"geometry": {...}}, a GeoJSON
// Feature, or a bare Polygon geometry. The geometry "type" may be omitted but
// must be Polygon when present.
func Decode(data []byte) (*Geometry, error) {
	var doc geoJSONDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGeometry, err)
	}

	if present(doc.Geometry) {
		if doc.Type != "" && doc.Type != "Feature" {
			return nil, fmt.Errorf("%w: unexpected wrapper type %q", ErrInvalidGeometry, doc.Type)
		}
		inner := doc.Geometry
		doc = geoJSONDoc{}
		if err := json.Unmarshal(inner, &doc); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidGeometry, err)
		}
	}

	if doc.Type != "" && doc.Type != "Polygon" {
		return nil, fmt.Errorf("%w: geometry type %q is not Polygon", ErrInvalidGeometry, doc.Type)
	}
	if !present(doc.Coordinates) {
		return nil, fmt.Errorf("%w: missing coordinates", ErrInvalidGeometry)
	}

	var rings [][][]float64
	if err := json.Unmarshal(doc.Coordinates, &rings); err != nil {
		return nil, fmt.Errorf("%w: coordinates: %w", ErrInvalidGeometry, err)
	}
	if len(rings) != 1 {
		return nil, fmt.Errorf("%w: expected exactly one ring, got %d", ErrInvalidGeometry, len(rings))
	}

	ring := make([]geom.Coord, len(rings[0]))
	for i, pos := range rings[0] {
		ring[i] = geom.Coord(pos)
	}
	return New(ring)
}

func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
