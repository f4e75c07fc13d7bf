package probe

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/okian/zonal/internal/domain/aoi"
)

// ParseBBox parses "minLon,minLat,maxLon,maxLat" into a closed rectangle.
func ParseBBox(s string) (*aoi.Geometry, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("%w: got %q", ErrBadBBox, s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadBBox, err)
		}
		v[i] = f
	}
	return aoi.NewRectangle(v[0], v[1], v[2], v[3])
}

// LoadGeoJSON reads a Polygon or Feature file.
func LoadGeoJSON(path string) (*aoi.Geometry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read geojson: %w", err)
	}
	return aoi.Decode(data)
}

// buildGeometry resolves the AOI from cfg and validates it locally before it
// is sent.
func buildGeometry(cfg *Config) (json.RawMessage, error) {
	var (
		g   *aoi.Geometry
		err error
	)
	switch {
	case cfg.BBox != "":
		g, err = ParseBBox(cfg.BBox)
	case cfg.GeoJSON != "":
		g, err = LoadGeoJSON(cfg.GeoJSON)
	default:
		return nil, ErrNoGeometry
	}
	if err != nil {
		return nil, err
	}
	return g.MarshalJSON()
}
