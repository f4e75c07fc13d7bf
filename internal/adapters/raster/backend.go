// Package raster talks to the remote raster backend that reduces a dataset's
// pixels over an AOI into a frequency histogram.
package raster

import (
	"context"

	"github.com/okian/zonal/internal/domain/aoi"
	"github.com/okian/zonal/internal/domain/dataset"
)

// ReducerFrequencyHistogram asks the backend for a pixel-value histogram.
const ReducerFrequencyHistogram = "frequencyHistogram"

// Request is one reduction over one geometry and one raster source.
type Request struct {
	Geometry *aoi.Geometry  `json:"geometry"`
	Source   dataset.Source `json:"source"`
	Reducer  string         `json:"reducer"`
	// BestEffort lets the backend approximate or skip unavailable tiles
	// instead of failing the reduction.
	BestEffort bool `json:"best_effort"`
}

// Response maps a band name to its histogram, keyed by pixel value as text.
type Response map[string]map[string]float64

// Backend computes frequency histograms. Implementations make a single
// attempt per call.
type Backend interface {
	Name() string
	FrequencyHistogram(ctx context.Context, req Request) (Response, error)
}
