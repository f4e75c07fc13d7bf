package raster

import "errors"

// Sentinel kinds for raster backend errors.
var (
	// ErrBackendUnavailable is returned for every failed aggregation. More
	// specific causes are wrapped beneath it.
	ErrBackendUnavailable = errors.New("raster backend unavailable")
	ErrMalformedResponse  = errors.New("malformed backend response")
	ErrCircuitOpen        = errors.New("raster backend circuit open")
)
