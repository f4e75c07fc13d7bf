package aoi

import "errors"

// Sentinel kinds for AOI errors.
var (
	ErrInvalidGeometry = errors.New("invalid geometry")
	ErrTooLarge        = errors.New("aoi too large")
	ErrOutsideBoundary = errors.New("aoi outside boundary")
)
