package service

import "errors"

// Caller mistakes reported by Compute. Domain outcomes such as rejections and
// backend failures are reported through Outcome instead.
var (
	ErrNotStarted       = errors.New("service not started")
	ErrNoGeometry       = errors.New("no geometry submitted")
	ErrNoDatasets       = errors.New("no datasets requested")
	ErrDuplicateDataset = errors.New("dataset requested twice")
)
