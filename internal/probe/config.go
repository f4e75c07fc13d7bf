// Package probe submits an AOI to a running zonal statistics server and
// renders the returned distributions.
package probe

import (
	"errors"
	"time"
)

// Error constants.
var (
	ErrBadBBox       = errors.New("bbox must be minLon,minLat,maxLon,maxLat")
	ErrNoGeometry    = errors.New("one of -bbox or -geojson is required")
	ErrNotDone       = errors.New("run did not complete")
	ErrUnhealthy     = errors.New("service health check failed")
	ErrUnexpectedAPI = errors.New("unexpected api response")
)

// Config holds configuration for one probe run.
type Config struct {
	BaseURL  string        // Base URL of the service
	BBox     string        // minLon,minLat,maxLon,maxLat
	GeoJSON  string        // Path to a GeoJSON Polygon or Feature
	Datasets []string      // Dataset keys; empty uses the server default
	TopN     int           // Ranked classes per dataset
	Timeout  time.Duration // HTTP request timeout
	Verbose  bool          // Print the full distribution, not just the top classes
}

// Request mirrors the body of POST /v1/zonal-stats.
type Request struct {
	Geometry any      `json:"geometry"`
	Datasets []string `json:"datasets,omitempty"`
	Top      int      `json:"top,omitempty"`
}

// Share is one class's slice of a distribution.
type Share struct {
	ClassID    int     `json:"class_id"`
	Name       string  `json:"name"`
	Color      string  `json:"color"`
	Percentage float64 `json:"percentage"`
}

// Result is one dataset's distribution.
type Result struct {
	Dataset      string `json:"dataset"`
	Title        string `json:"title"`
	Distribution struct {
		Shares []Share `json:"shares"`
	} `json:"distribution"`
	Top []Share `json:"top"`
}

// Outcome is the server's answer for one run.
type Outcome struct {
	RunID      string   `json:"run_id"`
	State      string   `json:"state"`
	Reason     string   `json:"reason"`
	Message    string   `json:"message"`
	Area       float64  `json:"area"`
	AreaMetric string   `json:"area_metric"`
	MaxArea    float64  `json:"max_area"`
	Results    []Result `json:"results"`
}

// Done reports whether the run completed.
func (o Outcome) Done() bool { return o.State == "done" }
