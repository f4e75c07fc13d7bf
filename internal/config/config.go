// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New() returns a Config populated with defaults.
// - Load(ctx) layers defaults, an optional YAML file and ZONAL_* env vars.
// - External errors are wrapped with this package's sentinel kinds.
package config

// Area metric names accepted by area_metric.
const (
	MetricGeodesicKm2 = "geodesic_km2"
	MetricPlanarDeg2  = "planar_deg2"
)

// Default area ceilings per metric, used when max_area is not set.
const (
	DefaultMaxAreaKm2  = 300_000
	DefaultMaxAreaDeg2 = 25.0
)

// DefaultMaxArea returns the area ceiling for metric in that metric's units.
func DefaultMaxArea(metric string) float64 {
	if metric == MetricPlanarDeg2 {
		return DefaultMaxAreaDeg2
	}
	return DefaultMaxAreaKm2
}

// Backend names accepted by backend.
const (
	BackendSimulated = "simulated"
	BackendHTTP      = "http"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// MaxArea is the AOI area ceiling, expressed in AreaMetric units. Load
	// derives it from AreaMetric when it is not set explicitly.
	MaxArea float64 `koanf:"max_area" validate:"gt=0"`
	// AreaMetric selects how AOI area is measured.
	AreaMetric string `koanf:"area_metric" validate:"oneof=geodesic_km2 planar_deg2"`

	// Backend selects the raster backend implementation.
	Backend string `koanf:"backend" validate:"oneof=simulated http"`
	// BackendURL is the base URL of the remote reducer when Backend is "http".
	BackendURL string `koanf:"backend_url" validate:"required_if=Backend http,omitempty,url"`
	// BackendTimeoutMS bounds a single aggregation round trip.
	BackendTimeoutMS int `koanf:"backend_timeout_ms" validate:"gt=0"`
	// BackendRatePerSec and BackendBurst throttle outgoing reducer calls.
	BackendRatePerSec float64 `koanf:"backend_rate_per_sec" validate:"gt=0"`
	BackendBurst      int     `koanf:"backend_burst" validate:"gt=0"`

	// Circuit breaker around the HTTP backend.
	BreakerFailureRatio  float64 `koanf:"breaker_failure_ratio" validate:"gt=0,lte=1"`
	BreakerMinRequests   int     `koanf:"breaker_min_requests" validate:"gt=0"`
	BreakerOpenTimeoutMS int     `koanf:"breaker_open_timeout_ms" validate:"gt=0"`

	// SimulatedLatencyMinMS and SimulatedLatencyMaxMS bound the simulated backend latency.
	SimulatedLatencyMinMS int `koanf:"simulated_latency_min_ms" validate:"gte=0"`
	SimulatedLatencyMaxMS int `koanf:"simulated_latency_max_ms" validate:"gtefield=SimulatedLatencyMinMS"`

	// DefaultTopN is used when a request does not ask for a class count.
	DefaultTopN int `koanf:"default_top_n" validate:"gt=0,ltefield=MaxTopN"`
	// MaxTopN caps the "top" request field.
	MaxTopN int `koanf:"max_top_n" validate:"gt=0"`

	// CatalogPath optionally replaces the embedded dataset catalog.
	CatalogPath string `koanf:"catalog_path"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		Addr:                  ":9080",
		MaxArea:               DefaultMaxAreaKm2,
		AreaMetric:            MetricGeodesicKm2,
		Backend:               BackendSimulated,
		BackendTimeoutMS:      30_000,
		BackendRatePerSec:     5,
		BackendBurst:          5,
		BreakerFailureRatio:   0.6,
		BreakerMinRequests:    10,
		BreakerOpenTimeoutMS:  60_000,
		SimulatedLatencyMinMS: 80,
		SimulatedLatencyMaxMS: 150,
		DefaultTopN:           8,
		MaxTopN:               50,
	}
}
