package probe

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/okian/zonal/pkg/logger"
)

// Run executes one probe: health check, submission and rendering. A run that
// does not reach done returns ErrNotDone after its outcome is printed.
func Run(ctx context.Context, cfg *Config, w io.Writer) error {
	start := time.Now()
	log := logger.Get().Named("probe")

	log.Info(ctx, "starting zonal probe",
		logger.String("baseURL", cfg.BaseURL),
		logger.Any("datasets", cfg.Datasets),
		logger.Int("topN", cfg.TopN),
		logger.Duration("timeout", cfg.Timeout))

	geometry, err := buildGeometry(cfg)
	if err != nil {
		return fmt.Errorf("build aoi: %w", err)
	}

	client := NewHTTPClient(cfg.BaseURL, cfg.Timeout)
	if err := client.Health(ctx); err != nil {
		return err
	}

	out, err := client.Compute(ctx, Request{Geometry: geometry, Datasets: cfg.Datasets, Top: cfg.TopN})
	if err != nil {
		return err
	}

	if err := Render(w, out, cfg.Verbose); err != nil {
		return fmt.Errorf("render: %w", err)
	}

	log.Info(ctx, "probe finished",
		logger.String("run_id", out.RunID),
		logger.String("state", out.State),
		logger.Duration("duration", time.Since(start)))

	if !out.Done() {
		return fmt.Errorf("%w: %s (%s)", ErrNotDone, out.State, out.Reason)
	}
	return nil
}
