package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/okian/zonal/internal/probe"
	"github.com/okian/zonal/pkg/logger"
)

// Default configuration constants.
const (
	defaultTopN    = 8
	defaultTimeout = time.Minute
)

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:9080", "Base URL of the service")
		bbox     = flag.String("bbox", "", "Rectangle as minLon,minLat,maxLon,maxLat")
		geoJSON  = flag.String("geojson", "", "Path to a GeoJSON Polygon or Feature")
		datasets = flag.String("datasets", "", "Comma separated dataset keys")
		topN     = flag.Int("top", defaultTopN, "Ranked classes per dataset")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		verbose  = flag.Bool("verbose", false, "Print every class instead of the top ones")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		probe.ShowHelp()
		return
	}

	if err := logger.InitWithWriter(os.Stderr); err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	config := &probe.Config{
		BaseURL:  strings.TrimSuffix(*baseURL, "/"),
		BBox:     *bbox,
		GeoJSON:  *geoJSON,
		Datasets: splitKeys(*datasets),
		TopN:     *topN,
		Timeout:  *timeout,
		Verbose:  *verbose,
	}

	if err := probe.Run(ctx, config, os.Stdout); err != nil {
		_, _ = os.Stderr.WriteString("Probe failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1) //nolint:gocritic // cancel already called
	}
}

func splitKeys(s string) []string {
	var keys []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
