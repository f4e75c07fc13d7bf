package probe

import "os"

// ShowHelp prints usage information for the probe tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`Zonal Statistics Probe
======================

Submits one area of interest to a running server and prints the class
distribution of each requested dataset.

Usage:
  go run ./cmd/zonal-probe [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -bbox string
        Rectangle as minLon,minLat,maxLon,maxLat
  -geojson string
        Path to a GeoJSON Polygon or Feature (used when -bbox is empty)
  -datasets string
        Comma separated dataset keys (default: server default)
  -top int
        Ranked classes per dataset (default 8)
  -timeout duration
        HTTP request timeout (default 1m)
  -verbose
        Print every class instead of the top ones
  -help
        Show this help message

Examples:
  go run ./cmd/zonal-probe -bbox 10,45,11,46
  go run ./cmd/zonal-probe -bbox 10,45,11,46 -datasets Global-Land-Cover,Koppen-Geiger-Climate -top 3
  go run ./cmd/zonal-probe -geojson field.geojson -verbose
`)
}
