// internal/metrics/collector.go
package metrics

import "math"

// Collector runs the per-metric strategy chains. Collection is sequential
// and each external probe is individually time-bounded, so one slow probe
// bounds only its own contribution to sampling latency.
type Collector struct {
	dataPath  string
	probeAddr string
	cpuCount  int
	logFn     func(level, msg string)
}

// CollectorConfig holds configuration for the metrics collector.
type CollectorConfig struct {
	// DataPath is the mount point reported as the primary data partition
	DataPath string

	// ProbeAddr is the coordinator host:port used for the direct
	// reachability probe (optional)
	ProbeAddr string

	// CPUCount is the logical CPU count used by the load-average estimate
	CPUCount int

	// LogFn is an optional callback for logging strategy failures
	LogFn func(level, msg string)
}

// NewCollector creates a metrics collector.
func NewCollector(cfg CollectorConfig) *Collector {
	if cfg.DataPath == "" {
		cfg.DataPath = "/"
	}
	return &Collector{
		dataPath:  cfg.DataPath,
		probeAddr: cfg.ProbeAddr,
		cpuCount:  cfg.CPUCount,
		logFn:     cfg.LogFn,
	}
}

// roundTo rounds v to the given number of decimal places.
func roundTo(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
