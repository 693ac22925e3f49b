// internal/metrics/storage.go
package metrics

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/disk"
)

// Storage describes usage of the primary data partition.
type Storage struct {
	TotalGB     float64 `json:"total_gb"`
	FreeGB      float64 `json:"free_gb"`
	UsedPercent float64 `json:"used_percent"`
}

// DefaultStorage is reported when no storage strategy works.
func DefaultStorage() Storage {
	return Storage{TotalGB: 128, FreeGB: 64, UsedPercent: 50}
}

// storageChain builds the storage chain for the configured data path.
// Priority: df on the data path → gopsutil disk-usage API. The command goes
// first: on Android the statfs-based API can silently report the wrong
// mount, while df resolves the path the same way the OS does.
func (c *Collector) storageChain() Chain[Storage] {
	return Chain[Storage]{
		Metric: "storage",
		Strategies: []Strategy[Storage]{
			{Name: "df", Try: func() (Storage, error) { return storageFromDF(c.dataPath) }},
			{Name: "gopsutil-usage", Try: func() (Storage, error) { return storageFromUsage(c.dataPath) }},
		},
		Default: DefaultStorage(),
		LogFn:   c.logFn,
	}
}

// Storage returns usage of the primary data partition.
func (c *Collector) Storage() Storage {
	value, _ := c.storageChain().Collect()
	return value
}

// storageFromDF parses `df -k <path>` output.
func storageFromDF(path string) (Storage, error) {
	output, err := runCommand("df", "-k", path)
	if err != nil {
		return Storage{}, err
	}
	return parseDFOutput(output)
}

func parseDFOutput(output string) (Storage, error) {
	lines := strings.Split(output, "\n")
	if len(lines) < 2 {
		return Storage{}, fmt.Errorf("df output too short")
	}
	// Last line handles wrapped device names spanning two lines
	fields := strings.Fields(lines[len(lines)-1])
	if len(fields) < 4 {
		return Storage{}, fmt.Errorf("unexpected df output: %q", lines[len(lines)-1])
	}
	totalKB, err1 := strconv.ParseUint(fields[1], 10, 64)
	availKB, err2 := strconv.ParseUint(fields[3], 10, 64)
	if err1 != nil || err2 != nil || totalKB == 0 {
		return Storage{}, fmt.Errorf("unparseable df sizes: %q", lines[len(lines)-1])
	}
	totalGB := float64(totalKB) / (1024 * 1024)
	freeGB := float64(availKB) / (1024 * 1024)
	return Storage{
		TotalGB:     roundTo(totalGB, 2),
		FreeGB:      roundTo(freeGB, 2),
		UsedPercent: roundTo((totalGB-freeGB)/totalGB*100, 2),
	}, nil
}

// storageFromUsage uses the OS disk-usage API.
func storageFromUsage(path string) (Storage, error) {
	d, err := disk.Usage(path)
	if err != nil {
		return Storage{}, err
	}
	if d.Total == 0 {
		return Storage{}, fmt.Errorf("disk usage reported zero total for %s", path)
	}
	return Storage{
		TotalGB:     roundTo(float64(d.Total)/(1024*1024*1024), 2),
		FreeGB:      roundTo(float64(d.Free)/(1024*1024*1024), 2),
		UsedPercent: roundTo(d.UsedPercent, 2),
	}, nil
}
