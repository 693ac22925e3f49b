// internal/metrics/memory.go
package metrics

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/mem"
)

// MemoryReading is the raw output of the RAM chain, in megabytes.
type MemoryReading struct {
	FreeMB  uint64
	TotalMB uint64
}

// memoryChain builds the RAM availability chain.
// Priority: gopsutil virtual-memory API → /proc/meminfo MemAvailable →
// derived MemFree+Buffers+Cached sum.
func (c *Collector) memoryChain() Chain[MemoryReading] {
	return Chain[MemoryReading]{
		Metric: "ram_free_mb",
		Strategies: []Strategy[MemoryReading]{
			{Name: "gopsutil-vm", Try: memoryFromVirtualMemory},
			{Name: "meminfo-available", Try: memoryFromMemAvailable},
			{Name: "meminfo-derived", Try: memoryFromFreeCachedBuffers},
		},
		Default: MemoryReading{},
		LogFn:   c.logFn,
	}
}

// Memory returns free and total RAM in megabytes.
func (c *Collector) Memory() (freeMB, totalMB uint64) {
	reading, _ := c.memoryChain().Collect()
	return reading.FreeMB, reading.TotalMB
}

// memoryFromVirtualMemory uses the OS virtual-memory API.
func memoryFromVirtualMemory() (MemoryReading, error) {
	v, err := mem.VirtualMemory()
	if err != nil {
		return MemoryReading{}, err
	}
	return MemoryReading{
		FreeMB:  v.Available / (1024 * 1024),
		TotalMB: v.Total / (1024 * 1024),
	}, nil
}

// memoryFromMemAvailable reads the kernel's own availability estimate from
// /proc/meminfo. Present since Linux 3.14.
func memoryFromMemAvailable() (MemoryReading, error) {
	fields, err := readMemInfo()
	if err != nil {
		return MemoryReading{}, err
	}
	available, ok := fields["MemAvailable"]
	if !ok {
		return MemoryReading{}, fmt.Errorf("no MemAvailable field in /proc/meminfo")
	}
	return MemoryReading{
		FreeMB:  available / 1024,
		TotalMB: fields["MemTotal"] / 1024,
	}, nil
}

// memoryFromFreeCachedBuffers approximates availability as
// MemFree+Buffers+Cached for kernels that predate MemAvailable.
func memoryFromFreeCachedBuffers() (MemoryReading, error) {
	fields, err := readMemInfo()
	if err != nil {
		return MemoryReading{}, err
	}
	free, okFree := fields["MemFree"]
	if !okFree {
		return MemoryReading{}, fmt.Errorf("no MemFree field in /proc/meminfo")
	}
	return MemoryReading{
		FreeMB:  (free + fields["Buffers"] + fields["Cached"]) / 1024,
		TotalMB: fields["MemTotal"] / 1024,
	}, nil
}

// readMemInfo parses /proc/meminfo into a field→kB map.
func readMemInfo() (map[string]uint64, error) {
	content, err := readProbeFile("/proc/meminfo")
	if err != nil {
		return nil, err
	}
	return parseMemInfo(content)
}

func parseMemInfo(content string) (map[string]uint64, error) {
	fields := make(map[string]uint64)
	for _, line := range strings.Split(content, "\n") {
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		key := strings.TrimSuffix(parts[0], ":")
		value, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			continue
		}
		fields[key] = value
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("no parseable fields in meminfo")
	}
	return fields, nil
}
