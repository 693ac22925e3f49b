// internal/metrics/cpu.go
package metrics

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
)

// DefaultCPUFreePercent is reported when no CPU strategy works. A neutral
// midpoint rather than zero: a hard zero would look like "no CPU available"
// and wrongly exclude a healthy device from placement.
const DefaultCPUFreePercent = 50.0

// cpuSampleInterval is how long the instantaneous CPU strategies observe the
// counters before computing an idle fraction.
const cpuSampleInterval = 250 * time.Millisecond

// cpuChain builds the CPU availability chain.
// Priority: gopsutil aggregate sample → /proc/stat delta → load average.
func (c *Collector) cpuChain() Chain[float64] {
	return Chain[float64]{
		Metric: "cpu_free_percent",
		Strategies: []Strategy[float64]{
			{Name: "gopsutil-sample", Try: cpuFreeFromSample},
			{Name: "procstat-delta", Try: cpuFreeFromProcStat},
			{Name: "loadavg-estimate", Try: c.cpuFreeFromLoadAvg},
		},
		Default: DefaultCPUFreePercent,
		LogFn:   c.logFn,
	}
}

// CPUFreePercent estimates the instantaneous idle CPU fraction in [0,100].
func (c *Collector) CPUFreePercent() float64 {
	value, _ := c.cpuChain().Collect()
	return value
}

// cpuFreeFromSample uses the OS-level aggregate busy counter sampled over a
// short interval. Not available on platforms that forbid kernel counter
// reads (some Android builds).
func cpuFreeFromSample() (float64, error) {
	percentages, err := cpu.Percent(cpuSampleInterval, false)
	if err != nil {
		return 0, err
	}
	if len(percentages) == 0 {
		return 0, fmt.Errorf("no aggregate cpu sample returned")
	}
	return clampPercent(100 - percentages[0]), nil
}

// cpuFreeFromProcStat computes the idle fraction from the delta of two raw
// /proc/stat reads separated by a short sleep.
func cpuFreeFromProcStat() (float64, error) {
	idle1, total1, err := readProcStat()
	if err != nil {
		return 0, err
	}
	time.Sleep(cpuSampleInterval)
	idle2, total2, err := readProcStat()
	if err != nil {
		return 0, err
	}
	if total2 <= total1 {
		return 0, fmt.Errorf("cpu counters did not advance")
	}
	free := float64(idle2-idle1) / float64(total2-total1) * 100
	return clampPercent(free), nil
}

// readProcStat returns the idle and total jiffies from the aggregate cpu
// line of /proc/stat.
func readProcStat() (idle, total uint64, err error) {
	content, err := readProbeFile("/proc/stat")
	if err != nil {
		return 0, 0, err
	}
	for _, line := range strings.Split(content, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 5 || fields[0] != "cpu" {
			continue
		}
		for i, field := range fields[1:] {
			value, err := strconv.ParseUint(field, 10, 64)
			if err != nil {
				return 0, 0, fmt.Errorf("bad /proc/stat field %q: %w", field, err)
			}
			total += value
			// field 4 is idle, field 5 is iowait
			if i == 3 || i == 4 {
				idle += value
			}
		}
		return idle, total, nil
	}
	return 0, 0, fmt.Errorf("no aggregate cpu line in /proc/stat")
}

// cpuFreeFromLoadAvg estimates idle capacity from the 1-minute load average
// spread over the logical core count. Coarse, but available nearly
// everywhere.
func (c *Collector) cpuFreeFromLoadAvg() (float64, error) {
	avg, err := load.Avg()
	if err != nil {
		return 0, err
	}
	cores := c.cpuCount
	if cores < 1 {
		cores = 1
	}
	free := (1 - avg.Load1/float64(cores)) * 100
	return clampPercent(free), nil
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
