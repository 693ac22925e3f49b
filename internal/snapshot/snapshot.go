// Package snapshot composes the per-metric collectors into a single
// point-in-time resource measurement.
//
// A Snapshot is a value object: built fresh on every sampling cycle, never
// mutated. The builder guarantees a fully populated snapshot — a collector
// that fails or panics contributes its documented default instead of a
// missing field, so the session layer never has to care whether measurement
// worked.
package snapshot

import (
	"math"
	"time"

	"github.com/driftnet-io/drift-agent/internal/metrics"
)

// Snapshot is one complete resource measurement. Field names match the wire
// protocol; the session layer flattens these into register and heartbeat
// messages.
type Snapshot struct {
	CPUFreePercent float64         `json:"cpu_free_percent"`
	RAMFreeMB      uint64          `json:"ram_free_mb"`
	RAMTotalMB     uint64          `json:"ram_total_mb"`
	RAMUsedPercent float64         `json:"ram_used_percent"`
	Battery        metrics.Battery `json:"battery"`
	Storage        metrics.Storage `json:"storage"`
	Network        metrics.Network `json:"network"`
	Timestamp      time.Time       `json:"timestamp"`
}

// Sampler is the collector surface the builder consumes. Satisfied by
// *metrics.Collector; tests substitute stubs.
type Sampler interface {
	CPUFreePercent() float64
	Memory() (freeMB, totalMB uint64)
	Battery() metrics.Battery
	Storage() metrics.Storage
	Network() metrics.Network
}

// Builder produces snapshots from a sampler.
type Builder struct {
	sampler Sampler
	now     func() time.Time
}

// NewBuilder creates a snapshot builder around the given sampler.
func NewBuilder(sampler Sampler) *Builder {
	return &Builder{sampler: sampler, now: time.Now}
}

// WithClock overrides the timestamp source. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build runs every collector sequentially and returns a complete snapshot.
// It never fails: a collector that panics past its own chain is replaced by
// that metric's default here.
func (b *Builder) Build() Snapshot {
	snap := Snapshot{Timestamp: b.now().UTC()}

	snap.CPUFreePercent = safeFloat(b.sampler.CPUFreePercent, metrics.DefaultCPUFreePercent)
	snap.RAMFreeMB, snap.RAMTotalMB = safeMemory(b.sampler.Memory)
	snap.RAMUsedPercent = UsedPercent(snap.RAMFreeMB, snap.RAMTotalMB)
	snap.Battery = safeValue(b.sampler.Battery, metrics.DefaultBattery())
	snap.Storage = safeValue(b.sampler.Storage, metrics.DefaultStorage())
	snap.Network = safeValue(b.sampler.Network, metrics.Network{})

	return snap
}

// UsedPercent derives the used-memory percentage from free and total MB,
// rounded to two decimals. Zero total yields zero rather than a division by
// zero.
func UsedPercent(freeMB, totalMB uint64) float64 {
	if totalMB == 0 {
		return 0
	}
	if freeMB > totalMB {
		freeMB = totalMB
	}
	used := float64(totalMB-freeMB) / float64(totalMB) * 100
	return math.Round(used*100) / 100
}

func safeValue[T any](fn func() T, fallback T) (value T) {
	defer func() {
		if recover() != nil {
			value = fallback
		}
	}()
	return fn()
}

func safeFloat(fn func() float64, fallback float64) float64 {
	return safeValue(fn, fallback)
}

func safeMemory(fn func() (uint64, uint64)) (freeMB, totalMB uint64) {
	defer func() {
		if recover() != nil {
			freeMB, totalMB = 0, 0
		}
	}()
	return fn()
}
