// Package memory sizes the transcription worker pool from live system telemetry.
package memory

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// ErrTelemetryUnavailable indicates system memory/CPU statistics could not be read.
var ErrTelemetryUnavailable = errors.New("system telemetry unavailable")

// Default pool configuration.
const (
	defaultMinWorkers  = 1
	defaultMaxWorkers  = 4
	defaultPerWorkerGB = 2.0
	defaultReserveGB   = 2.0

	// DefaultPressureThreshold is the used-memory percentage above which
	// the system is considered under memory pressure. Advisory only.
	DefaultPressureThreshold = 80.0
)

// Snapshot is a point-in-time view of system memory and CPU capacity.
// Memory is volatile between runs, so a Snapshot must be taken fresh
// immediately before each sizing decision, never cached.
type Snapshot struct {
	TotalGB     float64
	AvailableGB float64
	UsedPercent float64
	CPUCount    int
}

// PoolConfig bounds the transcription worker pool.
// Read-only during a run; adjusted between runs by the operator.
type PoolConfig struct {
	MinWorkers  int     // Lower bound, at least 1.
	MaxWorkers  int     // Upper bound regardless of available resources.
	PerWorkerGB float64 // Expected peak memory per worker.
	ReserveGB   float64 // Memory held back for the rest of the system.
}

// DefaultPoolConfig returns the default worker pool bounds.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MinWorkers:  defaultMinWorkers,
		MaxWorkers:  defaultMaxWorkers,
		PerWorkerGB: defaultPerWorkerGB,
		ReserveGB:   defaultReserveGB,
	}
}

// normalized returns a copy with invalid fields replaced by safe values.
// MinWorkers wins over MaxWorkers when the two contradict.
func (c PoolConfig) normalized() PoolConfig {
	if c.MinWorkers < 1 {
		c.MinWorkers = defaultMinWorkers
	}
	if c.MaxWorkers < c.MinWorkers {
		c.MaxWorkers = c.MinWorkers
	}
	if c.PerWorkerGB <= 0 {
		c.PerWorkerGB = defaultPerWorkerGB
	}
	if c.ReserveGB < 0 {
		c.ReserveGB = 0
	}
	return c
}

// Workers computes the safe transcription concurrency for a snapshot.
//
//	budget  = floor((available - reserve) / perWorker), floored at MinWorkers
//	optimal = min(cpuCount, MaxWorkers, budget)
//	optimal = max(MinWorkers, optimal)
//
// The result is the pipeline's backpressure mechanism: it is never exceeded,
// so memory exhaustion from over-parallel transcription cannot occur.
func Workers(s Snapshot, cfg PoolConfig) int {
	cfg = cfg.normalized()

	budget := int(math.Floor((s.AvailableGB - cfg.ReserveGB) / cfg.PerWorkerGB))
	if budget < cfg.MinWorkers {
		budget = cfg.MinWorkers
	}

	optimal := min(s.CPUCount, cfg.MaxWorkers, budget)
	return max(cfg.MinWorkers, optimal)
}

// Pressure reports whether used memory exceeds the advisory threshold.
// It never gates the Workers formula.
func Pressure(s Snapshot, threshold float64) bool {
	return s.UsedPercent > threshold
}

// Telemetry reads system memory and CPU capacity.
type Telemetry interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Compile-time interface implementation check.
var _ Telemetry = (*SystemTelemetry)(nil)

// virtualMemoryFn reads virtual memory statistics.
type virtualMemoryFn func(ctx context.Context) (*mem.VirtualMemoryStat, error)

// cpuCountsFn reads the logical CPU count.
type cpuCountsFn func(ctx context.Context, logical bool) (int, error)

// SystemTelemetry reads live telemetry via gopsutil.
type SystemTelemetry struct {
	vm     virtualMemoryFn
	counts cpuCountsFn
}

// TelemetryOption configures a SystemTelemetry.
type TelemetryOption func(*SystemTelemetry)

// WithVirtualMemoryFn sets the virtual memory reader (for testing).
func WithVirtualMemoryFn(fn virtualMemoryFn) TelemetryOption {
	return func(t *SystemTelemetry) {
		t.vm = fn
	}
}

// WithCPUCountsFn sets the CPU count reader (for testing).
func WithCPUCountsFn(fn cpuCountsFn) TelemetryOption {
	return func(t *SystemTelemetry) {
		t.counts = fn
	}
}

// NewSystemTelemetry creates telemetry backed by gopsutil.
func NewSystemTelemetry(opts ...TelemetryOption) *SystemTelemetry {
	t := &SystemTelemetry{
		vm:     mem.VirtualMemoryWithContext,
		counts: cpu.CountsWithContext,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Snapshot reads current memory and CPU capacity.
func (t *SystemTelemetry) Snapshot(ctx context.Context) (Snapshot, error) {
	vm, err := t.vm(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: virtual memory: %v", ErrTelemetryUnavailable, err)
	}

	cpus, err := t.counts(ctx, true)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: cpu count: %v", ErrTelemetryUnavailable, err)
	}

	const gib = float64(1 << 30)
	return Snapshot{
		TotalGB:     float64(vm.Total) / gib,
		AvailableGB: float64(vm.Available) / gib,
		UsedPercent: vm.UsedPercent,
		CPUCount:    cpus,
	}, nil
}
