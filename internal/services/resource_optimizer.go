package services

import (
	"context"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

const (
	minWorkers = 1
	maxWorkers = 64
)

// ResourceSnapshot captures host load at one moment of a run.
type ResourceSnapshot struct {
	CPUCores      int     `json:"cpu_cores"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryTotalGB float64 `json:"memory_total_gb"`
	Goroutines    int     `json:"goroutines"`
}

// ResourceOptimizer sizes the analysis worker pool from the host. The probe
// functions are fields so tests can pin the host shape.
type ResourceOptimizer struct {
	cpuCounts  func(ctx context.Context, logical bool) (int, error)
	cpuPercent func(ctx context.Context) (float64, error)
	virtualMem func(ctx context.Context) (*mem.VirtualMemoryStat, error)
}

// NewResourceOptimizer creates an optimizer backed by gopsutil.
func NewResourceOptimizer() *ResourceOptimizer {
	return &ResourceOptimizer{
		cpuCounts: cpu.CountsWithContext,
		cpuPercent: func(ctx context.Context) (float64, error) {
			// Zero interval compares against the previous call instead of blocking.
			p, err := cpu.PercentWithContext(ctx, 0, false)
			if err != nil || len(p) == 0 {
				return 0, err
			}
			return p[0], nil
		},
		virtualMem: mem.VirtualMemoryWithContext,
	}
}

// WorkerCount resolves the configured pool width. A positive value is used
// as given (capped); zero or less means one worker per logical CPU.
func (ro *ResourceOptimizer) WorkerCount(ctx context.Context, configured int) int {
	if configured > 0 {
		return min(configured, maxWorkers)
	}
	cores, err := ro.cpuCounts(ctx, true)
	if err != nil || cores <= 0 {
		cores = runtime.NumCPU()
	}
	return max(minWorkers, min(cores, maxWorkers))
}

// Snapshot reads current host load. Probe failures leave fields at zero.
func (ro *ResourceOptimizer) Snapshot(ctx context.Context) ResourceSnapshot {
	snap := ResourceSnapshot{Goroutines: runtime.NumGoroutine()}
	if cores, err := ro.cpuCounts(ctx, true); err == nil {
		snap.CPUCores = cores
	}
	if p, err := ro.cpuPercent(ctx); err == nil {
		snap.CPUPercent = p
	}
	if vm, err := ro.virtualMem(ctx); err == nil && vm != nil {
		snap.MemoryPercent = vm.UsedPercent
		snap.MemoryTotalGB = float64(vm.Total) / (1024 * 1024 * 1024)
	}
	return snap
}
