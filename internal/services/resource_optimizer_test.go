package services

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/stretchr/testify/assert"
)

func pinnedOptimizer(cores int, err error) *ResourceOptimizer {
	return &ResourceOptimizer{
		cpuCounts:  func(context.Context, bool) (int, error) { return cores, err },
		cpuPercent: func(context.Context) (float64, error) { return 42.5, nil },
		virtualMem: func(context.Context) (*mem.VirtualMemoryStat, error) {
			return &mem.VirtualMemoryStat{Total: 16 * 1024 * 1024 * 1024, UsedPercent: 61.0}, nil
		},
	}
}

func TestResourceOptimizer_WorkerCount(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		cores      int
		err        error
		configured int
		want       int
	}{
		{"configured wins", 8, nil, 10, 10},
		{"configured capped", 8, nil, 1000, maxWorkers},
		{"zero uses cores", 12, nil, 0, 12},
		{"negative uses cores", 4, nil, -1, 4},
		{"cores capped", 256, nil, 0, maxWorkers},
		{"probe failure falls back", 0, errors.New("no /proc"), 0, min(max(runtime.NumCPU(), minWorkers), maxWorkers)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ro := pinnedOptimizer(tt.cores, tt.err)
			assert.Equal(t, tt.want, ro.WorkerCount(ctx, tt.configured))
		})
	}
}

func TestResourceOptimizer_Snapshot(t *testing.T) {
	snap := pinnedOptimizer(8, nil).Snapshot(context.Background())

	assert.Equal(t, 8, snap.CPUCores)
	assert.Equal(t, 42.5, snap.CPUPercent)
	assert.Equal(t, 61.0, snap.MemoryPercent)
	assert.InDelta(t, 16.0, snap.MemoryTotalGB, 1e-9)
	assert.Positive(t, snap.Goroutines)
}

func TestNewResourceOptimizer_RealHost(t *testing.T) {
	ro := NewResourceOptimizer()
	assert.GreaterOrEqual(t, ro.WorkerCount(context.Background(), 0), minWorkers)
	_ = ro.Snapshot(context.Background())
}
