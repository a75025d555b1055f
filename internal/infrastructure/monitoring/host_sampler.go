package monitoring

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// GopsutilSampler reads host CPU and memory utilization. It satisfies
// ports.HostSampler; tests substitute a fixed-value sampler.
type GopsutilSampler struct{}

func NewGopsutilSampler() *GopsutilSampler {
	return &GopsutilSampler{}
}

func (s *GopsutilSampler) Sample(ctx context.Context) (float64, float64, error) {
	// Interval 0 returns utilization since the previous call without
	// blocking the metrics cycle.
	cpuPercents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to sample cpu: %w", err)
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to sample memory: %w", err)
	}

	cpuUsage := 0.0
	if len(cpuPercents) > 0 {
		cpuUsage = cpuPercents[0]
	}

	return cpuUsage, vm.UsedPercent, nil
}
