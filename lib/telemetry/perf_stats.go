package telemetry

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"go.opentelemetry.io/otel"
)

var meter = otel.Meter("go.perf_stats")
var cpuGauge, _ = meter.Float64Gauge("cpu_usage")
var memoryGauge, _ = meter.Int64Gauge("allocated_mb")
var goroutineGauge, _ = meter.Int64Gauge("goroutine_count")

// PerfSample is a snapshot of the process, taken while reports are fetched.
type PerfSample struct {
	// CPUPercent is the system wide usage since the previous sample, it is
	// negative when it could not be read.
	CPUPercent  float64
	AllocatedMB int64
	Goroutines  int
}

func (s PerfSample) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("cpu_percent", s.CPUPercent),
		slog.Int64("allocated_mb", s.AllocatedMB),
		slog.Int("goroutines", s.Goroutines),
	)
}

// SamplePerfStats reads the current process statistics. Memory and
// goroutines are always filled in, the error is about cpu usage.
func SamplePerfStats(ctx context.Context) (PerfSample, error) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	sample := PerfSample{
		CPUPercent:  -1,
		AllocatedMB: int64(memStats.Alloc / 1_000_000),
		Goroutines:  runtime.NumGoroutine(),
	}

	usage, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return sample, err
	}
	if len(usage) > 0 {
		sample.CPUPercent = usage[0]
	}
	return sample, nil
}

func (s PerfSample) record(ctx context.Context) {
	if s.CPUPercent >= 0 {
		cpuGauge.Record(ctx, s.CPUPercent)
	}
	memoryGauge.Record(ctx, s.AllocatedMB)
	goroutineGauge.Record(ctx, int64(s.Goroutines))
}

// InstrumentPerfStats records process gauges every `interval` until ctx is done.
func InstrumentPerfStats(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				sample, err := SamplePerfStats(ctx)
				if err != nil {
					slog.Debug("failed to read cpu usage", "err", err)
				}
				sample.record(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}
