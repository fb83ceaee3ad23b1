package procio

import (
	"context"
	"runtime"
	"strings"
	"time"

	"github.com/dataguardian/agent/internal/models"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/process"
)

// Collector yields a snapshot of per-process cumulative disk I/O
// counters. A snapshot may be partial or empty; individual process
// failures are skipped, never fatal.
type Collector interface {
	Snapshot(ctx context.Context) ([]models.ProcessSample, error)
}

// GopsutilCollector implements Collector over the OS process table.
type GopsutilCollector struct {
	Logger zerolog.Logger
}

// NewGopsutilCollector returns a Collector backed by gopsutil.
func NewGopsutilCollector(logger zerolog.Logger) *GopsutilCollector {
	return &GopsutilCollector{Logger: logger}
}

// Snapshot enumerates running processes and returns one sample per
// process for which both a name and I/O counters could be read.
// Processes that exit mid-enumeration or deny access are skipped.
func (c *GopsutilCollector) Snapshot(ctx context.Context) ([]models.ProcessSample, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}

	observedAt := time.Now()
	samples := make([]models.ProcessSample, 0, len(procs))
	for _, proc := range procs {
		if err := ctx.Err(); err != nil {
			return samples, err
		}

		name, err := proc.Name()
		if err != nil {
			c.Logger.Debug().Err(err).Int32("pid", proc.Pid).Msg("Failed to get process name")
			continue
		}

		ioCounters, err := proc.IOCounters()
		if err != nil {
			c.Logger.Debug().Err(err).Int32("pid", proc.Pid).Str("process", name).
				Msg("Failed to get I/O counters")
			continue
		}

		samples = append(samples, models.ProcessSample{
			Identity:   NormalizeIdentity(name),
			PID:        proc.Pid,
			ReadBytes:  ioCounters.ReadBytes,
			WriteBytes: ioCounters.WriteBytes,
			ObservedAt: observedAt,
		})
	}

	c.Logger.Debug().Int("samples", len(samples)).Int("processes", len(procs)).
		Msg("Process I/O snapshot collected")
	return samples, nil
}

// NormalizeIdentity turns an executable name into the stable key usage
// is aggregated under. Names are lowercased; on Windows the .exe
// suffix is stripped so restarts and case differences map to one key.
func NormalizeIdentity(name string) string {
	identity := strings.ToLower(strings.TrimSpace(name))
	if runtime.GOOS == "windows" {
		identity = strings.TrimSuffix(identity, ".exe")
	}
	return identity
}
