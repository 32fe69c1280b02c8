// Package metrics implements the Metrics Publisher: a 1Hz sampler of host
// resource gauges, published as a fixed-order array to the telemetry bus.
// Grounded on the teacher's logging/health-check idiom generalized to host
// sampling, using github.com/shirou/gopsutil/v3 for the portable gauges
// (CPU%, memory, disk, uptime) since no pack repo hand-rolls /proc parsing
// when gopsutil is available.
package metrics

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"

	"github.com/synapse-vision/synapse-core/internal/errs"
)

// Sample is the fixed-order gauge array spec.md §4.6 publishes to
// `root/metrics`: CPU temp, CPU %, total memory MB, uptime seconds, GPU
// memory split, used RAM MB, used disk %, NPU load.
type Sample struct {
	CPUTempC       float64
	CPUPercent     float64
	TotalMemoryMB  float64
	UptimeSeconds  float64
	GPUMemorySplit float64
	UsedMemoryMB   float64
	UsedDiskPct    float64
	NPULoad        float64
}

// Array renders the sample in the fixed publish order.
func (s Sample) Array() [8]float64 {
	return [8]float64{
		s.CPUTempC, s.CPUPercent, s.TotalMemoryMB, s.UptimeSeconds,
		s.GPUMemorySplit, s.UsedMemoryMB, s.UsedDiskPct, s.NPULoad,
	}
}

// PlatformGauges supplies the gauges gopsutil has no portable equivalent
// for. The default implementation always reports KindSensorMissing, so a
// sampling failure substitutes 0 rather than aborting the publish cycle,
// per spec.md §4.6's sampling-failure policy.
type PlatformGauges interface {
	CPUTempC() (float64, error)
	GPUMemorySplit() (float64, error)
	NPULoad() (float64, error)
}

// NoPlatformGauges is the default PlatformGauges: no platform-specific
// sensor is wired in, so every gauge reports ErrSensorMissing.
type NoPlatformGauges struct{}

func (NoPlatformGauges) CPUTempC() (float64, error)       { return 0, errs.ErrSensorMissing }
func (NoPlatformGauges) GPUMemorySplit() (float64, error) { return 0, errs.ErrSensorMissing }
func (NoPlatformGauges) NPULoad() (float64, error)        { return 0, errs.ErrSensorMissing }

// Publisher samples host gauges on a 1Hz cadence and hands each Sample to
// Sink.
type Publisher struct {
	logger   *logrus.Entry
	platform PlatformGauges
	sink     func(Sample)
}

// New builds a Publisher. sink is called once per sample (typically a
// telemetry bus Put of the fixed-order array under "root/metrics").
func New(logger *logrus.Entry, platform PlatformGauges, sink func(Sample)) *Publisher {
	if platform == nil {
		platform = NoPlatformGauges{}
	}
	return &Publisher{logger: logger, platform: platform, sink: sink}
}

// Run samples once per second until ctx is canceled.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sink(p.sample())
		}
	}
}

func (p *Publisher) sample() Sample {
	var s Sample

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		s.CPUPercent = pct[0]
	} else if err != nil {
		p.logger.WithError(err).Debug("cpu percent unavailable")
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		s.TotalMemoryMB = float64(vm.Total) / (1024 * 1024)
		s.UsedMemoryMB = float64(vm.Used) / (1024 * 1024)
	} else {
		p.logger.WithError(err).Debug("memory stats unavailable")
	}

	if info, err := host.Info(); err == nil {
		s.UptimeSeconds = float64(info.Uptime)
	} else {
		p.logger.WithError(err).Debug("uptime unavailable")
	}

	if usage, err := disk.Usage("/"); err == nil {
		s.UsedDiskPct = usage.UsedPercent
	} else {
		p.logger.WithError(err).Debug("disk usage unavailable")
	}

	if v, err := p.platform.CPUTempC(); err == nil {
		s.CPUTempC = v
	} else if !isSensorMissing(err) {
		p.logger.WithError(err).Debug("cpu temp sensor error")
	}

	if v, err := p.platform.GPUMemorySplit(); err == nil {
		s.GPUMemorySplit = v
	} else if !isSensorMissing(err) {
		p.logger.WithError(err).Debug("gpu memory split sensor error")
	}

	if v, err := p.platform.NPULoad(); err == nil {
		s.NPULoad = v
	} else if !isSensorMissing(err) {
		p.logger.WithError(err).Debug("npu load sensor error")
	}

	return s
}

func isSensorMissing(err error) bool {
	e, ok := err.(*errs.Error)
	return ok && e.Kind == errs.KindSensorMissing
}
