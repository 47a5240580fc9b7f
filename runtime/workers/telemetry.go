package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/oz-collabo-04/Back/contract"
	"github.com/oz-collabo-04/Back/observability"
	"github.com/shirou/gopsutil/process"
)

var _ contract.Worker = (*TelemetryWorker)(nil)

// GroupCounter reports the size of the group registry.
type GroupCounter interface {
	Counts() (groups int, memberships int)
}

// Queue is any bounded queue whose fill level is worth sampling.
// Reading len and cap of a channel never blocks.
type Queue interface {
	Len() int
	Cap() int
}

// TelemetryWorker periodically samples the registry, the bridge and store queues
// and the relay process itself, and stores the reading on the monitor.
type TelemetryWorker struct {
	log            *slog.Logger
	monitor        *observability.Monitor
	registry       GroupCounter
	bridge         Queue
	pool           Queue
	metricInterval time.Duration
}

func NewTelemetryWorker(
	log *slog.Logger,
	monitor *observability.Monitor,
	registry GroupCounter,
	bridge, pool Queue,
	metricInterval time.Duration,
) *TelemetryWorker {
	return &TelemetryWorker{
		log:            log,
		monitor:        monitor,
		registry:       registry,
		bridge:         bridge,
		pool:           pool,
		metricInterval: metricInterval,
	}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		w.log.Warn("Process stats unavailable", "error", err)
		p = nil
	}

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping telemetry")
			return nil
		case <-ticker.C:
			sample := w.Sample(p)
			w.monitor.Update(sample)
			w.log.Debug("Telemetry sampled",
				"groups", sample.Groups,
				"memberships", sample.Memberships,
				"bridge_queue", sample.BridgeQueueLen,
				"pool_queue", sample.PoolQueueLen,
				"rss", sample.RSSBytes)
		}
	}
}

// Sample takes one reading. p may be nil when process stats are unavailable.
func (w *TelemetryWorker) Sample(p *process.Process) observability.Sample {
	sample := observability.Sample{SampledAt: time.Now().UTC()}
	if w.registry != nil {
		sample.Groups, sample.Memberships = w.registry.Counts()
	}
	if w.bridge != nil {
		sample.BridgeQueueLen, sample.BridgeQueueCap = w.bridge.Len(), w.bridge.Cap()
	}
	if w.pool != nil {
		sample.PoolQueueLen, sample.PoolQueueCap = w.pool.Len(), w.pool.Cap()
	}
	if p != nil {
		rss, cpu, err := selfStats(p)
		if err != nil {
			w.log.Debug("Failed to collect self stats", "error", err)
		} else {
			sample.RSSBytes, sample.CPUPercent = rss, cpu
		}
	}
	return sample
}

func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
