// Package runtime holds the fanout core: the group registry, the sessions
// and the bridge used by producers that own no connection.
// It orchestrates delivery without containing business rules.
package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oz-collabo-04/Back/contract"
	"github.com/oz-collabo-04/Back/observability"
	"github.com/oz-collabo-04/Back/runtime/workers"
)

type Config struct {
	BridgeBufferSize int
	StoreWorkers     int
	StoreBufferSize  int
	StoreTimeout     time.Duration
	RestartInterval  time.Duration
	MetricInterval   time.Duration
}

// Orchestrator assembles the registry, the bridge and the store pool and
// runs their workers under one supervisor.
type Orchestrator struct {
	mu         sync.Mutex
	log        *slog.Logger
	supervisor *workers.Supervisor
	local      *Registry
	groups     contract.IRegistry
	extra      []contract.Worker
	bridge     *Bridge
	pool       *workers.StorePool
	monitor    *observability.Monitor
	cfg        Config
}

func NewOrchestrator(log *slog.Logger, monitor *observability.Monitor, cfg Config) *Orchestrator {
	local := NewRegistry(log, monitor)
	return &Orchestrator{
		log:        log,
		supervisor: workers.NewSupervisor(log, cfg.RestartInterval),
		local:      local,
		groups:     local,
		bridge:     NewBridge(log, cfg.BridgeBufferSize),
		pool:       workers.NewStorePool(log, cfg.StoreWorkers, cfg.StoreBufferSize, cfg.StoreTimeout),
		monitor:    monitor,
		cfg:        cfg,
	}
}

// UseRegistry replaces the in-process registry seen by sessions and the bridge,
// e.g. with a broker-backed one wrapping LocalRegistry. Workers the replacement
// needs are supervised with the rest. Must be called before Start.
func (o *Orchestrator) UseRegistry(registry contract.IRegistry, needs ...contract.Worker) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.groups = registry
	o.extra = append(o.extra, needs...)
}

func (o *Orchestrator) LocalRegistry() *Registry            { return o.local }
func (o *Orchestrator) Registry() contract.IRegistry        { return o.groups }
func (o *Orchestrator) Bridge() *Bridge                     { return o.bridge }
func (o *Orchestrator) Executor() contract.BlockingExecutor { return o.pool }
func (o *Orchestrator) Monitor() *observability.Monitor     { return o.monitor }

// Start registers every worker on the supervisor and blocks until ctx is
// canceled or Stop is called.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	o.supervisor.Add(workers.NewPublishWorker(o.log, o.bridge.Queue(), o.groups))
	o.supervisor.Add(o.pool.Workers()...)
	if o.cfg.MetricInterval > 0 {
		o.supervisor.Add(workers.NewTelemetryWorker(o.log, o.monitor, o.local, o.bridge, o.pool, o.cfg.MetricInterval))
	}
	o.supervisor.Add(o.extra...)
	o.mu.Unlock()

	o.log.Info("Starting orchestrator and all supervised workers",
		"store_workers", o.cfg.StoreWorkers,
		"bridge_buffer", o.cfg.BridgeBufferSize)
	o.supervisor.Run(ctx)
}

// Stop cancels the supervised context; Start returns once every worker exited.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.pool.Stop()
	o.supervisor.Stop()
}
