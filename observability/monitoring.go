package observability

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Sample is one periodic reading taken by the telemetry worker.
type Sample struct {
	Groups         int       `json:"groups"`
	Memberships    int       `json:"memberships"`
	BridgeQueueLen int       `json:"bridge_queue_len"`
	BridgeQueueCap int       `json:"bridge_queue_cap"`
	PoolQueueLen   int       `json:"pool_queue_len"`
	PoolQueueCap   int       `json:"pool_queue_cap"`
	RSSBytes       uint64    `json:"rss_bytes"`
	CPUPercent     float64   `json:"cpu_percent"`
	SampledAt      time.Time `json:"sampled_at"`
}

// Stats aggregates counters and the latest sample for the debug endpoint.
type Stats struct {
	ActiveSessions      int64  `json:"active_sessions"`
	Published           uint64 `json:"published"`
	Delivered           uint64 `json:"delivered"`
	Dropped             uint64 `json:"dropped"`
	RejectedConnections uint64 `json:"rejected_connections"`
	Sample
}

// Monitor collects fanout counters. Safe for concurrent use.
type Monitor struct {
	log *slog.Logger
	mu  sync.RWMutex

	activeSessions int64
	published      uint64
	delivered      uint64
	dropped        uint64
	rejected       uint64
	latest         Sample
}

func NewMonitor(log *slog.Logger) *Monitor {
	return &Monitor{log: log}
}

func (m *Monitor) IncrPublished() {
	atomic.AddUint64(&m.published, 1)
}

func (m *Monitor) AddDelivered(n int) {
	atomic.AddUint64(&m.delivered, uint64(n))
}

func (m *Monitor) IncrDropped() {
	atomic.AddUint64(&m.dropped, 1)
}

func (m *Monitor) IncrRejected() {
	atomic.AddUint64(&m.rejected, 1)
}

func (m *Monitor) SessionOpened() {
	atomic.AddInt64(&m.activeSessions, 1)
}

func (m *Monitor) SessionClosed() {
	atomic.AddInt64(&m.activeSessions, -1)
}

func (m *Monitor) Update(s Sample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latest = s
}

func (m *Monitor) Snapshot() Stats {
	m.mu.RLock()
	latest := m.latest
	m.mu.RUnlock()

	return Stats{
		ActiveSessions:      atomic.LoadInt64(&m.activeSessions),
		Published:           atomic.LoadUint64(&m.published),
		Delivered:           atomic.LoadUint64(&m.delivered),
		Dropped:             atomic.LoadUint64(&m.dropped),
		RejectedConnections: atomic.LoadUint64(&m.rejected),
		Sample:              latest,
	}
}
