package workers

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/oz-collabo-04/Back/observability"
	"github.com/shirou/gopsutil/process"
	"github.com/stretchr/testify/require"
)

type fixedCounter struct{ groups, memberships int }

func (f fixedCounter) Counts() (int, int) { return f.groups, f.memberships }

type fixedQueue struct{ length, capacity int }

func (f fixedQueue) Len() int { return f.length }
func (f fixedQueue) Cap() int { return f.capacity }

func TestTelemetryWorker_Sample(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	monitor := observability.NewMonitor(log)
	worker := NewTelemetryWorker(log, monitor, fixedCounter{3, 5}, fixedQueue{1, 10}, fixedQueue{2, 20}, time.Second)

	p, err := process.NewProcess(int32(os.Getpid()))
	req.NoError(err)

	sample := worker.Sample(p)

	req.Equal(3, sample.Groups)
	req.Equal(5, sample.Memberships)
	req.Equal(1, sample.BridgeQueueLen)
	req.Equal(10, sample.BridgeQueueCap)
	req.Equal(2, sample.PoolQueueLen)
	req.Equal(20, sample.PoolQueueCap)
	req.NotZero(sample.RSSBytes)
}

func TestTelemetryWorker_Run_Updates_Monitor(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	monitor := observability.NewMonitor(log)
	worker := NewTelemetryWorker(log, monitor, fixedCounter{1, 2}, nil, nil, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	req.Eventually(func() bool { return monitor.Snapshot().Groups == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	req.NoError(<-done)
}
