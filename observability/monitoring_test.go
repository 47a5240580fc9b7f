package observability

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMonitor_Snapshot(t *testing.T) {
	req := require.New(t)
	m := NewMonitor(slog.Default())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncrPublished()
			m.AddDelivered(2)
			m.IncrDropped()
			m.SessionOpened()
		}()
	}
	wg.Wait()
	m.SessionClosed()
	m.IncrRejected()

	at := time.Now().UTC()
	m.Update(Sample{Groups: 3, SampledAt: at})

	stats := m.Snapshot()
	req.Equal(uint64(10), stats.Published)
	req.Equal(uint64(20), stats.Delivered)
	req.Equal(uint64(10), stats.Dropped)
	req.Equal(int64(9), stats.ActiveSessions)
	req.Equal(uint64(1), stats.RejectedConnections)
	req.Equal(3, stats.Groups)
	req.Equal(at, stats.SampledAt)
}
