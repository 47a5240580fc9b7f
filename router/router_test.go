package router

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/oz-collabo-04/Back/domain"
	"github.com/oz-collabo-04/Back/domain/event"
	"github.com/oz-collabo-04/Back/observability"
	"github.com/oz-collabo-04/Back/runtime"
	"github.com/stretchr/testify/require"
)

type recordingTransport struct {
	mu      sync.Mutex
	written []event.Event
}

func (t *recordingTransport) WriteEvent(evt event.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.written = append(t.written, evt)
	return nil
}

func (t *recordingTransport) Close(int, string) error { return nil }

func (t *recordingTransport) Written() []event.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]event.Event(nil), t.written...)
}

func (t *recordingTransport) OfType(typ event.Type) []event.Event {
	var res []event.Event
	for _, evt := range t.Written() {
		if evt.Type() == typ {
			res = append(res, evt)
		}
	}
	return res
}

// inlineExecutor runs store calls on the caller goroutine.
type inlineExecutor struct{}

func (inlineExecutor) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fixture struct {
	log      *slog.Logger
	registry *runtime.Registry
	monitor  *observability.Monitor
}

func newFixture() *fixture {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	monitor := observability.NewMonitor(log)
	return &fixture{log: log, registry: runtime.NewRegistry(log, monitor), monitor: monitor}
}

// connect creates an active session in the room group with its write pump running.
func (f *fixture) connect(t *testing.T, r *Router, userID domain.UserID, scope runtime.Scope) (*runtime.Session, *recordingTransport) {
	t.Helper()
	transport := &recordingTransport{}
	s := runtime.NewSession(f.log, domain.NewIdentity(userID, "user"), scope, transport, f.registry, r, f.monitor, 64)
	s.Join(scope.Group)
	s.Advance(runtime.Admitted)
	s.Advance(runtime.Active)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		s.Close(domain.CloseNotFound, "test done")
	})
	return s, transport
}

func chatScope(room domain.RoomID) runtime.Scope {
	return runtime.Scope{Kind: runtime.ChatScope, RoomID: room, Group: domain.ChatGroup(room)}
}

// settle leaves the write pumps time to drain so that absence can be asserted.
func settle() {
	time.Sleep(50 * time.Millisecond)
}

type brokenTransport struct {
	mu     sync.Mutex
	writes int
}

func (t *brokenTransport) WriteEvent(event.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writes++
	return fmt.Errorf("broken pipe")
}

func (t *brokenTransport) Close(int, string) error { return nil }

func (t *brokenTransport) Writes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.writes
}

func TestRouter_Failed_Forward_Closes_Session(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	r := NewNotificationRouter(f.log)
	group := domain.NotificationGroup(7)

	// Given a session whose peer can no longer be written to
	transport := &brokenTransport{}
	s := runtime.NewSession(f.log, domain.NewIdentity(7, "user"), runtime.Scope{Kind: runtime.NotificationScope, Group: group}, transport, f.registry, r, f.monitor, 64)
	s.Join(group)
	s.Advance(runtime.Admitted)
	s.Advance(runtime.Active)
	go func() { _ = s.Run(context.Background()) }()
	t.Cleanup(func() { s.Close(domain.CloseNotFound, "test done") })

	// When a published event fails to be written
	f.registry.Publish(context.Background(), group, event.SendNotification(domain.Notification{ID: "n1", Title: "t"}))

	// Then the session is closed and leaves its group
	req.Eventually(func() bool { return s.State() == runtime.Closed }, time.Second, 5*time.Millisecond)
	req.Empty(f.registry.Members(group))
	req.Equal(1, transport.Writes())
}
