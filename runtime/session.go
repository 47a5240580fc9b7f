package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/oz-collabo-04/Back/contract"
	"github.com/oz-collabo-04/Back/domain"
	"github.com/oz-collabo-04/Back/domain/event"
	"github.com/oz-collabo-04/Back/errors"
	"github.com/oz-collabo-04/Back/observability"
)

var _ contract.Member = (*Session)(nil)

type State int32

const (
	Connecting State = iota
	Authenticated
	Admitted
	Active
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Authenticated:
		return "authenticated"
	case Admitted:
		return "admitted"
	case Active:
		return "active"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

type ScopeKind int

const (
	ChatScope ScopeKind = iota
	NotificationScope
)

// Scope is what a session was admitted for.
type Scope struct {
	Kind   ScopeKind
	RoomID domain.RoomID
	Group  domain.GroupName
}

// PublishedHandler interprets an event published to one of the session's groups.
// It runs on the session's write pump, one event at a time.
type PublishedHandler interface {
	HandlePublished(ctx context.Context, s *Session, evt event.Event)
}

type outboundItem struct {
	evt    event.Event
	direct bool
}

// Session is one live connection. Identity and scope never change after creation.
// Everything written to the transport goes through one bounded FIFO queue and
// a single write pump, whoever produced it.
type Session struct {
	id        string
	identity  domain.Identity
	scope     Scope
	transport contract.Transport
	registry  contract.IRegistry
	handler   PublishedHandler
	monitor   *observability.Monitor
	log       *slog.Logger

	outbound  chan outboundItem
	done      chan struct{}
	state     atomic.Int32
	closeOnce sync.Once

	mu      sync.Mutex
	onClose []func(s *Session, wasActive bool)
}

func NewSession(
	log *slog.Logger,
	identity domain.Identity,
	scope Scope,
	transport contract.Transport,
	registry contract.IRegistry,
	handler PublishedHandler,
	monitor *observability.Monitor,
	bufferSize int,
) *Session {
	id := uuid.NewString()
	s := &Session{
		id:        id,
		identity:  identity,
		scope:     scope,
		transport: transport,
		registry:  registry,
		handler:   handler,
		monitor:   monitor,
		log:       log.With("session_id", id, "user_id", identity.UserID, "group", scope.Group),
		outbound:  make(chan outboundItem, bufferSize),
		done:      make(chan struct{}),
	}
	s.state.Store(int32(Authenticated))
	return s
}

func (s *Session) ID() string                { return s.id }
func (s *Session) Identity() domain.Identity { return s.identity }
func (s *Session) Scope() Scope              { return s.scope }
func (s *Session) State() State              { return State(s.state.Load()) }
func (s *Session) Log() *slog.Logger         { return s.log }

// Done is closed once the session has been closed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Advance moves the session forward to the given state.
// Lifecycle states only move forward; it reports false otherwise.
func (s *Session) Advance(to State) bool {
	for {
		current := s.state.Load()
		if int32(to) <= current || State(current) >= Closing {
			return false
		}
		if s.state.CompareAndSwap(current, int32(to)) {
			if to == Active && s.monitor != nil {
				s.monitor.SessionOpened()
			}
			return true
		}
	}
}

// Join adds the session to a group through the registry.
func (s *Session) Join(group domain.GroupName) {
	s.registry.Join(group, s)
}

// OnClose registers a hook run once while the session is closing,
// before it leaves its groups.
func (s *Session) OnClose(fn func(s *Session, wasActive bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClose = append(s.onClose, fn)
}

// Deliver is called by the registry from any goroutine for published events.
func (s *Session) Deliver(evt event.Event) error {
	return s.enqueue(outboundItem{evt: evt})
}

// Send queues an event for the remote peer without going through the router.
// It never blocks: when the queue is full the event is dropped and logged.
func (s *Session) Send(evt event.Event) error {
	return s.enqueue(outboundItem{evt: evt, direct: true})
}

func (s *Session) enqueue(item outboundItem) error {
	select {
	case <-s.done:
		return errors.ErrSessionClosed
	default:
	}
	select {
	case s.outbound <- item:
		return nil
	default:
		if s.monitor != nil {
			s.monitor.IncrDropped()
		}
		s.log.Warn("Outbound queue full, event dropped", "type", item.evt.Type())
		return errors.ErrOutboundFull
	}
}

// Forward writes the event to the transport. It must only be called from the
// write pump, which is where published handlers run.
func (s *Session) Forward(evt event.Event) error {
	return s.transport.WriteEvent(evt)
}

// Run is the write pump. It drains the outbound queue until the session closes
// or ctx is canceled, and closes the session when the transport fails.
func (s *Session) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case item := <-s.outbound:
			if !item.direct {
				if s.handler != nil {
					s.handler.HandlePublished(ctx, s, item.evt)
				}
				continue
			}
			if err := s.Forward(item.evt); err != nil {
				s.log.Debug("Write failed, closing session", "error", err)
				s.Close(domain.CloseNotFound, "write failed")
				return fmt.Errorf("write event: %w", err)
			}
		}
	}
}

// Close terminates the session exactly once, however many times it is called
// and whichever side initiated the disconnect. Close hooks run first, then the
// session leaves all of its groups and the transport is closed with code.
func (s *Session) Close(code int, reason string) {
	s.closeOnce.Do(func() {
		previous := State(s.state.Swap(int32(Closing)))
		wasActive := previous == Active

		s.mu.Lock()
		hooks := s.onClose
		s.onClose = nil
		s.mu.Unlock()
		for _, fn := range hooks {
			fn(s, wasActive)
		}

		s.registry.LeaveAll(s)
		close(s.done)
		if err := s.transport.Close(code, reason); err != nil {
			s.log.Debug("Transport close failed", "error", err)
		}
		s.state.Store(int32(Closed))
		if wasActive && s.monitor != nil {
			s.monitor.SessionClosed()
		}
		s.log.Info("Session closed", "code", code, "reason", reason, "from", previous.String())
	})
}
