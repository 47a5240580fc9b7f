// Package router dispatches inbound client frames and published events
// to explicit per-type handlers for one connection.
package router

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/oz-collabo-04/Back/domain"
	"github.com/oz-collabo-04/Back/domain/event"
	"github.com/oz-collabo-04/Back/runtime"
)

var _ runtime.PublishedHandler = (*Router)(nil)

// InboundHandler handles one frame sent by the connected client.
// A returned error is reported to that client as a delivery failure.
type InboundHandler func(ctx context.Context, s *runtime.Session, evt event.Event) error

// PublishedHandler handles one event published to a group the session belongs to.
// It runs on the session's write pump.
type PublishedHandler func(ctx context.Context, s *runtime.Session, evt event.Event) error

// LifecycleHook runs when a session becomes active or leaves the active state.
type LifecycleHook func(ctx context.Context, s *runtime.Session)

// Router holds the dispatch tables of one consumer kind.
// A failure while handling one frame or event never ends the session,
// except a failed write to the peer.
type Router struct {
	log       *slog.Logger
	inbound   map[event.Type]InboundHandler
	published map[event.Type]PublishedHandler
	unknown   InboundHandler
	onEnter   LifecycleHook
	onExit    LifecycleHook
}

func newRouter(log *slog.Logger) *Router {
	return &Router{
		log:       log,
		inbound:   make(map[event.Type]InboundHandler),
		published: make(map[event.Type]PublishedHandler),
	}
}

func (r *Router) OnInbound(t event.Type, h InboundHandler) *Router {
	r.inbound[t] = h
	return r
}

func (r *Router) OnPublished(t event.Type, h PublishedHandler) *Router {
	r.published[t] = h
	return r
}

// HandleInbound dispatches a client frame. Unknown types go to the unknown
// handler when one is set and are otherwise dropped.
func (r *Router) HandleInbound(ctx context.Context, s *runtime.Session, evt event.Event) {
	h, ok := r.inbound[evt.Type()]
	if !ok {
		if r.unknown == nil {
			s.Log().Debug("Unknown inbound frame ignored", "type", evt.Type())
			return
		}
		h = r.unknown
	}

	if err := r.safeInbound(ctx, s, evt, h); err != nil {
		s.Log().Error("Inbound frame failed", "type", evt.Type(), "error", err)
		if sendErr := s.Send(event.DeliveryFailed()); sendErr != nil {
			s.Log().Debug("Delivery failure not reported", "error", sendErr)
		}
	}
}

// HandlePublished dispatches an event published to one of the session's groups.
// Presence events originating from the session's own identity are dropped.
func (r *Router) HandlePublished(ctx context.Context, s *runtime.Session, evt event.Event) {
	if evt.IsPresence() {
		if origin, ok := evt.Origin(); ok && origin == s.Identity().UserID {
			return
		}
	}
	h, ok := r.published[evt.Type()]
	if !ok {
		s.Log().Debug("Unhandled published event dropped", "type", evt.Type())
		return
	}
	if err := r.safePublished(ctx, s, evt, h); err != nil {
		s.Log().Error("Published event failed", "type", evt.Type(), "error", err)
	}
}

// Enter runs the entry side effects of a session that just became active.
func (r *Router) Enter(ctx context.Context, s *runtime.Session) {
	if r.onEnter != nil {
		r.safeHook(ctx, s, r.onEnter, "enter")
	}
}

// Exit runs the exit side effects of a session that was active.
func (r *Router) Exit(ctx context.Context, s *runtime.Session) {
	if r.onExit != nil {
		r.safeHook(ctx, s, r.onExit, "exit")
	}
}

func (r *Router) safeInbound(ctx context.Context, s *runtime.Session, evt event.Event, h InboundHandler) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("inbound handler panicked: %v", rec)
		}
	}()
	return h(ctx, s, evt)
}

func (r *Router) safePublished(ctx context.Context, s *runtime.Session, evt event.Event, h PublishedHandler) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("published handler panicked: %v", rec)
		}
	}()
	return h(ctx, s, evt)
}

func (r *Router) safeHook(ctx context.Context, s *runtime.Session, h LifecycleHook, name string) {
	defer func() {
		if rec := recover(); rec != nil {
			s.Log().Error("Lifecycle hook panicked", "hook", name, "panic", rec)
		}
	}()
	h(ctx, s)
}

// forward writes the event verbatim to the session's transport.
// A failed write closes the session, as for events sent directly.
func forward(_ context.Context, s *runtime.Session, evt event.Event) error {
	if err := s.Forward(evt); err != nil {
		s.Close(domain.CloseNotFound, "write failed")
		return fmt.Errorf("forward %s: %w", evt.Type(), err)
	}
	return nil
}
