package runtime

import (
	"log/slog"

	"github.com/oz-collabo-04/Back/contract"
	"github.com/oz-collabo-04/Back/domain"
	"github.com/oz-collabo-04/Back/domain/event"
	"github.com/oz-collabo-04/Back/errors"
)

var _ contract.Publisher = (*Bridge)(nil)

// Bridge lets code that owns no connection publish to a group.
// PublishExternal only enqueues; the PublishWorker drains the queue into the registry
// in the order producers enqueued.
type Bridge struct {
	log   *slog.Logger
	queue chan contract.PublishRequest
}

func NewBridge(log *slog.Logger, bufferSize int) *Bridge {
	return &Bridge{
		log:   log,
		queue: make(chan contract.PublishRequest, bufferSize),
	}
}

// PublishExternal is safe for concurrent producers and never waits for delivery.
// When the queue is full the event is dropped and ErrBridgeFull returned.
func (b *Bridge) PublishExternal(group domain.GroupName, evt event.Event) error {
	select {
	case b.queue <- contract.PublishRequest{Group: group, Event: evt.Clone()}:
		return nil
	default:
		b.log.Warn("Bridge queue full, event dropped", "group", group, "type", evt.Type())
		return errors.ErrBridgeFull
	}
}

// Queue is the consuming side, read by the publish worker.
func (b *Bridge) Queue() <-chan contract.PublishRequest {
	return b.queue
}

func (b *Bridge) Len() int { return len(b.queue) }
func (b *Bridge) Cap() int { return cap(b.queue) }
