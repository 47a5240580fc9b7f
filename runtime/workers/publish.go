package workers

import (
	"context"
	"log/slog"

	"github.com/oz-collabo-04/Back/contract"
)

var _ contract.Worker = (*PublishWorker)(nil)

// PublishWorker drains the publisher bridge into the registry.
// A single worker keeps producer order: requests are published in the order they were queued.
type PublishWorker struct {
	log      *slog.Logger
	requests <-chan contract.PublishRequest
	registry contract.IRegistry
}

func NewPublishWorker(log *slog.Logger, requests <-chan contract.PublishRequest, registry contract.IRegistry) *PublishWorker {
	return &PublishWorker{log: log, requests: requests, registry: registry}
}

func (w *PublishWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping publish worker")
			return nil
		case req, ok := <-w.requests:
			if !ok {
				w.log.Debug("Bridge queue closed")
				return nil
			}
			n := w.registry.Publish(ctx, req.Group, req.Event)
			w.log.Debug("External event published", "group", req.Group, "type", req.Event.Type(), "members", n)
		}
	}
}
