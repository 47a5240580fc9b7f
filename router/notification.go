package router

import (
	"context"
	"log/slog"

	"github.com/oz-collabo-04/Back/domain/event"
	"github.com/oz-collabo-04/Back/runtime"
)

const UnsupportedFrameDetail = "notifications are read-only."

// NewNotificationRouter builds the router of a personal notification connection.
// The group is server to user only: every client frame is answered with an error.
func NewNotificationRouter(log *slog.Logger) *Router {
	r := newRouter(log).
		OnPublished(event.SendNotificationType, forward)
	r.unknown = rejectFrame
	return r
}

func rejectFrame(_ context.Context, s *runtime.Session, evt event.Event) error {
	s.Log().Debug("Client frame on notification socket", "type", evt.Type())
	return s.Send(event.Error(UnsupportedFrameDetail))
}
