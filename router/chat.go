package router

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/oz-collabo-04/Back/contract"
	"github.com/oz-collabo-04/Back/domain"
	"github.com/oz-collabo-04/Back/domain/event"
	"github.com/oz-collabo-04/Back/errors"
	"github.com/oz-collabo-04/Back/runtime"
)

const ContentTooLongDetail = "message too long."

var validate = validator.New()

type ChatDeps struct {
	Registry         contract.IRegistry
	Messages         contract.MessageStore
	Executor         contract.BlockingExecutor
	MaxContentLength int
}

// NewChatRouter builds the router of a room connection.
// Chat messages are published to the room only from here, after they are persisted.
func NewChatRouter(log *slog.Logger, deps ChatDeps) *Router {
	c := &chat{log: log, deps: deps}
	r := newRouter(log).
		// a frame without a type is a plain chat send
		OnInbound("", c.send).
		OnInbound(event.ChatMessageType, c.send).
		OnInbound(event.AnnounceExistType, c.announceExist).
		OnPublished(event.ChatMessageType, forward).
		OnPublished(event.AnnounceEnteredType, forward).
		OnPublished(event.ChatExitedType, forward).
		OnPublished(event.AnnounceExistType, forward)
	r.onEnter = c.enter
	r.onExit = c.exit
	return r
}

type chat struct {
	log  *slog.Logger
	deps ChatDeps
}

// send validates, persists and publishes one message.
// Validation failures are answered to the sender only and never reach the store.
func (c *chat) send(ctx context.Context, s *runtime.Session, evt event.Event) error {
	content, err := c.validContent(evt)
	if err != nil {
		s.Log().Debug("Chat frame rejected", "error", err)
		if stderrors.Is(err, errTooLong) {
			return s.Send(event.Error(ContentTooLongDetail))
		}
		return s.Send(event.EmptyError())
	}

	var msg domain.Message
	err = c.deps.Executor.Do(ctx, func(ctx context.Context) error {
		var createErr error
		msg, createErr = c.deps.Messages.Create(ctx, s.Scope().RoomID, s.Identity().UserID, content)
		return createErr
	})
	if err != nil {
		return fmt.Errorf("persist message: %w", err)
	}

	n := c.deps.Registry.Publish(ctx, s.Scope().Group, event.ChatMessage(msg))
	s.Log().Debug("Chat message published", "message_id", msg.ID, "members", n)
	return nil
}

var errTooLong = fmt.Errorf("%w: content too long", errors.ErrInvalidPayload)

func (c *chat) validContent(evt event.Event) (string, error) {
	raw, ok := evt.Get(event.KeyContent)
	if !ok {
		return "", errors.ErrEmptyContent
	}
	content, ok := raw.(string)
	if !ok {
		return "", errors.ErrEmptyContent
	}
	content = strings.TrimSpace(content)
	if err := validate.Var(content, "required"); err != nil {
		return "", errors.ErrEmptyContent
	}
	if c.deps.MaxContentLength > 0 {
		if err := validate.Var(content, fmt.Sprintf("max=%d", c.deps.MaxContentLength)); err != nil {
			return "", errTooLong
		}
	}
	return content, nil
}

// announceExist republishes a presence ping as sent, stamped with the sender
// identity so receivers can suppress their own echo.
func (c *chat) announceExist(ctx context.Context, s *runtime.Session, evt event.Event) error {
	c.deps.Registry.Publish(ctx, s.Scope().Group, evt.With(event.KeyUserID, s.Identity().UserID))
	return nil
}

// enter announces the new party and marks the messages it had not read yet.
// A store failure is logged and never prevents the session from being active.
func (c *chat) enter(ctx context.Context, s *runtime.Session) {
	c.deps.Registry.Publish(ctx, s.Scope().Group, event.AnnounceEntered(s.Identity().UserID))

	err := c.deps.Executor.Do(ctx, func(ctx context.Context) error {
		n, err := c.deps.Messages.MarkRead(ctx, s.Scope().RoomID, s.Identity().UserID)
		if err != nil {
			return err
		}
		s.Log().Debug("Unread messages marked as read", "count", n)
		return nil
	})
	if err != nil {
		s.Log().Error("Failed to mark messages as read", "room_id", s.Scope().RoomID, "error", err)
	}
}

func (c *chat) exit(ctx context.Context, s *runtime.Session) {
	c.deps.Registry.Publish(ctx, s.Scope().Group, event.ChatExited(s.Identity().UserID))
}
