// Package signals reacts to committed records and turns them into fanout:
// a new notification is pushed to its receiver, a new chat message
// notifies the other party of the room.
package signals

import (
	"context"
	"log/slog"

	"github.com/oz-collabo-04/Back/contract"
	"github.com/oz-collabo-04/Back/domain"
	"github.com/oz-collabo-04/Back/domain/event"
)

// RoomLookup resolves the parties of a room.
type RoomLookup interface {
	Room(ctx context.Context, id domain.RoomID) (domain.Room, error)
}

type Hooks struct {
	log           *slog.Logger
	publisher     contract.Publisher
	notifications contract.NotificationStore
	rooms         RoomLookup
}

func NewHooks(log *slog.Logger, publisher contract.Publisher, notifications contract.NotificationStore, rooms RoomLookup) *Hooks {
	return &Hooks{log: log, publisher: publisher, notifications: notifications, rooms: rooms}
}

// NotificationCreated publishes send_notification to notification_{receiver_id}.
// Nobody listening is fine; a full bridge is logged and the record stays stored.
func (h *Hooks) NotificationCreated(_ context.Context, n domain.Notification) {
	group := domain.NotificationGroup(n.ReceiverID)
	if err := h.publisher.PublishExternal(group, event.SendNotification(n)); err != nil {
		h.log.Error("Notification not published", "group", group, "notification_id", n.ID, "error", err)
	}
}

// MessageCreated creates a message notification for the counterpart of the sender.
// It never publishes chat_message: the chat router already did.
func (h *Hooks) MessageCreated(ctx context.Context, m domain.Message) {
	room, err := h.rooms.Room(ctx, m.RoomID)
	if err != nil {
		h.log.Error("Room lookup failed, message notification skipped", "room_id", m.RoomID, "error", err)
		return
	}
	receiver, ok := room.Counterpart(m.SenderID)
	if !ok {
		h.log.Warn("Sender is not a party of the room", "room_id", m.RoomID, "user_id", m.SenderID)
		return
	}
	n := domain.MessageNotification(receiver, room.PartyName(m.SenderID), m.Content)
	if _, err := h.notifications.CreateNotification(ctx, n); err != nil {
		h.log.Error("Message notification not created", "room_id", m.RoomID, "error", err)
	}
}
