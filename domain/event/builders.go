package event

import (
	"time"

	"github.com/oz-collabo-04/Back/domain"
)

const (
	EmptyContentDetail   = "message required."
	DeliveryFailedDetail = "Message delivery failed."
)

// ChatMessage is published to the room group once a message has been persisted.
func ChatMessage(m domain.Message) Event {
	return New(ChatMessageType, map[string]any{
		"id":        m.ID,
		"room_id":   m.RoomID,
		"sender":    m.SenderID,
		KeyContent:  m.Content,
		"timestamp": m.Timestamp.UTC().Format(time.RFC3339Nano),
	})
}

func AnnounceEntered(id domain.UserID) Event {
	return New(AnnounceEnteredType, map[string]any{KeyUserID: id})
}

func ChatExited(id domain.UserID) Event {
	return New(ChatExitedType, map[string]any{KeyUserID: id})
}

func AnnounceExist(id domain.UserID) Event {
	return New(AnnounceExistType, map[string]any{KeyUserID: id})
}

// SendNotification keeps the nested "notification" object of the historical wire shape.
func SendNotification(n domain.Notification) Event {
	return New(SendNotificationType, map[string]any{
		KeyNotification: map[string]any{
			"id":                n.ID,
			"title":             n.Title,
			"message":           n.Message,
			"notification_type": string(n.NotificationType),
			"is_read":           n.IsRead,
			"created_at":        n.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	})
}

func Error(detail string) Event {
	return New(ErrorType, map[string]any{KeyDetail: detail})
}

func EmptyError() Event {
	return New(EmptyErrorType, map[string]any{KeyDetail: EmptyContentDetail})
}

func DeliveryFailed() Event {
	return Error(DeliveryFailedDetail)
}
