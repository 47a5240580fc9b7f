package domain

import (
	"fmt"
	"time"
)

type NotificationType string

const (
	NotificationMessage  NotificationType = "message"
	NotificationContract NotificationType = "contract"
	NotificationEstimate NotificationType = "estimate"
	NotificationUsage    NotificationType = "usage"
	NotificationSchedule NotificationType = "schedule"
)

// MaxNotificationTitle mirrors the title column width of the notification table.
const MaxNotificationTitle = 60

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationMessage, NotificationContract, NotificationEstimate,
		NotificationUsage, NotificationSchedule:
		return true
	}
	return false
}

type Notification struct {
	ID               string           `json:"id"`
	ReceiverID       UserID           `json:"receiver_id"`
	Title            string           `json:"title"`
	Message          string           `json:"message"`
	NotificationType NotificationType `json:"notification_type"`
	IsRead           bool             `json:"is_read"`
	CreatedAt        time.Time        `json:"created_at"`
}

// MessageNotification builds the notification sent to the counterpart of a chat message.
func MessageNotification(receiver UserID, senderName string, content string) Notification {
	if senderName == "" {
		senderName = "Someone"
	}
	title := fmt.Sprintf("%s sent you a message", senderName)
	if len([]rune(title)) > MaxNotificationTitle {
		title = string([]rune(title)[:MaxNotificationTitle])
	}
	return Notification{
		ReceiverID:       receiver,
		Title:            title,
		Message:          content,
		NotificationType: NotificationMessage,
	}
}
