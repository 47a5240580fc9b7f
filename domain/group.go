package domain

import "fmt"

// GroupName is the fanout key of a set of sessions.
type GroupName string

func ChatGroup(id RoomID) GroupName {
	return GroupName(fmt.Sprintf("chat_%d", id))
}

func NotificationGroup(id UserID) GroupName {
	return GroupName(fmt.Sprintf("notification_%d", id))
}

// Close codes sent to the peer when a connection is refused or terminated.
const (
	CloseMissingRoute = 4001
	CloseUnauthorized = 4003
	CloseNotFound     = 1011
)
