//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"github.com/oz-collabo-04/Back/domain"
	"github.com/oz-collabo-04/Back/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Member is anything the registry can fan an event out to.
// Deliver must not block: it hands the event to the member's own outbound queue.
type Member interface {
	ID() string
	Deliver(evt event.Event) error
}

type IRegistry interface {
	Join(group domain.GroupName, member Member)
	Leave(group domain.GroupName, member Member)
	LeaveAll(member Member)
	Publish(ctx context.Context, group domain.GroupName, evt event.Event) int
}

// Publisher is the entry point for code that does not own a connection.
type Publisher interface {
	PublishExternal(group domain.GroupName, evt event.Event) error
}

// Transport is the wire side of a session.
type Transport interface {
	WriteEvent(evt event.Event) error
	Close(code int, reason string) error
}

// IdentityResolver turns a bearer token into an identity.
// An absent, expired or invalid token resolves to the anonymous identity, not an error.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (domain.Identity, error)
}

// RoomAuthorizer answers whether a user is one of the two parties of a room.
// It returns errors.ErrRoomNotFound when the room does not exist.
type RoomAuthorizer interface {
	IsParty(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (bool, error)
}

type MessageStore interface {
	Create(ctx context.Context, roomID domain.RoomID, senderID domain.UserID, content string) (domain.Message, error)
	MarkRead(ctx context.Context, roomID domain.RoomID, readerID domain.UserID) (int, error)
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, n domain.Notification) (domain.Notification, error)
}

// BlockingExecutor runs calls that may block on I/O away from the connection goroutines.
type BlockingExecutor interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// PublishRequest is one external publish waiting in the bridge queue.
type PublishRequest struct {
	Group domain.GroupName
	Event event.Event
}
