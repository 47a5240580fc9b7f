package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/oz-collabo-04/Back/domain"
)

var (
	ErrWorkerPanic  = fmt.Errorf("worker panic")
	ErrPoolStopped  = fmt.Errorf("store pool stopped")
	ErrBridgeFull   = fmt.Errorf("publisher bridge queue full")
	ErrOutboundFull = fmt.Errorf("session outbound queue full")

	ErrMissingRoom   = fmt.Errorf("missing or invalid room id")
	ErrUnauthorized  = fmt.Errorf("unauthorized connection")
	ErrNotAParty     = fmt.Errorf("user is not a party of the room")
	ErrRoomNotFound  = fmt.Errorf("room not found")
	ErrSessionClosed = fmt.Errorf("session closed")

	ErrEmptyContent         = fmt.Errorf("message required")
	ErrInvalidPayload       = fmt.Errorf("invalid payload")
	ErrNotificationNotFound = fmt.Errorf("notification not found")
	ErrInvalidToken         = fmt.Errorf("invalid or expired token")
)

// CloseCode maps an admission error to the WebSocket close code sent to the peer.
// Errors outside the admission taxonomy map to 1011.
func CloseCode(err error) int {
	switch {
	case stderrors.Is(err, ErrMissingRoom), stderrors.Is(err, ErrNotAParty):
		return domain.CloseMissingRoute
	case stderrors.Is(err, ErrUnauthorized):
		return domain.CloseUnauthorized
	default:
		return domain.CloseNotFound
	}
}

// CloseReason is the fixed reason sent with CloseCode(err).
// The error text itself never reaches the peer.
func CloseReason(err error) string {
	switch {
	case stderrors.Is(err, ErrMissingRoom), stderrors.Is(err, ErrNotAParty):
		return "invalid room"
	case stderrors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case stderrors.Is(err, ErrRoomNotFound):
		return "room not found"
	default:
		return "internal error"
	}
}
