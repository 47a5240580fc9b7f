// Package gateway accepts WebSocket connections, admits them into groups and
// serves the lifecycle of their sessions.
package gateway

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/oz-collabo-04/Back/contract"
	"github.com/oz-collabo-04/Back/domain"
	"github.com/oz-collabo-04/Back/errors"
	"github.com/oz-collabo-04/Back/runtime"
)

// Admission is the outcome of a successful admission check.
type Admission struct {
	Identity domain.Identity
	Scope    runtime.Scope
}

// Admitter decides whether a connection may join its group.
// It has no side effect: nothing is joined and nothing is written here.
type Admitter struct {
	log                      *slog.Logger
	resolver                 contract.IdentityResolver
	rooms                    contract.RoomAuthorizer
	requireAuthNotifications bool
}

func NewAdmitter(log *slog.Logger, resolver contract.IdentityResolver, rooms contract.RoomAuthorizer, requireAuthNotifications bool) *Admitter {
	return &Admitter{log: log, resolver: resolver, rooms: rooms, requireAuthNotifications: requireAuthNotifications}
}

// AdmitChat checks, in order: the room id, the identity, then that the identity
// is a party of the room. The returned error maps to a close code with errors.CloseCode.
func (a *Admitter) AdmitChat(ctx context.Context, token, rawRoomID string) (Admission, error) {
	roomID, err := parseRoomID(rawRoomID)
	if err != nil {
		return Admission{}, err
	}

	identity, err := a.resolver.Resolve(ctx, token)
	if err != nil {
		return Admission{}, fmt.Errorf("%w: %w", errors.ErrUnauthorized, err)
	}
	if !identity.IsAuthenticated() {
		return Admission{}, errors.ErrUnauthorized
	}

	ok, err := a.rooms.IsParty(ctx, roomID, identity.UserID)
	switch {
	case stderrors.Is(err, errors.ErrRoomNotFound):
		return Admission{}, err
	case err != nil:
		return Admission{}, fmt.Errorf("room authorization: %w", err)
	case !ok:
		return Admission{}, fmt.Errorf("%w: user %d, room %d", errors.ErrNotAParty, identity.UserID, roomID)
	}

	return Admission{
		Identity: identity,
		Scope:    runtime.Scope{Kind: runtime.ChatScope, RoomID: roomID, Group: domain.ChatGroup(roomID)},
	}, nil
}

// AdmitNotification admits a personal notification connection.
// An anonymous connection is refused when authentication is required, and
// otherwise admitted without any group.
func (a *Admitter) AdmitNotification(ctx context.Context, token string) (Admission, error) {
	identity, err := a.resolver.Resolve(ctx, token)
	if err != nil {
		return Admission{}, fmt.Errorf("%w: %w", errors.ErrUnauthorized, err)
	}
	if !identity.IsAuthenticated() {
		if a.requireAuthNotifications {
			return Admission{}, errors.ErrUnauthorized
		}
		return Admission{Identity: identity, Scope: runtime.Scope{Kind: runtime.NotificationScope}}, nil
	}
	return Admission{
		Identity: identity,
		Scope:    runtime.Scope{Kind: runtime.NotificationScope, Group: domain.NotificationGroup(identity.UserID)},
	}, nil
}

func parseRoomID(raw string) (domain.RoomID, error) {
	if raw == "" {
		return 0, errors.ErrMissingRoom
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", errors.ErrMissingRoom, raw)
	}
	return domain.RoomID(id), nil
}
