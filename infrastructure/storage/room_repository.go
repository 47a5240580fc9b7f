package storage

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/oz-collabo-04/Back/contract"
	"github.com/oz-collabo-04/Back/domain"
	"github.com/oz-collabo-04/Back/errors"
)

var _ contract.RoomAuthorizer = (*RoomRepository)(nil)

// RoomRepository keeps the parties of every chat room under "room:{id}".
// Rooms are owned by the marketplace service and pushed here through the internal API.
type RoomRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewRoomRepository(db *badger.DB, log *slog.Logger) *RoomRepository {
	return &RoomRepository{db: db, log: log}
}

func roomKey(id domain.RoomID) []byte {
	return []byte(fmt.Sprintf("room:%d", id))
}

type roomRule struct {
	ID           int64 `validate:"gt=0"`
	UserID       int64 `validate:"gt=0"`
	ExpertUserID int64 `validate:"gt=0,nefield=UserID"`
}

// SaveRoom creates or replaces a room.
func (r *RoomRepository) SaveRoom(ctx context.Context, room domain.Room) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rule := roomRule{ID: int64(room.ID), UserID: int64(room.UserID), ExpertUserID: int64(room.ExpertUserID)}
	if err := validate.Struct(rule); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrInvalidPayload, err)
	}
	bytes, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("marshal room: %w", err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(roomKey(room.ID), bytes)
	})
}

// Room returns errors.ErrRoomNotFound when the room doesn't exist.
func (r *RoomRepository) Room(ctx context.Context, id domain.RoomID) (domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return domain.Room{}, err
	}
	var room domain.Room
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(roomKey(id))
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrRoomNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &room)
		})
	})
	return room, err
}

// IsParty reports whether the user is a party of the room that has not left it.
func (r *RoomRepository) IsParty(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (bool, error) {
	room, err := r.Room(ctx, roomID)
	if err != nil {
		return false, err
	}
	return room.IsParty(userID) && room.Present(userID), nil
}

// SetPresence records that a party left or came back to the room.
func (r *RoomRepository) SetPresence(ctx context.Context, roomID domain.RoomID, userID domain.UserID, present bool) (domain.Room, error) {
	room, err := r.Room(ctx, roomID)
	if err != nil {
		return domain.Room{}, err
	}
	updated, ok := room.WithPresence(userID, present)
	if !ok {
		return domain.Room{}, errors.ErrNotAParty
	}
	if err := r.SaveRoom(ctx, updated); err != nil {
		return domain.Room{}, err
	}
	return updated, nil
}
