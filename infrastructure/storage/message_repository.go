package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/oz-collabo-04/Back/contract"
	"github.com/oz-collabo-04/Back/domain"
)

var _ contract.MessageStore = (*MessageRepository)(nil)

// MessageHook is called after a message has been committed.
type MessageHook func(ctx context.Context, m domain.Message)

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
	hooks         []MessageHook
	now           func() time.Time
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) *MessageRepository {
	return &MessageRepository{db: db, log: log, limitMessages: limitMessages, now: time.Now}
}

// OnCreated registers a hook run after every successful Create.
// Hooks are registered at startup, before the repository is shared.
func (r *MessageRepository) OnCreated(hook MessageHook) {
	r.hooks = append(r.hooks, hook)
}

func messagePrefix(room domain.RoomID) string {
	return fmt.Sprintf("msg:%d:", room)
}

// Create persists a message under "msg:{room_id}:{ulid}".
// The ULID sorts by creation time so a prefix scan is chronological.
func (r *MessageRepository) Create(ctx context.Context, roomID domain.RoomID, senderID domain.UserID, content string) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	at := r.now().UTC()
	msg := domain.Message{
		ID:        newID(at),
		RoomID:    roomID,
		SenderID:  senderID,
		Content:   content,
		Timestamp: at,
	}
	bytes, err := json.Marshal(msg)
	if err != nil {
		return domain.Message{}, fmt.Errorf("marshal message: %w", err)
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(messagePrefix(roomID)+msg.ID), bytes)
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("store message: %w", err)
	}

	for _, hook := range r.hooks {
		hook(ctx, msg)
	}
	return msg, nil
}

// MarkRead marks every unread message of the room sent by someone else than
// the reader as read, and returns how many were updated.
func (r *MessageRepository) MarkRead(ctx context.Context, roomID domain.RoomID, readerID domain.UserID) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	updated := 0
	err := r.db.Update(func(txn *badger.Txn) error {
		prefix := []byte(messagePrefix(roomID))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		type pending struct {
			key   []byte
			value []byte
		}
		var writes []pending
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var msg domain.Message
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			}); err != nil {
				return err
			}
			if msg.IsRead || msg.SenderID == readerID {
				continue
			}
			msg.IsRead = true
			bytes, err := json.Marshal(msg)
			if err != nil {
				return err
			}
			writes = append(writes, pending{key: item.KeyCopy(nil), value: bytes})
		}
		for _, w := range writes {
			if err := txn.Set(w.key, w.value); err != nil {
				return err
			}
		}
		updated = len(writes)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("mark messages read: %w", err)
	}
	return updated, nil
}

// GetMessages pages backwards through a room's history, newest first.
// cursor is the key suffix returned by the previous call; nil starts from the newest message.
// It stops collecting messages once limitMessages is reached.
func (r *MessageRepository) GetMessages(room domain.RoomID, cursor *string) ([]domain.Message, *string, error) {
	var messages []domain.Message
	var lastKey string
	err := r.db.View(func(txn *badger.Txn) error {
		prefixStr := messagePrefix(room)
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// ULIDs are Crockford base32, "~" sorts after every one of them
			seekKey = append(prefix, '~')
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) && string(it.Item().Key()) == string(seekKey) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if r.limitMessages != nil && len(messages) == *r.limitMessages {
				r.log.Debug("Maximum of messages reached", "limit", *r.limitMessages)
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefixStr):])
			var msg domain.Message
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			}); err != nil {
				return err
			}
			messages = append(messages, msg)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return messages, &lastKey, nil
}
