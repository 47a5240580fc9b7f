package storage

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-playground/validator/v10"
	"github.com/oz-collabo-04/Back/contract"
	"github.com/oz-collabo-04/Back/domain"
	"github.com/oz-collabo-04/Back/errors"
)

var _ contract.NotificationStore = (*NotificationRepository)(nil)

var validate = validator.New()

// NotificationHook is called after a notification has been committed.
type NotificationHook func(ctx context.Context, n domain.Notification)

type NotificationRepository struct {
	db    *badger.DB
	log   *slog.Logger
	hooks []NotificationHook
	now   func() time.Time
}

func NewNotificationRepository(db *badger.DB, log *slog.Logger) *NotificationRepository {
	return &NotificationRepository{db: db, log: log, now: time.Now}
}

// OnCreated registers a hook run after every successful CreateNotification.
func (r *NotificationRepository) OnCreated(hook NotificationHook) {
	r.hooks = append(r.hooks, hook)
}

func notificationPrefix(receiver domain.UserID) string {
	return fmt.Sprintf("notif:%d:", receiver)
}

type notificationRule struct {
	ReceiverID int64  `validate:"gt=0"`
	Title      string `validate:"required,max=60"`
	Type       string `validate:"required"`
}

// CreateNotification assigns an id and a creation time, then persists the
// notification under "notif:{receiver_id}:{ulid}".
func (r *NotificationRepository) CreateNotification(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	if err := ctx.Err(); err != nil {
		return domain.Notification{}, err
	}
	rule := notificationRule{ReceiverID: int64(n.ReceiverID), Title: n.Title, Type: string(n.NotificationType)}
	if err := validate.Struct(rule); err != nil {
		return domain.Notification{}, fmt.Errorf("%w: %w", errors.ErrInvalidPayload, err)
	}
	if !n.NotificationType.Valid() {
		return domain.Notification{}, fmt.Errorf("%w: unknown notification type %q", errors.ErrInvalidPayload, n.NotificationType)
	}

	n.CreatedAt = r.now().UTC()
	n.ID = newID(n.CreatedAt)
	n.IsRead = false
	bytes, err := json.Marshal(n)
	if err != nil {
		return domain.Notification{}, fmt.Errorf("marshal notification: %w", err)
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(notificationPrefix(n.ReceiverID)+n.ID), bytes)
	})
	if err != nil {
		return domain.Notification{}, fmt.Errorf("store notification: %w", err)
	}

	for _, hook := range r.hooks {
		hook(ctx, n)
	}
	return n, nil
}

// GetNotifications returns the notifications of a receiver, oldest first.
func (r *NotificationRepository) GetNotifications(receiver domain.UserID, unreadOnly bool) ([]domain.Notification, error) {
	var res []domain.Notification
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(notificationPrefix(receiver))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var n domain.Notification
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &n)
			}); err != nil {
				return err
			}
			if unreadOnly && n.IsRead {
				continue
			}
			res = append(res, n)
		}
		return nil
	})
	return res, err
}

// MarkRead flags one notification of the receiver as read.
func (r *NotificationRepository) MarkRead(receiver domain.UserID, id string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		key := []byte(notificationPrefix(receiver) + id)
		item, err := txn.Get(key)
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrNotificationNotFound
		}
		if err != nil {
			return err
		}
		var n domain.Notification
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &n)
		}); err != nil {
			return err
		}
		n.IsRead = true
		bytes, err := json.Marshal(n)
		if err != nil {
			return err
		}
		return txn.Set(key, bytes)
	})
}
