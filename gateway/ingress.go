package gateway

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/oz-collabo-04/Back/contract"
	"github.com/oz-collabo-04/Back/domain"
	"github.com/oz-collabo-04/Back/domain/event"
	"github.com/oz-collabo-04/Back/errors"
)

const internalTokenHeader = "X-Internal-Token"

var validate = validator.New()

type RoomAdmin interface {
	SaveRoom(ctx context.Context, room domain.Room) error
	SetPresence(ctx context.Context, roomID domain.RoomID, userID domain.UserID, present bool) (domain.Room, error)
}

type MessageHistory interface {
	GetMessages(room domain.RoomID, cursor *string) ([]domain.Message, *string, error)
}

type NotificationInbox interface {
	GetNotifications(receiver domain.UserID, unreadOnly bool) ([]domain.Notification, error)
	MarkRead(receiver domain.UserID, id string) error
}

// Ingress is the HTTP surface the marketplace backend uses to feed the relay:
// rooms, notifications and raw group events. Every route requires the shared
// internal token.
type Ingress struct {
	log           *slog.Logger
	token         string
	publisher     contract.Publisher
	notifications contract.NotificationStore
	inbox         NotificationInbox
	rooms         RoomAdmin
	history       MessageHistory
}

func NewIngress(
	log *slog.Logger,
	token string,
	publisher contract.Publisher,
	notifications contract.NotificationStore,
	inbox NotificationInbox,
	rooms RoomAdmin,
	history MessageHistory,
) *Ingress {
	return &Ingress{
		log:           log,
		token:         token,
		publisher:     publisher,
		notifications: notifications,
		inbox:         inbox,
		rooms:         rooms,
		history:       history,
	}
}

type notificationRequest struct {
	ReceiverID       domain.UserID           `json:"receiver_id" validate:"gt=0"`
	Title            string                  `json:"title" validate:"required,max=60"`
	Message          string                  `json:"message"`
	NotificationType domain.NotificationType `json:"notification_type" validate:"required"`
}

type roomRequest struct {
	UserID       domain.UserID `json:"user_id" validate:"gt=0"`
	ExpertUserID domain.UserID `json:"expert_user_id" validate:"gt=0,nefield=UserID"`
	UserName     string        `json:"user_name" validate:"max=150"`
	ExpertName   string        `json:"expert_name" validate:"max=150"`
	UserExist    *bool         `json:"user_exist"`
	ExpertExist  *bool         `json:"expert_exist"`
}

type presenceRequest struct {
	UserID  domain.UserID `json:"user_id" validate:"gt=0"`
	Present bool          `json:"present"`
}

type historyResponse struct {
	Messages   []domain.Message `json:"messages"`
	NextCursor *string          `json:"next_cursor,omitempty"`
}

func (i *Ingress) RegisterRoutes(r chi.Router) {
	r.Route("/internal", func(r chi.Router) {
		r.Use(i.Guard)
		r.Post("/notifications", i.createNotification)
		r.Get("/users/{user_id}/notifications", i.listNotifications)
		r.Post("/users/{user_id}/notifications/{id}/read", i.readNotification)
		r.Post("/groups/{group}/events", i.publishEvent)
		r.Put("/rooms/{room_id}", i.saveRoom)
		r.Post("/rooms/{room_id}/presence", i.setPresence)
		r.Get("/rooms/{room_id}/messages", i.listMessages)
	})
}

// Guard refuses requests without the internal token.
func (i *Ingress) Guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(internalTokenHeader)
		if i.token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(i.token)) != 1 {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (i *Ingress) createNotification(w http.ResponseWriter, r *http.Request) {
	var req notificationRequest
	if !decode(w, r, &req) {
		return
	}
	created, err := i.notifications.CreateNotification(r.Context(), domain.Notification{
		ReceiverID:       req.ReceiverID,
		Title:            req.Title,
		Message:          req.Message,
		NotificationType: req.NotificationType,
	})
	if err != nil {
		i.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (i *Ingress) listNotifications(w http.ResponseWriter, r *http.Request) {
	receiver, ok := userParam(w, r)
	if !ok {
		return
	}
	unread, _ := strconv.ParseBool(r.URL.Query().Get("unread"))
	notifications, err := i.inbox.GetNotifications(receiver, unread)
	if err != nil {
		i.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notifications)
}

func (i *Ingress) readNotification(w http.ResponseWriter, r *http.Request) {
	receiver, ok := userParam(w, r)
	if !ok {
		return
	}
	if err := i.inbox.MarkRead(receiver, chi.URLParam(r, "id")); err != nil {
		i.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// publishEvent fans a flat event object out to a group, as if it had been
// published by server-side code.
func (i *Ingress) publishEvent(w http.ResponseWriter, r *http.Request) {
	group := domain.GroupName(chi.URLParam(r, "group"))
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	evt, err := event.ParseFrame(body)
	if err != nil || evt.Type() == "" {
		writeError(w, http.StatusBadRequest, "event type required")
		return
	}
	if err := i.publisher.PublishExternal(group, evt); err != nil {
		i.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (i *Ingress) saveRoom(w http.ResponseWriter, r *http.Request) {
	roomID, ok := roomParam(w, r)
	if !ok {
		return
	}
	var req roomRequest
	if !decode(w, r, &req) {
		return
	}
	room := domain.NewRoom(roomID, req.UserID, req.ExpertUserID)
	room.UserName, room.ExpertName = req.UserName, req.ExpertName
	if req.UserExist != nil {
		room.UserExist = *req.UserExist
	}
	if req.ExpertExist != nil {
		room.ExpertExist = *req.ExpertExist
	}
	if err := i.rooms.SaveRoom(r.Context(), room); err != nil {
		i.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (i *Ingress) setPresence(w http.ResponseWriter, r *http.Request) {
	roomID, ok := roomParam(w, r)
	if !ok {
		return
	}
	var req presenceRequest
	if !decode(w, r, &req) {
		return
	}
	room, err := i.rooms.SetPresence(r.Context(), roomID, req.UserID, req.Present)
	if err != nil {
		i.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (i *Ingress) listMessages(w http.ResponseWriter, r *http.Request) {
	roomID, ok := roomParam(w, r)
	if !ok {
		return
	}
	var cursor *string
	if c := r.URL.Query().Get("cursor"); c != "" {
		cursor = &c
	}
	messages, next, err := i.history.GetMessages(roomID, cursor)
	if err != nil {
		i.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Messages: messages, NextCursor: next})
}

func (i *Ingress) fail(w http.ResponseWriter, err error) {
	switch {
	case stderrors.Is(err, errors.ErrInvalidPayload):
		writeError(w, http.StatusBadRequest, err.Error())
	case stderrors.Is(err, errors.ErrRoomNotFound), stderrors.Is(err, errors.ErrNotificationNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case stderrors.Is(err, errors.ErrNotAParty):
		writeError(w, http.StatusConflict, err.Error())
	case stderrors.Is(err, errors.ErrBridgeFull):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		i.log.Error("Internal request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func readBody(r *http.Request) ([]byte, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, stderrors.New("invalid json body")
	}
	return raw, nil
}

func roomParam(w http.ResponseWriter, r *http.Request) (domain.RoomID, bool) {
	id, err := parseRoomID(chi.URLParam(r, "room_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}
	return id, true
}

func userParam(w http.ResponseWriter, r *http.Request) (domain.UserID, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "user_id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return 0, false
	}
	return domain.UserID(id), true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
