// Package event defines the typed, immutable events exchanged between
// the registry, the routers and the connected sessions.
package event

import (
	"encoding/json"
	"fmt"
	"maps"

	"github.com/oz-collabo-04/Back/domain"
)

type Type string

const (
	ChatMessageType      Type = "chat_message"
	AnnounceEnteredType  Type = "announce_entered"
	ChatExitedType       Type = "chat_exited"
	AnnounceExistType    Type = "announce_exist"
	SendNotificationType Type = "send_notification"
	ErrorType            Type = "error"
	EmptyErrorType       Type = "empty_error"
)

// Payload keys shared by producers and consumers.
const (
	KeyType         = "type"
	KeyUserID       = "user_id"
	KeyContent      = "content"
	KeyDetail       = "detail"
	KeyNotification = "notification"
)

// Event is a flat structured message with a type tag.
// The payload is copied on construction and on every read, so an Event can be
// handed to many sessions without one handler observing another's mutation.
type Event struct {
	typ     Type
	payload map[string]any
}

func New(t Type, payload map[string]any) Event {
	return Event{typ: t, payload: copyMap(payload)}
}

func (e Event) Type() Type { return e.typ }

func (e Event) Get(key string) (any, bool) {
	v, ok := e.payload[key]
	if !ok {
		return nil, false
	}
	return copyValue(v), true
}

// String returns the payload value for key when it is a string.
func (e Event) String(key string) (string, bool) {
	s, ok := e.payload[key].(string)
	return s, ok
}

func (e Event) Payload() map[string]any {
	return copyMap(e.payload)
}

func (e Event) Clone() Event {
	return New(e.typ, e.payload)
}

// With returns a copy of the event with key set to value.
func (e Event) With(key string, value any) Event {
	c := e.Clone()
	if c.payload == nil {
		c.payload = make(map[string]any, 1)
	}
	c.payload[key] = copyValue(value)
	return c
}

// IsPresence reports whether the event announces a party's entry, exit or existence.
// Presence events are never echoed back to the session they originate from.
func (e Event) IsPresence() bool {
	switch e.typ {
	case AnnounceEnteredType, ChatExitedType, AnnounceExistType:
		return true
	}
	return false
}

// Origin returns the identity that produced a presence event.
func (e Event) Origin() (domain.UserID, bool) {
	return toUserID(e.payload[KeyUserID])
}

// MarshalJSON renders the event as one flat object carrying its type.
func (e Event) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(e.payload)+1)
	maps.Copy(flat, e.payload)
	flat[KeyType] = string(e.typ)
	return json.Marshal(flat)
}

func (e *Event) UnmarshalJSON(data []byte) error {
	parsed, err := ParseFrame(data)
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// ParseFrame decodes a client frame. A frame without a type tag yields an
// event with an empty Type; the router decides what that means.
func ParseFrame(data []byte) (Event, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Event{}, fmt.Errorf("decode frame: %w", err)
	}
	if raw == nil {
		return Event{}, fmt.Errorf("decode frame: not an object")
	}
	var t Type
	if v, ok := raw[KeyType]; ok {
		s, ok := v.(string)
		if !ok {
			return Event{}, fmt.Errorf("decode frame: type must be a string")
		}
		t = Type(s)
		delete(raw, KeyType)
	}
	return Event{typ: t, payload: raw}, nil
}

func toUserID(v any) (domain.UserID, bool) {
	switch id := v.(type) {
	case domain.UserID:
		return id, true
	case int64:
		return domain.UserID(id), true
	case int:
		return domain.UserID(id), true
	case float64:
		if id != float64(int64(id)) {
			return 0, false
		}
		return domain.UserID(id), true
	case json.Number:
		n, err := id.Int64()
		if err != nil {
			return 0, false
		}
		return domain.UserID(n), true
	}
	return 0, false
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return copyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	}
	return v
}
