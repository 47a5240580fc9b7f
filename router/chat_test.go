package router

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/oz-collabo-04/Back/domain"
	"github.com/oz-collabo-04/Back/domain/event"
	"github.com/oz-collabo-04/Back/mocks"
	"github.com/oz-collabo-04/Back/runtime"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	userID   domain.UserID = 1
	expertID domain.UserID = 2
	roomID   domain.RoomID = 10
)

func TestChatRouter_Message_Reaches_Both_Parties(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMessageStore(ctrl)
	r := NewChatRouter(f.log, ChatDeps{Registry: f.registry, Messages: store, Executor: inlineExecutor{}, MaxContentLength: 1000})

	// Given the user and the expert are both connected to the room
	user, userTransport := f.connect(t, r, userID, chatScope(roomID))
	_, expertTransport := f.connect(t, r, expertID, chatScope(roomID))

	at := time.Date(2024, 11, 2, 10, 0, 0, 0, time.UTC)
	// Then exactly one message is persisted
	store.EXPECT().
		Create(gomock.Any(), roomID, userID, "hello").
		Return(domain.Message{ID: "01J", RoomID: roomID, SenderID: userID, Content: "hello", Timestamp: at}, nil).
		Times(1)

	// When the user sends a message
	r.HandleInbound(context.Background(), user, event.New("", map[string]any{"content": "hello"}))

	// Then both parties receive the same chat_message, the sender included
	for _, transport := range []*recordingTransport{userTransport, expertTransport} {
		req.Eventually(func() bool { return len(transport.OfType(event.ChatMessageType)) == 1 }, time.Second, 5*time.Millisecond)
		msg := transport.OfType(event.ChatMessageType)[0]
		content, _ := msg.String(event.KeyContent)
		req.Equal("hello", content)
		sender, _ := msg.Get("sender")
		req.Equal(userID, sender)
		timestamp, _ := msg.String("timestamp")
		req.Equal(at.Format(time.RFC3339Nano), timestamp)
	}
}

func TestChatRouter_Empty_Content_Is_Rejected(t *testing.T) {
	f := newFixture()

	tests := []struct {
		name  string
		frame event.Event
	}{
		{"missing content", event.New("", map[string]any{"message": "hi"})},
		{"blank content", event.New("", map[string]any{"content": "   "})},
		{"empty content", event.New(event.ChatMessageType, map[string]any{"content": ""})},
		{"not a string", event.New("", map[string]any{"content": 42})},
	}
	for i, tt := range tests {
		frame := tt.frame
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			ctrl := gomock.NewController(t)
			// No EXPECT: any store call fails the test
			store := mocks.NewMockMessageStore(ctrl)
			room := domain.RoomID(100 + i)
			r := NewChatRouter(f.log, ChatDeps{Registry: f.registry, Messages: store, Executor: inlineExecutor{}})
			sender, senderTransport := f.connect(t, r, userID, chatScope(room))
			_, otherTransport := f.connect(t, r, expertID, chatScope(room))
			published := f.monitor.Snapshot().Published

			r.HandleInbound(context.Background(), sender, frame)

			// Then exactly one empty_error reaches the sender and nothing is published
			req.Eventually(func() bool { return len(senderTransport.Written()) == 1 }, time.Second, 5*time.Millisecond)
			req.Equal(event.EmptyErrorType, senderTransport.Written()[0].Type())
			detail, _ := senderTransport.Written()[0].String(event.KeyDetail)
			req.Equal(event.EmptyContentDetail, detail)
			settle()
			req.Empty(otherTransport.Written())
			req.Equal(published, f.monitor.Snapshot().Published)
		})
	}
}

func TestChatRouter_Content_Too_Long(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMessageStore(ctrl)
	r := NewChatRouter(f.log, ChatDeps{Registry: f.registry, Messages: store, Executor: inlineExecutor{}, MaxContentLength: 5})
	sender, transport := f.connect(t, r, userID, chatScope(roomID))

	r.HandleInbound(context.Background(), sender, event.New("", map[string]any{"content": strings.Repeat("a", 6)}))

	req.Eventually(func() bool { return len(transport.OfType(event.ErrorType)) == 1 }, time.Second, 5*time.Millisecond)
	detail, _ := transport.OfType(event.ErrorType)[0].String(event.KeyDetail)
	req.Equal(ContentTooLongDetail, detail)
}

func TestChatRouter_Store_Failure_Keeps_Session(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMessageStore(ctrl)
	r := NewChatRouter(f.log, ChatDeps{Registry: f.registry, Messages: store, Executor: inlineExecutor{}})
	sender, senderTransport := f.connect(t, r, userID, chatScope(roomID))
	_, otherTransport := f.connect(t, r, expertID, chatScope(roomID))

	store.EXPECT().Create(gomock.Any(), roomID, userID, "hello").Return(domain.Message{}, fmt.Errorf("disk full"))

	r.HandleInbound(context.Background(), sender, event.New("", map[string]any{"content": "hello"}))

	// Then only the sender hears about it
	req.Eventually(func() bool { return len(senderTransport.OfType(event.ErrorType)) == 1 }, time.Second, 5*time.Millisecond)
	detail, _ := senderTransport.OfType(event.ErrorType)[0].String(event.KeyDetail)
	req.Equal(event.DeliveryFailedDetail, detail)
	settle()
	req.Empty(otherTransport.Written())
	req.Equal(runtime.Active, sender.State())
}

func TestChatRouter_Panicking_Store_Is_Contained(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMessageStore(ctrl)
	r := NewChatRouter(f.log, ChatDeps{Registry: f.registry, Messages: store, Executor: inlineExecutor{}})
	sender, transport := f.connect(t, r, userID, chatScope(roomID))

	store.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, domain.RoomID, domain.UserID, string) (domain.Message, error) {
			panic("driver bug")
		})

	req.NotPanics(func() {
		r.HandleInbound(context.Background(), sender, event.New("", map[string]any{"content": "hello"}))
	})
	req.Eventually(func() bool { return len(transport.OfType(event.ErrorType)) == 1 }, time.Second, 5*time.Millisecond)
}

func TestChatRouter_Presence_Is_Not_Echoed_To_Its_Origin(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMessageStore(ctrl)
	r := NewChatRouter(f.log, ChatDeps{Registry: f.registry, Messages: store, Executor: inlineExecutor{}})

	// Given the user is alone in the room
	user, userTransport := f.connect(t, r, userID, chatScope(roomID))
	store.EXPECT().MarkRead(gomock.Any(), roomID, userID).Return(0, nil)
	r.Enter(context.Background(), user)

	// When the expert connects
	expert, expertTransport := f.connect(t, r, expertID, chatScope(roomID))
	store.EXPECT().MarkRead(gomock.Any(), roomID, expertID).Return(3, nil)
	r.Enter(context.Background(), expert)

	// Then the user receives exactly one announce_entered for the expert
	req.Eventually(func() bool { return len(userTransport.Written()) == 1 }, time.Second, 5*time.Millisecond)
	entered := userTransport.Written()[0]
	req.Equal(event.AnnounceEnteredType, entered.Type())
	origin, ok := entered.Origin()
	req.True(ok)
	req.Equal(expertID, origin)

	// And the expert never sees its own announcement
	settle()
	req.Empty(expertTransport.Written())
	req.Len(userTransport.Written(), 1)
}

func TestChatRouter_Announce_Exist_Is_Republished(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMessageStore(ctrl)
	r := NewChatRouter(f.log, ChatDeps{Registry: f.registry, Messages: store, Executor: inlineExecutor{}})
	user, userTransport := f.connect(t, r, userID, chatScope(roomID))
	_, expertTransport := f.connect(t, r, expertID, chatScope(roomID))

	// When the user pings its presence, even claiming to be someone else
	r.HandleInbound(context.Background(), user, event.New(event.AnnounceExistType, map[string]any{"user_id": 99, "status": "typing"}))

	// Then the expert gets it as sent, stamped with the real sender, and the user doesn't
	req.Eventually(func() bool { return len(expertTransport.Written()) == 1 }, time.Second, 5*time.Millisecond)
	got := expertTransport.Written()[0]
	origin, _ := got.Origin()
	req.Equal(userID, origin)
	status, _ := got.Get("status")
	req.Equal("typing", status)
	settle()
	req.Empty(userTransport.Written())
}

func TestChatRouter_Exit_Announces_Departure(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMessageStore(ctrl)
	r := NewChatRouter(f.log, ChatDeps{Registry: f.registry, Messages: store, Executor: inlineExecutor{}})
	user, _ := f.connect(t, r, userID, chatScope(roomID))
	_, expertTransport := f.connect(t, r, expertID, chatScope(roomID))

	r.Exit(context.Background(), user)

	req.Eventually(func() bool { return len(expertTransport.OfType(event.ChatExitedType)) == 1 }, time.Second, 5*time.Millisecond)
}

func TestChatRouter_Enter_Survives_MarkRead_Failure(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMessageStore(ctrl)
	r := NewChatRouter(f.log, ChatDeps{Registry: f.registry, Messages: store, Executor: inlineExecutor{}})
	_, userTransport := f.connect(t, r, userID, chatScope(roomID))
	expert, _ := f.connect(t, r, expertID, chatScope(roomID))

	store.EXPECT().MarkRead(gomock.Any(), roomID, expertID).Return(0, fmt.Errorf("timeout"))

	req.NotPanics(func() { r.Enter(context.Background(), expert) })
	req.Eventually(func() bool { return len(userTransport.OfType(event.AnnounceEnteredType)) == 1 }, time.Second, 5*time.Millisecond)
}

func TestChatRouter_Unknown_Type_Is_Ignored(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMessageStore(ctrl)
	r := NewChatRouter(f.log, ChatDeps{Registry: f.registry, Messages: store, Executor: inlineExecutor{}})
	user, transport := f.connect(t, r, userID, chatScope(roomID))

	r.HandleInbound(context.Background(), user, event.New("dance", map[string]any{"content": "x"}))

	settle()
	req.Empty(transport.Written())
}
