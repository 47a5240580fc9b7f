package internal

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/oz-collabo-04/Back/domain"
	"github.com/oz-collabo-04/Back/infrastructure/storage"
	"github.com/stretchr/testify/require"
)

const internalToken = "internal-test-token"

type testRelay struct {
	app    *App
	server *httptest.Server
}

func newTestRelay(t *testing.T) *testRelay {
	t.Helper()
	db, err := storage.OpenInMemory()
	require.NoError(t, err)

	cfg := Config{
		JWTSecret:                "a-secret-of-sixteen-bytes",
		InternalToken:            internalToken,
		RequireAuthNotifications: true,
		MaxContentLength:         200,
		SessionBufferSize:        32,
		BridgeBufferSize:         32,
		StoreWorkers:             2,
		StoreBufferSize:          16,
		StoreTimeout:             time.Second,
		RestartInterval:          50 * time.Millisecond,
		WriteTimeout:             time.Second,
		PongTimeout:              10 * time.Second,
		PingInterval:             5 * time.Second,
		MaxFrameBytes:            4096,
	}
	app := NewApp(logs.GetLoggerFromLevel(slog.LevelDebug), cfg, db)
	ctx, cancel := context.WithCancel(context.Background())
	app.Start(ctx)
	server := httptest.NewServer(app.Handler())

	t.Cleanup(func() {
		server.Close()
		cancel()
		app.Stop()
		_ = db.Close()
	})
	return &testRelay{app: app, server: server}
}

func (r *testRelay) token(t *testing.T, id domain.UserID, name string) string {
	t.Helper()
	token, err := r.app.Signer.GenerateToken(id, name, time.Hour)
	require.NoError(t, err)
	return token
}

func (r *testRelay) room(t *testing.T, id domain.RoomID, user, expert domain.UserID) {
	t.Helper()
	room := domain.NewRoom(id, user, expert)
	room.UserName, room.ExpertName = "Bride", "Studio"
	require.NoError(t, r.app.Rooms.SaveRoom(context.Background(), room))
}

func (r *testRelay) dial(t *testing.T, path, token string) *websocket.Conn {
	t.Helper()
	dialer := websocket.Dialer{HandshakeTimeout: time.Second}
	if token != "" {
		dialer.Subprotocols = []string{token}
	}
	url := "ws" + strings.TrimPrefix(r.server.URL, "http") + path
	conn, resp, err := dialer.Dial(url, nil)
	require.NoError(t, err)
	if token != "" {
		require.Equal(t, token, resp.Header.Get("Sec-WebSocket-Protocol"))
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (r *testRelay) members(group domain.GroupName) int {
	return len(r.app.orchestrator.LocalRegistry().Members(group))
}

// next reads frames until one of the given type arrives.
func next(t *testing.T, conn *websocket.Conn, typ string) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var frame map[string]any
		require.NoError(t, json.Unmarshal(data, &frame))
		if frame["type"] == typ {
			return frame
		}
	}
}

func closeCode(t *testing.T, conn *websocket.Conn) int {
	t.Helper()
	code, _ := closeFrame(t, conn)
	return code
}

func closeFrame(t *testing.T, conn *websocket.Conn) (int, string) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		var closeErr *websocket.CloseError
		require.ErrorAs(t, err, &closeErr)
		return closeErr.Code, closeErr.Text
	}
}

func Test_Chat_Between_Two_Parties(t *testing.T) {
	req := require.New(t)
	relay := newTestRelay(t)
	relay.room(t, 1, 10, 20)

	// Given the expert listens for notifications and the bride is in the room
	inbox := relay.dial(t, "/ws/notifications/", relay.token(t, 20, "Studio"))
	bride := relay.dial(t, "/ws/chat/1/", relay.token(t, 10, "Bride"))

	// When the expert joins the room
	expert := relay.dial(t, "/ws/chat/1/", relay.token(t, 20, "Studio"))

	// Then the bride is told
	entered := next(t, bride, "announce_entered")
	req.EqualValues(20, entered["user_id"])

	// When the bride sends a message
	req.NoError(bride.WriteJSON(map[string]any{"content": "  Is June 3rd free?  "}))

	// Then both parties receive it once persisted
	for _, conn := range []*websocket.Conn{bride, expert} {
		msg := next(t, conn, "chat_message")
		req.Equal("Is June 3rd free?", msg["content"])
		req.EqualValues(10, msg["sender"])
		req.EqualValues(1, msg["room_id"])
		req.NotEmpty(msg["id"])
	}

	// And the expert gets a message notification
	pushed := next(t, inbox, "send_notification")
	notification := pushed["notification"].(map[string]any)
	req.Equal("Bride sent you a message", notification["title"])
	req.Equal("message", notification["notification_type"])
	req.Equal(false, notification["is_read"])

	messages, _, err := relay.app.Messages.GetMessages(1, nil)
	req.NoError(err)
	req.Len(messages, 1)
}

func Test_Empty_Message_Is_Refused(t *testing.T) {
	req := require.New(t)
	relay := newTestRelay(t)
	relay.room(t, 1, 10, 20)
	bride := relay.dial(t, "/ws/chat/1/", relay.token(t, 10, ""))

	req.NoError(bride.WriteJSON(map[string]any{"content": "   "}))

	reply := next(t, bride, "empty_error")
	req.Equal("message required.", reply["detail"])
	messages, _, err := relay.app.Messages.GetMessages(1, nil)
	req.NoError(err)
	req.Empty(messages)
}

func Test_Leaving_Party_Is_Announced(t *testing.T) {
	req := require.New(t)
	relay := newTestRelay(t)
	relay.room(t, 1, 10, 20)
	bride := relay.dial(t, "/ws/chat/1/", relay.token(t, 10, ""))
	expert := relay.dial(t, "/ws/chat/1/", relay.token(t, 20, ""))
	next(t, bride, "announce_entered")
	req.Eventually(func() bool { return relay.members(domain.ChatGroup(1)) == 2 }, time.Second, 10*time.Millisecond)

	// When the expert disconnects
	req.NoError(expert.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))

	// Then the bride is told and the expert no longer belongs to the room group
	exited := next(t, bride, "chat_exited")
	req.EqualValues(20, exited["user_id"])
	req.Eventually(func() bool { return relay.members(domain.ChatGroup(1)) == 1 }, time.Second, 10*time.Millisecond)
}

func Test_Notification_Pushed_From_Backend(t *testing.T) {
	req := require.New(t)
	relay := newTestRelay(t)
	inbox := relay.dial(t, "/ws/notifications/", relay.token(t, 7, ""))
	other := relay.dial(t, "/ws/notifications/", relay.token(t, 8, ""))
	req.Eventually(func() bool { return relay.members(domain.NotificationGroup(7)) == 1 }, time.Second, 10*time.Millisecond)

	body := `{"receiver_id":7,"title":"Your estimate is ready","message":"Open it","notification_type":"estimate"}`
	r, err := http.NewRequest(http.MethodPost, relay.server.URL+"/internal/notifications", strings.NewReader(body))
	req.NoError(err)
	r.Header.Set("X-Internal-Token", internalToken)
	resp, err := http.DefaultClient.Do(r)
	req.NoError(err)
	_ = resp.Body.Close()
	req.Equal(http.StatusCreated, resp.StatusCode)

	pushed := next(t, inbox, "send_notification")
	notification := pushed["notification"].(map[string]any)
	req.Equal("Your estimate is ready", notification["title"])
	req.Equal("estimate", notification["notification_type"])

	// The other user's group never sees it
	_ = other.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err = other.ReadMessage()
	req.Error(err)
}

func Test_Refused_Connections(t *testing.T) {
	relay := newTestRelay(t)
	relay.room(t, 1, 10, 20)

	cases := []struct {
		name  string
		path  string
		token string
		code  int
	}{
		{"anonymous chat", "/ws/chat/1/", "", domain.CloseUnauthorized},
		{"invalid token", "/ws/chat/1/", "not-a-jwt", domain.CloseUnauthorized},
		{"missing room", "/ws/chat/", relay.token(t, 10, ""), domain.CloseMissingRoute},
		{"not a party", "/ws/chat/1/", relay.token(t, 30, ""), domain.CloseMissingRoute},
		{"unknown room", "/ws/chat/99/", relay.token(t, 10, ""), domain.CloseNotFound},
		{"anonymous notifications", "/ws/notifications/", "", domain.CloseUnauthorized},
		{"room id with long non-ascii text", "/ws/chat/x" + strings.Repeat("é", 80) + "/", relay.token(t, 10, ""), domain.CloseMissingRoute},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := require.New(t)
			conn := relay.dial(t, c.path, c.token)
			code, reason := closeFrame(t, conn)
			req.Equal(c.code, code)
			req.NotContains(reason, "é")
		})
	}

	req := require.New(t)
	req.Equal(0, relay.members(domain.ChatGroup(1)))
	req.Equal(0, relay.members(domain.ChatGroup(99)))
	req.EqualValues(len(cases), relay.app.Monitor().Snapshot().RejectedConnections)
	req.Zero(relay.app.Monitor().Snapshot().ActiveSessions)
}

func Test_Health_And_Stats(t *testing.T) {
	req := require.New(t)
	relay := newTestRelay(t)

	resp, err := http.Get(relay.server.URL + "/healthz")
	req.NoError(err)
	_ = resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)

	relay.dial(t, "/ws/notifications/", relay.token(t, 3, ""))
	req.Eventually(func() bool { return relay.app.Monitor().Snapshot().ActiveSessions == 1 }, time.Second, 10*time.Millisecond)

	resp, err = http.Get(relay.server.URL + "/debug/stats")
	req.NoError(err)
	defer func() { _ = resp.Body.Close() }()
	var stats map[string]any
	req.NoError(json.NewDecoder(resp.Body).Decode(&stats))
	req.EqualValues(1, stats["active_sessions"])
}

func Test_Notification_For_Offline_User_Is_A_No_Op(t *testing.T) {
	req := require.New(t)
	relay := newTestRelay(t)

	// Given nobody listens on notification_99
	created, err := relay.app.Notifications.CreateNotification(context.Background(), domain.Notification{
		ReceiverID:       99,
		Title:            "Schedule updated",
		NotificationType: domain.NotificationSchedule,
	})

	// Then the notification is stored and the publish completes without error
	req.NoError(err)
	req.NotEmpty(created.ID)
	req.Eventually(func() bool { return relay.app.Monitor().Snapshot().Published >= 1 }, time.Second, 10*time.Millisecond)
	req.Zero(relay.app.Monitor().Snapshot().Delivered)
}

func Test_Party_That_Left_Is_Refused(t *testing.T) {
	req := require.New(t)
	relay := newTestRelay(t)
	relay.room(t, 1, 10, 20)

	body := `{"user_id":20,"present":false}`
	r, err := http.NewRequest(http.MethodPost, relay.server.URL+"/internal/rooms/1/presence", strings.NewReader(body))
	req.NoError(err)
	r.Header.Set("X-Internal-Token", internalToken)
	resp, err := http.DefaultClient.Do(r)
	req.NoError(err)
	_ = resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)

	conn := relay.dial(t, "/ws/chat/1/", relay.token(t, 20, ""))
	req.Equal(domain.CloseMissingRoute, closeCode(t, conn))
}

func Test_Stop_Right_After_Start_Ends_Workers(t *testing.T) {
	req := require.New(t)

	for i := 0; i < 20; i++ {
		db, err := storage.OpenInMemory()
		req.NoError(err)
		app := NewApp(logs.GetLoggerFromLevel(slog.LevelError), Config{
			JWTSecret:         "a-secret-of-sixteen-bytes",
			SessionBufferSize: 8,
			BridgeBufferSize:  8,
			StoreWorkers:      2,
			StoreBufferSize:   4,
			StoreTimeout:      time.Second,
			RestartInterval:   10 * time.Millisecond,
			WriteTimeout:      time.Second,
			PongTimeout:       time.Second,
			PingInterval:      time.Second,
			MaxFrameBytes:     4096,
		}, db)

		// Given a stop requested before the workers are even scheduled
		app.Start(context.Background())
		app.Stop()

		// Then the workers return although the context is never canceled
		select {
		case <-app.Done():
		case <-time.After(2 * time.Second):
			req.Fail("workers still running after Stop")
		}
		_ = db.Close()
	}
}
