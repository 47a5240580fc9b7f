package e2e

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/oz-collabo-04/Back/domain"
	"github.com/stretchr/testify/suite"
)

type testChatSuite struct {
	BaseRelaySuite
}

func TestChatSuite(t *testing.T) {
	suite.Run(t, &testChatSuite{})
}

func (s *testChatSuite) TestConversationFlow() {
	// unique ids so the suite can run against a long lived relay
	base := time.Now().UnixNano() % 1_000_000_000
	roomID := domain.RoomID(base)
	bride, expert := domain.UserID(base*2+1), domain.UserID(base*2+2)
	path := fmt.Sprintf("/ws/chat/%d/", roomID)

	s.Run("Step 0: Register the room", func() {
		resp := s.Internal(http.MethodPut, fmt.Sprintf("/internal/rooms/%d", roomID), map[string]any{
			"user_id": bride, "expert_user_id": expert, "user_name": "Bride", "expert_name": "Studio",
		})
		s.Require().Equal(http.StatusOK, resp.StatusCode)
	})

	inbox := s.Dial("Expert notifications", "/ws/notifications/", expert)
	brideConn := s.Dial("Bride joins", path, bride)
	expertConn := s.Dial("Expert joins", path, expert)

	s.Run("Step 1: Entry is announced", func() {
		frame, err := brideConn.Next("announce_entered", 5*time.Second)
		s.Require().NoError(err)
		s.Require().EqualValues(expert, frame["user_id"])
	})

	s.Run("Step 2: A message reaches both parties and notifies the expert", func() {
		s.Require().NoError(brideConn.Send(map[string]any{"content": "Hello"}))
		for _, c := range []*Client{brideConn, expertConn} {
			frame, err := c.Next("chat_message", 5*time.Second)
			s.Require().NoError(err)
			s.Require().Equal("Hello", frame["content"])
		}
		frame, err := inbox.Next("send_notification", 5*time.Second)
		s.Require().NoError(err)
		s.Require().Equal("message", frame["notification"].(map[string]any)["notification_type"])
	})

	s.Run("Step 3: Leaving is announced", func() {
		expertConn.Close()
		frame, err := brideConn.Next("chat_exited", 5*time.Second)
		s.Require().NoError(err)
		s.Require().EqualValues(expert, frame["user_id"])
	})

	s.Run("Step 4: Strangers are refused", func() {
		stranger := s.Dial("Stranger", path, expert+1_000_000_000)
		s.Require().Equal(domain.CloseMissingRoute, stranger.CloseCode(5*time.Second))
		anonymous := s.Dial("Anonymous", path, 0)
		s.Require().Equal(domain.CloseUnauthorized, anonymous.CloseCode(5*time.Second))
	})
}
