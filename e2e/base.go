package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/oz-collabo-04/Back/auth"
	"github.com/oz-collabo-04/Back/domain"
	"github.com/stretchr/testify/suite"
)

type BaseRelaySuite struct {
	suite.Suite
	Config Config
	signer *auth.Signer
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseRelaySuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.RelayAddr == "" || s.Config.JWTSecret == "" || s.Config.InternalToken == "" {
		s.T().Skip("RELAY_ADDR, JWT_SECRET and INTERNAL_TOKEN are required")
	}
	s.signer = auth.NewSigner(s.Config.JWTSecret)
}

func (s *BaseRelaySuite) header(t *testing.T, name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)
}

// Client is one WebSocket connection with frame logging.
type Client struct {
	t     *testing.T
	name  string
	conn  *websocket.Conn
	debug bool
}

// Dial opens a connection as userID; a zero userID dials anonymously.
func (s *BaseRelaySuite) Dial(name, path string, userID domain.UserID) *Client {
	t := s.T()
	s.header(t, name)

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	if userID > 0 {
		token, err := s.signer.GenerateToken(userID, name, time.Hour)
		s.Require().NoError(err)
		dialer.Subprotocols = []string{token}
	}
	conn, _, err := dialer.Dial("ws://"+s.Config.RelayAddr+path, nil)
	s.Require().NoError(err, "Failed to dial relay at "+s.Config.RelayAddr+path)
	t.Cleanup(func() { _ = conn.Close() })
	return &Client{t: t, name: name, conn: conn, debug: s.Config.DebugJSON}
}

func (c *Client) Send(frame map[string]any) error {
	if c.debug {
		c.t.Logf("%s >>> %v", c.name, frame)
	}
	return c.conn.WriteJSON(frame)
}

// Next returns the next frame of the given type, skipping others.
func (c *Client) Next(typ string, timeout time.Duration) (map[string]any, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		var frame map[string]any
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, err
		}
		if c.debug {
			c.t.Logf("%s <<< %s", c.name, data)
		}
		if frame["type"] == typ {
			return frame, nil
		}
	}
}

// CloseCode waits for the relay to close the connection.
func (c *Client) CloseCode(timeout time.Duration) int {
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if closeErr, ok := err.(*websocket.CloseError); ok {
				return closeErr.Code
			}
			return 0
		}
	}
}

func (c *Client) Close() {
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = c.conn.Close()
}

// Internal calls the relay ingress with the shared token.
func (s *BaseRelaySuite) Internal(method, path string, body any) *http.Response {
	payload, err := json.Marshal(body)
	s.Require().NoError(err)
	r, err := http.NewRequest(method, "http://"+s.Config.RelayAddr+path, bytes.NewReader(payload))
	s.Require().NoError(err)
	r.Header.Set("X-Internal-Token", s.Config.InternalToken)
	resp, err := http.DefaultClient.Do(r)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = resp.Body.Close() })
	return resp
}
