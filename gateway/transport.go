package gateway

import (
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/oz-collabo-04/Back/contract"
	"github.com/oz-collabo-04/Back/domain/event"
)

var _ contract.Transport = (*wsTransport)(nil)

// A close frame payload is at most 125 bytes, two of them for the code.
const maxCloseReason = 123

// wsTransport is the gorilla side of a session.
// WriteEvent is only called from the session's write pump; Close and pings use
// WriteControl, which gorilla allows concurrently with the writer.
// A transport may be created before the upgrade and attached afterwards.
type wsTransport struct {
	mu           sync.Mutex
	conn         *websocket.Conn
	writeTimeout time.Duration
	closed       bool
}

func newTransport(writeTimeout time.Duration) *wsTransport {
	return &wsTransport{writeTimeout: writeTimeout}
}

func (t *wsTransport) attach(conn *websocket.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conn = conn
}

func (t *wsTransport) current() (*websocket.Conn, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn, t.closed
}

func (t *wsTransport) WriteEvent(evt event.Event) error {
	conn, closed := t.current()
	if conn == nil || closed {
		return fmt.Errorf("transport not open")
	}
	_ = conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	if err := conn.WriteJSON(evt); err != nil {
		return fmt.Errorf("write error: %w", err)
	}
	return nil
}

func (t *wsTransport) Ping() error {
	conn, closed := t.current()
	if conn == nil || closed {
		return fmt.Errorf("transport not open")
	}
	return conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(t.writeTimeout))
}

// Close sends a close frame carrying code and closes the connection.
// Closing twice, or before a connection is attached, is a no-op.
func (t *wsTransport) Close(code int, reason string) error {
	t.mu.Lock()
	if t.closed || t.conn == nil {
		t.closed = true
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	conn := t.conn
	t.mu.Unlock()

	msg := websocket.FormatCloseMessage(code, truncateReason(reason))
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(t.writeTimeout))
	return conn.Close()
}

// truncateReason cuts reason to fit a close frame without splitting a rune.
func truncateReason(reason string) string {
	if len(reason) <= maxCloseReason {
		return reason
	}
	cut := maxCloseReason
	for cut > 0 && !utf8.RuneStart(reason[cut]) {
		cut--
	}
	return reason[:cut]
}
