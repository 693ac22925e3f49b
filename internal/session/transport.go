// internal/session/transport.go
package session

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// writeTimeout bounds every outbound frame so a wedged connection surfaces
// as a transport failure instead of a stuck loop.
const writeTimeout = 10 * time.Second

// Transport is the message-oriented connection to the coordinator. One
// connection per session; the session state machine owns the full lifecycle.
type Transport interface {
	// Connect opens the connection. Safe to call again after a failure.
	Connect(ctx context.Context) error

	// Send writes one message. Any error is a transport failure.
	Send(msg *Message) error

	// Receive waits up to timeout for an inbound message. Returns
	// ErrReceiveTimeout when nothing arrives in time; a malformed frame is
	// returned as a Message with an unrecognized Type for the caller to
	// ignore.
	Receive(timeout time.Duration) (*Message, error)

	// Close tears the connection down.
	Close() error
}

// wsTransport is the production Transport over a WebSocket connection.
type wsTransport struct {
	url    string
	dialer *websocket.Dialer
	conn   *websocket.Conn
}

// NewWebSocketTransport validates the coordinator endpoint and returns a
// transport for it. An invalid endpoint is a fatal configuration failure:
// no amount of retrying will make the dialer work.
func NewWebSocketTransport(endpoint string) (Transport, error) {
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEndpoint, endpoint)
	}
	return &wsTransport{
		url: endpoint,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	}, nil
}

func (t *wsTransport) Connect(ctx context.Context) error {
	conn, _, err := t.dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", t.url, err)
	}
	t.conn = conn
	return nil
}

func (t *wsTransport) Send(msg *Message) error {
	if t.conn == nil {
		return ErrNotConnected
	}
	data, err := msg.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal %s message: %w", msg.Type, err)
	}
	t.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send %s message: %w", msg.Type, err)
	}
	return nil
}

func (t *wsTransport) Receive(timeout time.Duration) (*Message, error) {
	if t.conn == nil {
		return nil, ErrNotConnected
	}
	t.conn.SetReadDeadline(time.Now().Add(timeout))
	_, data, err := t.conn.ReadMessage()
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return nil, ErrReceiveTimeout
		}
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, ErrConnectionClosed
		}
		return nil, fmt.Errorf("receive failed: %w", err)
	}
	msg, err := UnmarshalMessage(data)
	if err != nil {
		// Malformed coordinator payloads are ignored, not errors
		return &Message{}, nil
	}
	return msg, nil
}

func (t *wsTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}
