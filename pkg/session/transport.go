package session

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	canvaserrors "github.com/odvcencio/codecanvas/pkg/errors"
)

// EventType classifies a channel lifecycle event.
type EventType string

const (
	// EventReady fires once when the channel finishes establishing.
	EventReady EventType = "ready"
	// EventData carries one inbound text payload, verbatim.
	EventData EventType = "data"
	// EventClosed is the terminal event for a cleanly closed channel.
	EventClosed EventType = "closed"
	// EventFailed is the terminal event for an abnormal channel loss.
	EventFailed EventType = "failed"
)

// Event is one channel lifecycle or data event. A connection delivers
// exactly one terminal event (Closed or Failed), after which its event
// stream ends.
type Event struct {
	Type    EventType
	Payload string
	Err     error
}

// Conn is an established bidirectional channel.
type Conn interface {
	// Send forwards a literal text payload. No framing, no acknowledgement.
	Send(text string) error
	// Events returns the inbound event stream. The channel is closed after
	// the terminal event.
	Events() <-chan Event
	// Close tears the channel down. The pending terminal event still
	// arrives on the event stream.
	Close() error
}

// Transport opens channels. The session manager is its only caller.
type Transport interface {
	Open(ctx context.Context, address string) (Conn, error)
}

const writeTimeout = 10 * time.Second

// WebSocketTransport dials channels over websocket.
type WebSocketTransport struct {
	dialer *websocket.Dialer
}

// NewWebSocketTransport returns a Transport backed by the default dialer.
func NewWebSocketTransport() *WebSocketTransport {
	return &WebSocketTransport{dialer: websocket.DefaultDialer}
}

// Open dials the address and starts the read pump. The first event on the
// returned connection is always Ready.
func (t *WebSocketTransport) Open(ctx context.Context, address string) (Conn, error) {
	wsc, resp, err := t.dialer.DialContext(ctx, address, nil)
	if err != nil {
		e := canvaserrors.Wrap(err, canvaserrors.ErrCodeChannelFailed, "channel dial failed")
		if resp != nil {
			e = e.WithContext("status", resp.Status)
		}
		return nil, e
	}

	c := &wsConn{
		conn:   wsc,
		events: make(chan Event, 32),
	}
	c.events <- Event{Type: EventReady}
	go c.readPump()
	return c, nil
}

type wsConn struct {
	conn    *websocket.Conn
	events  chan Event
	writeMu sync.Mutex
	closed  sync.Once
}

func (c *wsConn) Send(text string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		return canvaserrors.Wrap(err, canvaserrors.ErrCodeChannelFailed, "channel write failed")
	}
	return nil
}

func (c *wsConn) Events() <-chan Event {
	return c.events
}

func (c *wsConn) Close() error {
	var err error
	c.closed.Do(func() {
		c.writeMu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// readPump delivers inbound payloads until the socket errors, then emits
// the single terminal event and closes the stream.
func (c *wsConn) readPump() {
	defer close(c.events)

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.events <- Event{Type: EventFailed, Err: err}
			} else {
				c.events <- Event{Type: EventClosed}
			}
			return
		}
		c.events <- Event{Type: EventData, Payload: string(payload)}
	}
}
