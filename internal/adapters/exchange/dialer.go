package exchange

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const pongWriteWait = time.Second

// Conn is the part of a websocket connection the connector uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v any) error
	SetReadDeadline(t time.Time) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

type WSDialer struct {
	dialer *websocket.Dialer
}

func NewWSDialer(handshakeTimeout time.Duration) *WSDialer {
	d := *websocket.DefaultDialer
	d.HandshakeTimeout = handshakeTimeout
	return &WSDialer{dialer: &d}
}

func (d *WSDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, _, err := d.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return newWSConn(conn), nil
}

// wsConn counts server pings as traffic: each ping moves the read deadline
// forward by the window of the last SetReadDeadline call.
type wsConn struct {
	*websocket.Conn
	window atomic.Int64
}

func newWSConn(conn *websocket.Conn) *wsConn {
	c := &wsConn{Conn: conn}
	conn.SetPingHandler(c.handlePing)
	return c
}

func (c *wsConn) SetReadDeadline(t time.Time) error {
	if t.IsZero() {
		c.window.Store(0)
	} else {
		c.window.Store(int64(time.Until(t)))
	}
	return c.Conn.SetReadDeadline(t)
}

func (c *wsConn) handlePing(data string) error {
	if window := time.Duration(c.window.Load()); window > 0 {
		_ = c.Conn.SetReadDeadline(time.Now().Add(window))
	}

	err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(pongWriteWait))
	if errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return nil
	}
	return err
}
