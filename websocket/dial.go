package websocket

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"voicerelay/domain"
)

type DialOptions struct {
	Channel          string
	TLSConfig        *tls.Config
	HandshakeTimeout time.Duration
	WriteWait        time.Duration
	// IdleTimeout closes the connection when neither data nor a relay ping
	// arrives for this long. Zero disables it.
	IdleTimeout    time.Duration
	MaxMessageSize int64
}

// ClientConn is the client side of a relay connection. Send may be called
// from several goroutines; Receive from one.
type ClientConn struct {
	ws        *websocket.Conn
	writeMu   sync.Mutex
	writeWait time.Duration
	idle      time.Duration
	closeOnce sync.Once
	closeErr  error
}

func Dial(ctx context.Context, uri string, opts DialOptions) (*ClientConn, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, &domain.ConnectionError{URI: uri, Err: err}
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "ws", "wss":
	default:
		return nil, &domain.ConnectionError{URI: uri, Err: fmt.Errorf("unsupported scheme %q", u.Scheme)}
	}
	if opts.Channel != "" {
		q := u.Query()
		q.Set("channel", opts.Channel)
		u.RawQuery = q.Encode()
	}

	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = defaultWriteWait
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = defaultMaxMessageSize
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: opts.HandshakeTimeout,
		TLSClientConfig:  opts.TLSConfig,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
	}
	ws, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (status %s)", err, resp.Status)
		}
		return nil, &domain.ConnectionError{URI: u.Redacted(), Err: err}
	}
	ws.SetReadLimit(opts.MaxMessageSize)

	c := &ClientConn{ws: ws, writeWait: opts.WriteWait, idle: opts.IdleTimeout}
	if c.idle > 0 {
		ws.SetReadDeadline(time.Now().Add(c.idle))
		ws.SetPingHandler(func(data string) error {
			ws.SetReadDeadline(time.Now().Add(c.idle))
			err := ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(c.writeWait))
			if errors.Is(err, websocket.ErrCloseSent) {
				return nil
			}
			return err
		})
	}
	return c, nil
}

func (c *ClientConn) Send(p domain.Payload) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(c.writeWait))
	if err := c.ws.WriteMessage(messageType(p.Kind), p.Data); err != nil {
		return &domain.TransportError{Op: "send", Err: err}
	}
	return nil
}

func (c *ClientConn) Receive() (domain.Payload, error) {
	messageType, data, err := c.ws.ReadMessage()
	if err != nil {
		return domain.Payload{}, &domain.TransportError{
			Op:     "receive",
			Closed: websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway),
			Err:    err,
		}
	}
	if c.idle > 0 {
		c.ws.SetReadDeadline(time.Now().Add(c.idle))
	}

	kind := domain.Binary
	if messageType == websocket.TextMessage {
		kind = domain.Text
	}
	return domain.Payload{Kind: kind, Data: data}, nil
}

// Close sends a close frame and releases the socket, unblocking any pending
// Receive. It is safe to call more than once.
func (c *ClientConn) Close() error {
	c.closeOnce.Do(func() {
		c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}
