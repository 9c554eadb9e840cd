package websocket

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"voicerelay/domain"
)

const (
	defaultWriteWait      = 10 * time.Second
	defaultPongWait       = 60 * time.Second
	defaultMaxMessageSize = 64 * 1024
	defaultSendQueue      = 256
)

type Options struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
	SendQueue      int
}

func (o Options) withDefaults() Options {
	if o.WriteWait <= 0 {
		o.WriteWait = defaultWriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = defaultPongWait
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = defaultMaxMessageSize
	}
	if o.SendQueue <= 0 {
		o.SendQueue = defaultSendQueue
	}
	return o
}

func (o Options) pingPeriod() time.Duration { return (o.PongWait * 9) / 10 }

// SessionObserver is notified of session lifecycle events.
type SessionObserver interface {
	RecordSessionOpened()
	RecordSessionClosed(reason string, durationSeconds float64)
	RecordRegisterFailure()
}

// Conn is the relay side of one client connection. Its read loop is the only
// path that unregisters it.
type Conn struct {
	id          string
	channel     string
	remoteAddr  string
	ws          *websocket.Conn
	send        chan domain.Payload
	broadcaster domain.Broadcaster
	handler     domain.MessageHandler
	observer    SessionObserver
	opts        Options
	startedAt   time.Time

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewConn(id, channel string, ws *websocket.Conn, b domain.Broadcaster, h domain.MessageHandler, opts Options) *Conn {
	opts = opts.withDefaults()
	return &Conn{
		id:          id,
		channel:     channel,
		remoteAddr:  ws.RemoteAddr().String(),
		ws:          ws,
		send:        make(chan domain.Payload, opts.SendQueue),
		broadcaster: b,
		handler:     h,
		opts:        opts,
		done:        make(chan struct{}),
	}
}

func (c *Conn) ID() string         { return c.id }
func (c *Conn) Channel() string    { return c.channel }
func (c *Conn) RemoteAddr() string { return c.remoteAddr }

// Done is closed once the session has been unregistered and its socket released.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Send queues p for the write pump. It never blocks: a full queue drops p for
// this recipient only.
func (c *Conn) Send(p domain.Payload) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return domain.ErrSessionClosed
	}

	select {
	case c.send <- p:
		return nil
	default:
		return domain.ErrBackpressure
	}
}

func (c *Conn) Close() error {
	return c.ws.Close()
}

func (c *Conn) Start() error {
	if err := c.broadcaster.Register(c); err != nil {
		if c.observer != nil {
			c.observer.RecordRegisterFailure()
		}
		c.ws.Close()
		close(c.done)
		return err
	}
	c.startedAt = time.Now()
	if c.observer != nil {
		c.observer.RecordSessionOpened()
	}

	go c.writePump()
	go c.readPump()
	return nil
}

func (c *Conn) readPump() {
	reason := "remote_closed"
	defer func() {
		c.broadcaster.Unregister(c)
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()
		c.ws.Close()
		if c.observer != nil {
			c.observer.RecordSessionClosed(reason, time.Since(c.startedAt).Seconds())
		}
		close(c.done)
	}()

	c.ws.SetReadLimit(c.opts.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		return nil
	})

	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				reason = "read_error"
				slog.Warn("read error", "sessionId", c.id, "remoteAddr", c.remoteAddr, "error", err)
			} else {
				slog.Debug("session closed", "sessionId", c.id, "error", err)
			}
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))

		kind := domain.Binary
		if messageType == websocket.TextMessage {
			kind = domain.Text
		}
		c.handler.Handle(c, domain.Payload{Kind: kind, Data: data})
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.opts.pingPeriod())
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case p, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(messageType(p.Kind), p.Data); err != nil {
				slog.Debug("write error", "sessionId", c.id, "error", err)
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func messageType(k domain.PayloadKind) int {
	if k == domain.Text {
		return websocket.TextMessage
	}
	return websocket.BinaryMessage
}
