package domain

import "time"

type PayloadKind int

const (
	Binary PayloadKind = iota
	Text
)

func (k PayloadKind) String() string {
	if k == Text {
		return "text"
	}
	return "binary"
}

// Payload is one logical message on a transport: an audio frame (Binary)
// or a control message (Text). The relay never looks inside Data.
type Payload struct {
	Kind PayloadKind
	Data []byte
}

func BinaryPayload(frame Frame) Payload { return Payload{Kind: Binary, Data: frame} }
func TextPayload(text string) Payload   { return Payload{Kind: Text, Data: []byte(text)} }

// Frame is one chunk of raw PCM audio.
type Frame []byte

type Session interface {
	ID() string
	Channel() string
	RemoteAddr() string
	Send(p Payload) error
	Close() error
}

type Delivery struct {
	Recipients int
	Failed     int
}

type Broadcaster interface {
	Register(s Session) error
	Unregister(s Session) bool
	Broadcast(origin Session, p Payload) Delivery
	Stats() (channels, sessions int)
}

type MessageHandler interface {
	Handle(s Session, p Payload)
}

// Transport is the client side of one relay connection. Send is safe for
// concurrent use; Receive must only be called from one goroutine.
type Transport interface {
	Send(p Payload) error
	Receive() (Payload, error)
	Close() error
}

// Capture yields fixed-size frames from an input device. Close may be called
// while a Read is blocked and must unblock it.
type Capture interface {
	Read(chunkSamples int) (Frame, error)
	Close() error
}

type Playback interface {
	Write(f Frame) error
	Close() error
}

// Sink displays status lines. It must be safe to call from any goroutine.
type Sink interface {
	Display(text string)
}

type SinkFunc func(text string)

func (f SinkFunc) Display(text string) { f(text) }

type Suppressor interface {
	Apply(f Frame) Frame
}

type State int32

const (
	Disconnected State = iota
	Connecting
	Streaming
	ShuttingDown
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Streaming:
		return "streaming"
	case ShuttingDown:
		return "shutting down"
	default:
		return "disconnected"
	}
}

type Clock func() time.Time
