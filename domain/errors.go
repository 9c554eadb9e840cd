package domain

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyRegistered = errors.New("session already registered")
	ErrSessionClosed     = errors.New("session closed")
	ErrBackpressure      = errors.New("send queue full")
)

// ConnectionError reports a failure to establish the relay connection:
// DNS, TCP, TLS or the WebSocket handshake.
type ConnectionError struct {
	URI string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.URI, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TransportError reports a send or receive failure on an established
// connection. Closed is set when the peer closed the connection in an
// orderly way.
type TransportError struct {
	Op     string
	Closed bool
	Err    error
}

func (e *TransportError) Error() string {
	if e.Closed {
		return fmt.Sprintf("%s: connection closed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

type DeviceError struct {
	Device string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s device: %v", e.Device, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }
