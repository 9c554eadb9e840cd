package protocol

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"voicerelay/domain"
)

type ControlKind int

const (
	NotControl ControlKind = iota
	Probe
	ProbeAck
)

const (
	probePrefix    = "PING:"
	probeAckPrefix = "PONG:"
)

// Control is a parsed liveness message. Timestamp is Unix milliseconds as
// written by the client that originated the probe.
type Control struct {
	Kind      ControlKind
	Timestamp int64
}

func NewProbe(at time.Time) domain.Payload {
	return domain.TextPayload(fmt.Sprintf("%s%d", probePrefix, at.UnixMilli()))
}

func NewProbeAck(timestamp int64) domain.Payload {
	return domain.TextPayload(fmt.Sprintf("%s%d", probeAckPrefix, timestamp))
}

// ParseControl recognises PING/PONG text payloads. Binary payloads and any
// other text report NotControl.
func ParseControl(p domain.Payload) Control {
	if p.Kind != domain.Text {
		return Control{}
	}
	text := string(p.Data)

	var kind ControlKind
	var rest string
	switch {
	case strings.HasPrefix(text, probePrefix):
		kind, rest = Probe, text[len(probePrefix):]
	case strings.HasPrefix(text, probeAckPrefix):
		kind, rest = ProbeAck, text[len(probeAckPrefix):]
	default:
		return Control{}
	}

	ts, err := strconv.ParseInt(strings.TrimSpace(rest), 10, 64)
	if err != nil {
		return Control{}
	}
	return Control{Kind: kind, Timestamp: ts}
}

// Latency is the time elapsed since the probe timestamp carried by an ack.
func (c Control) Latency(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(c.Timestamp))
}
