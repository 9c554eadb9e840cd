package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"voicerelay/domain"
)

func TestParseControl(t *testing.T) {
	tests := []struct {
		name    string
		payload domain.Payload
		want    Control
	}{
		{name: "probe", payload: domain.TextPayload("PING:1700000000123"), want: Control{Kind: Probe, Timestamp: 1700000000123}},
		{name: "probe ack", payload: domain.TextPayload("PONG:42"), want: Control{Kind: ProbeAck, Timestamp: 42}},
		{name: "binary with probe bytes", payload: domain.BinaryPayload(domain.Frame("PING:42")), want: Control{}},
		{name: "bad timestamp", payload: domain.TextPayload("PING:soon"), want: Control{}},
		{name: "missing timestamp", payload: domain.TextPayload("PONG:"), want: Control{}},
		{name: "lowercase", payload: domain.TextPayload("ping:42"), want: Control{}},
		{name: "plain text", payload: domain.TextPayload("hello"), want: Control{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseControl(tt.payload))
		})
	}
}

func TestProbeRoundTrip(t *testing.T) {
	sentAt := time.UnixMilli(1_700_000_000_000)
	probe := ParseControl(NewProbe(sentAt))
	assert.Equal(t, Probe, probe.Kind)

	ack := ParseControl(NewProbeAck(probe.Timestamp))
	assert.Equal(t, ProbeAck, ack.Kind)
	assert.Equal(t, 37*time.Millisecond, ack.Latency(sentAt.Add(37*time.Millisecond)))
}
