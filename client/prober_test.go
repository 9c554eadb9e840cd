package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicerelay/domain"
	"voicerelay/protocol"
)

func TestProber_SendsTimestampedProbes(t *testing.T) {
	tr := newFakeTransport()
	now := time.UnixMilli(1_700_000_000_500)
	p := NewProber(tr, &recordingSink{}, 5*time.Millisecond, func() time.Time { return now })

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return len(tr.sentOf(domain.Text)) >= 2 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-errc)

	for _, sent := range tr.sentOf(domain.Text) {
		assert.Equal(t, protocol.Control{Kind: protocol.Probe, Timestamp: now.UnixMilli()}, protocol.ParseControl(sent))
	}
}

func TestProber_SendFailure(t *testing.T) {
	tr := newFakeTransport()
	tr.setSendErr(errors.New("connection reset"))
	p := NewProber(tr, &recordingSink{}, time.Millisecond, nil)

	err := p.Run(context.Background())

	var te *domain.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "send", te.Op)
}

func TestProber_HandleAck(t *testing.T) {
	base := time.UnixMilli(1_700_000_000_000)
	tests := []struct {
		name        string
		ackStamp    int64
		wantLine    string
		wantLatency time.Duration
	}{
		{name: "own probe", ackStamp: base.UnixMilli(), wantLine: "Latency: 25 ms", wantLatency: 25 * time.Millisecond},
		{name: "older unmatched probe", ackStamp: base.Add(-5 * time.Second).UnixMilli(), wantLine: "Latency: 5025 ms", wantLatency: 5025 * time.Millisecond},
		{name: "timestamp ahead of clock", ackStamp: base.Add(time.Second).UnixMilli()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &recordingSink{}
			p := NewProber(newFakeTransport(), sink, time.Hour, func() time.Time {
				return base.Add(25 * time.Millisecond)
			})

			p.HandleAck(protocol.Control{Kind: protocol.ProbeAck, Timestamp: tt.ackStamp})

			if tt.wantLine == "" {
				assert.Empty(t, sink.all())
				assert.Zero(t, p.LastLatency())
				return
			}
			assert.Equal(t, []string{tt.wantLine}, sink.all())
			assert.Equal(t, tt.wantLatency, p.LastLatency())
		})
	}
}
