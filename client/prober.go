package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"voicerelay/domain"
	"voicerelay/protocol"
)

type Sender interface {
	Send(p domain.Payload) error
}

// Prober sends a timestamped PING every interval and turns PONGs into latency
// reports. Latency comes from the timestamp inside the ack, so it keeps no
// record of outstanding probes.
type Prober struct {
	sender   Sender
	sink     domain.Sink
	interval time.Duration
	clock    domain.Clock
	last     atomic.Int64
}

func NewProber(sender Sender, sink domain.Sink, interval time.Duration, clock domain.Clock) *Prober {
	if clock == nil {
		clock = time.Now
	}
	return &Prober{sender: sender, sink: sink, interval: interval, clock: clock}
}

// Run probes until ctx is done. A failed send ends the run with a
// TransportError.
func (p *Prober) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.sender.Send(protocol.NewProbe(p.clock())); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return transportError("send", err)
			}
		}
	}
}

func (p *Prober) HandleAck(c protocol.Control) {
	latency := c.Latency(p.clock())
	if latency < 0 {
		slog.Debug("probe ack from the future", "timestamp", c.Timestamp, "latency", latency)
		return
	}
	p.last.Store(int64(latency))
	p.sink.Display(fmt.Sprintf("Latency: %d ms", latency.Milliseconds()))
}

func (p *Prober) LastLatency() time.Duration {
	return time.Duration(p.last.Load())
}
