// Package client implements the streaming side of a voice relay connection:
// one Session owns the transport and runs the outbound (capture → relay),
// inbound (relay → playback) and liveness units until one fails or the user
// disconnects.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"voicerelay/audio"
	"voicerelay/domain"
	"voicerelay/protocol"
)

const (
	DefaultChunkSamples  = 256
	DefaultProbeInterval = 5 * time.Second
)

var ErrNotDisconnected = errors.New("session is already active")

type DialFunc func(ctx context.Context, uri string) (domain.Transport, error)

// DeviceOpener opens fresh capture and playback devices for one connection.
type DeviceOpener func() (domain.Capture, domain.Playback, error)

type Config struct {
	URI           string
	Dial          DialFunc
	Devices       DeviceOpener
	Suppressor    domain.Suppressor
	Sink          domain.Sink
	ChunkSamples  int
	ProbeInterval time.Duration
	// EchoProbes answers PING messages from peers with a PONG carrying the
	// same timestamp, which is what makes latency probing work through a
	// relay that only forwards.
	EchoProbes bool
	Clock      domain.Clock
}

type Session struct {
	cfg   Config
	state atomic.Int32

	mu      sync.Mutex
	current *run
	lastErr error
}

type run struct {
	cancel    context.CancelFunc
	transport domain.Transport
	capture   domain.Capture
	playback  domain.Playback
	prober    *Prober
	stopOnce  sync.Once
	done      chan struct{}
}

func NewSession(cfg Config) *Session {
	if cfg.ChunkSamples <= 0 {
		cfg.ChunkSamples = DefaultChunkSamples
	}
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = DefaultProbeInterval
	}
	if cfg.Suppressor == nil {
		cfg.Suppressor = audio.Identity{}
	}
	if cfg.Sink == nil {
		cfg.Sink = domain.SinkFunc(func(string) {})
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Session{cfg: cfg}
}

func (s *Session) State() domain.State {
	return domain.State(s.state.Load())
}

func (s *Session) setState(st domain.State) {
	s.state.Store(int32(st))
}

// Connect dials the relay and starts streaming. It returns once the session
// is Streaming or the attempt has failed; a failed attempt leaves the session
// Disconnected and may be retried.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != domain.Disconnected {
		return ErrNotDisconnected
	}
	s.setState(domain.Connecting)
	s.lastErr = nil
	s.cfg.Sink.Display(fmt.Sprintf("Connecting to %s...", s.cfg.URI))

	capture, playback, err := s.cfg.Devices()
	if err != nil {
		var devErr *domain.DeviceError
		if !errors.As(err, &devErr) {
			err = &domain.DeviceError{Device: "audio", Err: err}
		}
		return s.failConnect(err)
	}

	transport, err := s.cfg.Dial(ctx, s.cfg.URI)
	if err != nil {
		capture.Close()
		playback.Close()
		var connErr *domain.ConnectionError
		if !errors.As(err, &connErr) {
			err = &domain.ConnectionError{URI: s.cfg.URI, Err: err}
		}
		return s.failConnect(err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r := &run{
		cancel:    cancel,
		transport: transport,
		capture:   capture,
		playback:  playback,
		prober:    NewProber(transport, s.cfg.Sink, s.cfg.ProbeInterval, s.cfg.Clock),
		done:      make(chan struct{}),
	}
	s.current = r
	s.setState(domain.Streaming)
	s.cfg.Sink.Display(fmt.Sprintf("Connected to %s", s.cfg.URI))
	slog.Info("streaming started", "uri", s.cfg.URI, "chunkSamples", s.cfg.ChunkSamples)

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return s.outbound(gctx, r) })
	g.Go(func() error { return s.inbound(gctx, r) })
	g.Go(func() error { return r.prober.Run(gctx) })

	go func() {
		<-gctx.Done()
		s.stop(r)
	}()
	go s.finish(r, g)

	return nil
}

func (s *Session) failConnect(err error) error {
	s.lastErr = err
	s.setState(domain.Disconnected)
	s.cfg.Sink.Display(describe(err))
	slog.Warn("connect failed", "uri", s.cfg.URI, "error", err)
	return err
}

// stop signals every unit, closes the transport so a blocked Receive returns
// and releases the capture device so a blocked Read returns.
func (s *Session) stop(r *run) {
	r.stopOnce.Do(func() {
		s.setState(domain.ShuttingDown)
		r.cancel()
		if err := r.transport.Close(); err != nil {
			slog.Debug("transport close", "error", err)
		}
		if err := r.capture.Close(); err != nil {
			slog.Debug("capture close", "error", err)
		}
	})
}

func (s *Session) finish(r *run, g *errgroup.Group) {
	err := g.Wait()
	s.stop(r)
	if perr := r.playback.Close(); perr != nil {
		slog.Debug("playback close", "error", perr)
	}

	s.mu.Lock()
	s.lastErr = err
	if s.current == r {
		s.current = nil
	}
	s.setState(domain.Disconnected)
	s.mu.Unlock()

	if err != nil {
		slog.Warn("streaming stopped", "uri", s.cfg.URI, "error", err)
	} else {
		slog.Info("streaming stopped", "uri", s.cfg.URI)
	}
	s.cfg.Sink.Display(describe(err))
	close(r.done)
}

// Disconnect stops streaming and returns after the transport is closed and
// both devices are released. It is safe to call from any goroutine and when
// not connected.
func (s *Session) Disconnect() {
	s.mu.Lock()
	r := s.current
	s.mu.Unlock()
	if r == nil {
		return
	}

	s.stop(r)
	<-r.done
}

// Done is closed when the current run has fully torn down.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return s.current.done
}

// Err reports why the last run ended; nil after a user disconnect.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) LastLatency() time.Duration {
	s.mu.Lock()
	r := s.current
	s.mu.Unlock()
	if r == nil {
		return 0
	}
	return r.prober.LastLatency()
}

func (s *Session) outbound(ctx context.Context, r *run) error {
	for ctx.Err() == nil {
		frame, err := r.capture.Read(s.cfg.ChunkSamples)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return &domain.DeviceError{Device: "capture", Err: err}
		}

		frame = s.cfg.Suppressor.Apply(frame)
		if err := r.transport.Send(domain.BinaryPayload(frame)); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return transportError("send", err)
		}
	}
	return nil
}

func (s *Session) inbound(ctx context.Context, r *run) error {
	for {
		p, err := r.transport.Receive()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return transportError("receive", err)
		}

		switch c := protocol.ParseControl(p); c.Kind {
		case protocol.ProbeAck:
			r.prober.HandleAck(c)
		case protocol.Probe:
			if !s.cfg.EchoProbes {
				continue
			}
			if err := r.transport.Send(protocol.NewProbeAck(c.Timestamp)); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return transportError("send", err)
			}
		default:
			if err := r.playback.Write(domain.Frame(p.Data)); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return &domain.DeviceError{Device: "playback", Err: err}
			}
		}
	}
}

func transportError(op string, err error) error {
	var te *domain.TransportError
	if errors.As(err, &te) {
		return err
	}
	return &domain.TransportError{Op: op, Err: err}
}

// describe renders the single status line shown when a run or a connect
// attempt ends.
func describe(err error) string {
	var (
		connErr      *domain.ConnectionError
		transportErr *domain.TransportError
		deviceErr    *domain.DeviceError
	)
	switch {
	case err == nil:
		return "Disconnected from relay."
	case errors.As(err, &connErr):
		return fmt.Sprintf("Connection failed: %v", connErr.Err)
	case errors.As(err, &transportErr) && transportErr.Op == "receive" && transportErr.Closed:
		return "Relay closed the connection."
	case errors.As(err, &transportErr) && transportErr.Op == "receive":
		return fmt.Sprintf("Audio receive failed: %v", transportErr.Err)
	case errors.As(err, &transportErr):
		return fmt.Sprintf("Audio send failed: %v", transportErr.Err)
	case errors.As(err, &deviceErr) && errors.Is(deviceErr.Err, io.EOF):
		return fmt.Sprintf("%s input ended.", capitalize(deviceErr.Device))
	case errors.As(err, &deviceErr):
		return fmt.Sprintf("%s device failed: %v", capitalize(deviceErr.Device), deviceErr.Err)
	default:
		return fmt.Sprintf("Session failed: %v", err)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
