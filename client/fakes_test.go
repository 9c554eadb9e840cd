package client

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"voicerelay/domain"
)

var errFakeClosed = errors.New("use of closed connection")

type fakeTransport struct {
	in        chan domain.Payload
	closed    chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	sent    []domain.Payload
	sendErr error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:     make(chan domain.Payload, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeTransport) Send(p domain.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.closed:
		return errFakeClosed
	default:
	}
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, p)
	return nil
}

func (f *fakeTransport) Receive() (domain.Payload, error) {
	select {
	case p, ok := <-f.in:
		if !ok {
			return domain.Payload{}, &domain.TransportError{Op: "receive", Closed: true, Err: io.EOF}
		}
		return p, nil
	case <-f.closed:
		return domain.Payload{}, errFakeClosed
	}
}

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeTransport) setSendErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendErr = err
}

func (f *fakeTransport) sentOf(kind domain.PayloadKind) []domain.Payload {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Payload
	for _, p := range f.sent {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}

// fakeCapture yields a frame every tick until closed; with tick == 0 it
// blocks in Read until closed.
type fakeCapture struct {
	tick      time.Duration
	closed    chan struct{}
	closeOnce sync.Once
	reads     atomic.Int32
	chunks    atomic.Int32
}

func newFakeCapture(tick time.Duration) *fakeCapture {
	return &fakeCapture{tick: tick, closed: make(chan struct{})}
}

func (c *fakeCapture) Read(chunkSamples int) (domain.Frame, error) {
	c.reads.Add(1)
	c.chunks.Store(int32(chunkSamples))
	if c.tick == 0 {
		<-c.closed
		return nil, errFakeClosed
	}
	select {
	case <-time.After(c.tick):
		return domain.Frame{0x10, 0x20}, nil
	case <-c.closed:
		return nil, errFakeClosed
	}
}

func (c *fakeCapture) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeCapture) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

type fakePlayback struct {
	mu               sync.Mutex
	frames           []domain.Frame
	closed           bool
	writesAfterClose int
	writeErr         error
}

func (p *fakePlayback) Write(f domain.Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.writesAfterClose++
		return errFakeClosed
	}
	if p.writeErr != nil {
		return p.writeErr
	}
	p.frames = append(p.frames, f)
	return nil
}

func (p *fakePlayback) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePlayback) snapshot() (frames []domain.Frame, closed bool, late int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Frame(nil), p.frames...), p.closed, p.writesAfterClose
}

type recordingSink struct {
	mu    sync.Mutex
	lines []string
}

func (s *recordingSink) Display(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, text)
}

func (s *recordingSink) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

func (s *recordingSink) count(text string) int {
	n := 0
	for _, l := range s.all() {
		if l == text {
			n++
		}
	}
	return n
}
