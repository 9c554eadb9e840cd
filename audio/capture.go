package audio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"voicerelay/domain"
)

var ErrDeviceClosed = errors.New("device closed")

// pacer releases one chunk per chunk duration so file and generated input
// behave like a live microphone.
type pacer struct {
	format Format
	next   time.Time
	done   chan struct{}
}

func newPacer(f Format) pacer {
	return pacer{format: f, done: make(chan struct{})}
}

func (p *pacer) wait(chunkSamples int) error {
	now := time.Now()
	if p.next.IsZero() || p.next.Before(now.Add(-time.Second)) {
		p.next = now
	}
	p.next = p.next.Add(p.format.Duration(chunkSamples))

	timer := time.NewTimer(time.Until(p.next))
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-p.done:
		return ErrDeviceClosed
	}
}

// ReaderCapture reads raw PCM from r. When r is an io.Closer it is closed with
// the device, which also unblocks a pending read on pipes and sockets.
type ReaderCapture struct {
	r         io.Reader
	paced     bool
	pacer     pacer
	closeOnce sync.Once
}

func NewReaderCapture(r io.Reader, f Format, paced bool) *ReaderCapture {
	return &ReaderCapture{r: r, paced: paced, pacer: newPacer(f)}
}

func (c *ReaderCapture) Read(chunkSamples int) (domain.Frame, error) {
	if c.paced {
		if err := c.pacer.wait(chunkSamples); err != nil {
			return nil, err
		}
	}
	select {
	case <-c.pacer.done:
		return nil, ErrDeviceClosed
	default:
	}

	buf := make([]byte, c.pacer.format.FrameBytes(chunkSamples))
	n, err := io.ReadFull(c.r, buf)
	switch {
	case err == nil:
		return buf, nil
	case errors.Is(err, io.ErrUnexpectedEOF) && n > 0:
		// Short tail: pad with silence.
		return buf, nil
	case errors.Is(err, io.EOF):
		return nil, io.EOF
	default:
		return nil, fmt.Errorf("read capture: %w", err)
	}
}

func (c *ReaderCapture) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.pacer.done)
		if closer, ok := c.r.(io.Closer); ok {
			err = closer.Close()
		}
	})
	return err
}

// ToneCapture generates a sine wave, one chunk per chunk duration.
type ToneCapture struct {
	frequency float64
	amplitude float64
	phase     float64
	pacer     pacer
	closeOnce sync.Once
}

func NewToneCapture(f Format, frequency float64) *ToneCapture {
	return &ToneCapture{
		frequency: frequency,
		amplitude: math.MaxInt16 / 4,
		pacer:     newPacer(f),
	}
}

func (c *ToneCapture) Read(chunkSamples int) (domain.Frame, error) {
	if err := c.pacer.wait(chunkSamples); err != nil {
		return nil, err
	}

	channels := c.pacer.format.Channels
	frame := make(domain.Frame, c.pacer.format.FrameBytes(chunkSamples))
	step := 2 * math.Pi * c.frequency / float64(c.pacer.format.SampleRate)
	for i := 0; i < chunkSamples; i++ {
		s := int16(c.amplitude * math.Sin(c.phase))
		for ch := 0; ch < channels; ch++ {
			putSample(frame, i*channels+ch, s)
		}
		c.phase = math.Mod(c.phase+step, 2*math.Pi)
	}
	return frame, nil
}

func (c *ToneCapture) Close() error {
	c.closeOnce.Do(func() { close(c.pacer.done) })
	return nil
}

func sample(f domain.Frame, i int) int16 {
	return int16(uint16(f[2*i]) | uint16(f[2*i+1])<<8)
}

func putSample(f domain.Frame, i int, s int16) {
	f[2*i] = byte(s)
	f[2*i+1] = byte(uint16(s) >> 8)
}
