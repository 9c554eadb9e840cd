package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"voicerelay/domain"
)

// WriterPlayback writes received frames verbatim to w.
type WriterPlayback struct {
	w      io.Writer
	mu     sync.Mutex
	closed bool
}

func NewWriterPlayback(w io.Writer) *WriterPlayback {
	return &WriterPlayback{w: w}
}

func (p *WriterPlayback) Write(f domain.Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrDeviceClosed
	}
	if _, err := p.w.Write(f); err != nil {
		return fmt.Errorf("write playback: %w", err)
	}
	return nil
}

func (p *WriterPlayback) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if closer, ok := p.w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// wavHeader is the canonical 44-byte PCM WAV header.
type wavHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // File size - 8 bytes
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32
}

const wavHeaderSize = 44

func newWAVHeader(f Format, dataSize uint32) wavHeader {
	blockAlign := uint16(f.Channels * bytesPerSample)
	return wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   uint16(f.Channels),
		SampleRate:    uint32(f.SampleRate),
		ByteRate:      uint32(f.SampleRate) * uint32(blockAlign),
		BlockAlign:    blockAlign,
		BitsPerSample: 8 * bytesPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}
}

// WAVRecorder records received frames to a WAV file. The header sizes are
// patched on Close.
type WAVRecorder struct {
	w       io.WriteSeeker
	format  Format
	written uint32
	mu      sync.Mutex
	closed  bool
}

func NewWAVRecorder(w io.WriteSeeker, f Format) (*WAVRecorder, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if err := binary.Write(w, binary.LittleEndian, newWAVHeader(f, 0)); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	return &WAVRecorder{w: w, format: f}, nil
}

func (r *WAVRecorder) Write(f domain.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrDeviceClosed
	}
	n, err := r.w.Write(f)
	r.written += uint32(n)
	if err != nil {
		return fmt.Errorf("write WAV data: %w", err)
	}
	return nil
}

func (r *WAVRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	var err error
	if _, err = r.w.Seek(0, io.SeekStart); err == nil {
		err = binary.Write(r.w, binary.LittleEndian, newWAVHeader(r.format, r.written))
	}
	if closer, ok := r.w.(io.Closer); ok {
		if cerr := closer.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return fmt.Errorf("finalize WAV: %w", err)
	}
	return nil
}

// Tee fans one frame out to several playback devices. The first error wins
// but every device is still written.
type Tee []domain.Playback

func (t Tee) Write(f domain.Frame) error {
	var first error
	for _, p := range t {
		if err := p.Write(f); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (t Tee) Close() error {
	var first error
	for _, p := range t {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
