package audio

import (
	"fmt"
	"time"
)

const bytesPerSample = 2 // 16-bit PCM

// Format describes interleaved signed 16-bit little-endian PCM.
type Format struct {
	SampleRate int
	Channels   int
}

func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", f.SampleRate)
	}
	if f.Channels < 1 || f.Channels > 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", f.Channels)
	}
	return nil
}

// FrameBytes is the size of a frame holding chunkSamples samples per channel.
func (f Format) FrameBytes(chunkSamples int) int {
	return chunkSamples * f.Channels * bytesPerSample
}

// Duration is the playing time of chunkSamples samples per channel.
func (f Format) Duration(chunkSamples int) time.Duration {
	return time.Duration(chunkSamples) * time.Second / time.Duration(f.SampleRate)
}
