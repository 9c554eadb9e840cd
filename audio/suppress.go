package audio

import "voicerelay/domain"

// Identity passes frames through unchanged.
type Identity struct{}

func (Identity) Apply(f domain.Frame) domain.Frame { return f }

// NoiseGate silences frames whose peak amplitude stays below Threshold.
// Frames are 16-bit little-endian PCM; a trailing odd byte is ignored.
type NoiseGate struct {
	Threshold int16
}

func (g NoiseGate) Apply(f domain.Frame) domain.Frame {
	n := len(f) / bytesPerSample
	var peak int32
	for i := 0; i < n; i++ {
		s := int32(sample(f, i))
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	if peak >= int32(g.Threshold) {
		return f
	}
	return make(domain.Frame, len(f))
}

// NewSuppressor maps a configuration name to a transform.
func NewSuppressor(name string, threshold int16) domain.Suppressor {
	if name == "gate" {
		return NoiseGate{Threshold: threshold}
	}
	return Identity{}
}
