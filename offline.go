package samplerbox

import (
	"math"

	"github.com/cbegin/samplerbox-go/internal/wave"
)

// RenderOffline pulls frames stereo frames through s in block-sized steps,
// exactly as an audio device would, and returns the interleaved output.
func RenderOffline(s *Sampler, frames int) []float32 {
	if frames <= 0 {
		return nil
	}
	out := make([]float32, frames*2)
	block := s.cfg.blockFrames * 2
	for off := 0; off < len(out); off += block {
		end := min(off+block, len(out))
		s.Process(out[off:end])
	}
	return out
}

// EncodeWAV16 converts float samples in [-1, 1] to a 16-bit PCM WAV file.
func EncodeWAV16(samples []float32, sampleRate int, channels int) []byte {
	pcm := make([]int16, len(samples))
	for i, v := range samples {
		pcm[i] = floatToInt16(v)
	}
	return wave.Encode(pcm, channels, sampleRate, wave.Markers{})
}

func floatToInt16(v float32) int16 {
	x := math.Round(float64(v) * 32767)
	if x > math.MaxInt16 {
		return math.MaxInt16
	}
	if x < math.MinInt16 {
		return math.MinInt16
	}
	return int16(x)
}
