// Package kernel defines the numeric mixing contract used by the render path
// and ships a pure-Go implementation of it.
package kernel

import "math"

const (
	// FadeoutLength is the number of frames a released voice takes to reach silence.
	FadeoutLength = 30000
	fadeoutPower  = 6
)

// Voice is the per-voice view handed to a Kernel for one render call.
// Pos and FadePos are advanced in place; Ended is set when the voice ran out
// of data or finished its fadeout during the call.
type Voice struct {
	Data    []int16 // interleaved stereo
	Frames  int
	Loop    int // loop start frame, -1 = none
	Speed   float64
	Pos     float64
	FadePos int
	Fading  bool
	Ended   bool
}

// Kernel sums voices into an interleaved stereo block.
type Kernel interface {
	// Mix adds every voice into dst (interleaved stereo, len = 2*frames).
	// fadeout is the gain curve applied to fading voices, indexed by FadePos.
	Mix(dst []float32, voices []Voice, fadeout []float32)
	// Convert24To16 truncates packed little-endian 24-bit samples to 16 bits.
	Convert24To16(src []byte) []int16
}

// FadeoutEnvelope returns a monotonic gain curve of the given length falling
// from 1 to 0 as (1-t)^6, so the start of the release stays near full level.
func FadeoutEnvelope(length int) []float32 {
	if length <= 0 {
		return nil
	}
	env := make([]float32, length)
	if length == 1 {
		env[0] = 1
		return env
	}
	for i := range env {
		t := float64(i) / float64(length-1)
		env[i] = float32(math.Pow(1-t, fadeoutPower))
	}
	return env
}

// SpeedRatio returns the playback rate for a pitch offset in semitones.
func SpeedRatio(semitones int) float64 {
	return math.Pow(2, float64(semitones)/12)
}

// Default is the pure-Go kernel: linear interpolation, no allocation in Mix.
type Default struct{}

func (Default) Mix(dst []float32, voices []Voice, fadeout []float32) {
	frames := len(dst) / 2
	for i := range voices {
		v := &voices[i]
		v.Ended = false
		limit := v.Frames
		if n := len(v.Data) / 2; n < limit {
			limit = n
		}
		// idx+1 must stay addressable for interpolation
		limit--
		if limit < 1 {
			v.Ended = true
			continue
		}
		speed := v.Speed
		if speed <= 0 {
			speed = 1
		}
		looped := v.Loop >= 0 && v.Loop < limit
		for f := 0; f < frames; f++ {
			if v.Pos >= float64(limit) {
				if !looped {
					v.Ended = true
					break
				}
				span := float64(limit - v.Loop)
				v.Pos = float64(v.Loop) + math.Mod(v.Pos-float64(v.Loop), span)
			}
			gain := float32(1)
			if v.Fading {
				if v.FadePos >= len(fadeout) {
					v.Ended = true
					break
				}
				gain = fadeout[v.FadePos]
				v.FadePos++
			}
			idx := int(v.Pos)
			frac := float32(v.Pos - float64(idx))
			l0, r0 := float32(v.Data[2*idx]), float32(v.Data[2*idx+1])
			l1, r1 := float32(v.Data[2*idx+2]), float32(v.Data[2*idx+3])
			dst[2*f] += gain * (l0 + (l1-l0)*frac) / 32768
			dst[2*f+1] += gain * (r0 + (r1-r0)*frac) / 32768
			v.Pos += speed
		}
	}
}

func (Default) Convert24To16(src []byte) []int16 {
	out := make([]int16, len(src)/3)
	for i := range out {
		out[i] = int16(uint16(src[3*i+1]) | uint16(src[3*i+2])<<8)
	}
	return out
}
