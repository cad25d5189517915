// Package voice tracks sounding voices: note-on/off, sustain pedal, panic
// and the polyphony ceiling.
package voice

import (
	"sync/atomic"

	"github.com/cbegin/samplerbox-go/internal/kernel"
	"github.com/cbegin/samplerbox-go/internal/wave"
)

// Voice is one sounding instance of a waveform.
//
// Pos and FadePos belong to the render goroutine. The fading and done flags
// are the only state shared with input handling.
type Voice struct {
	Wave *wave.Waveform
	Key  int // input note that started the voice
	Note int // sounding note, Key plus the transpose at note-on
	Seq  uint64

	Pos     float64
	FadePos int

	fading atomic.Bool
	done   atomic.Bool
}

// Fadeout starts the release ramp. One-shot waveforms ignore it.
func (v *Voice) Fadeout() {
	if v.Wave.Mode == wave.OneShot {
		return
	}
	v.fading.Store(true)
}

func (v *Voice) Fading() bool { return v.fading.Load() }

// Done reports whether the voice has been retired or marked for retirement.
func (v *Voice) Done() bool { return v.done.Load() }

// Stop marks the voice for removal on the next Retire.
func (v *Voice) Stop() { v.done.Store(true) }

// Speed is the resampling ratio from the recorded note to the played one.
func (v *Voice) Speed() float64 {
	return kernel.SpeedRatio(v.Note - v.Wave.Note)
}
