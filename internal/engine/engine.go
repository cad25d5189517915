package engine

import (
	"log/slog"
	"sync/atomic"

	"github.com/cbegin/samplerbox-go/internal/kernel"
	"github.com/cbegin/samplerbox-go/internal/voice"
)

// Engine renders the voices of a voice.Manager through a kernel.Kernel.
type Engine struct {
	state   *State
	voices  *voice.Manager
	kernel  kernel.Kernel
	fadeout []float32
	logger  *slog.Logger

	scratch []kernel.Voice
	views   []*voice.Voice
	faults  atomic.Uint64
}

func New(state *State, voices *voice.Manager, k kernel.Kernel, logger *slog.Logger) *Engine {
	if k == nil {
		k = kernel.Default{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := voices.Polyphony()
	return &Engine{
		state:   state,
		voices:  voices,
		kernel:  k,
		fadeout: kernel.FadeoutEnvelope(kernel.FadeoutLength),
		logger:  logger,
		scratch: make([]kernel.Voice, 0, p),
		views:   make([]*voice.Voice, 0, p),
	}
}

// Process fills dst (interleaved stereo) with the next block. A fault inside
// rendering yields a silent block instead of propagating.
func (e *Engine) Process(dst []float32) {
	defer func() {
		if r := recover(); r != nil {
			clear(dst)
			e.faults.Add(1)
			e.logger.Error("render fault recovered", "panic", r)
		}
	}()
	clear(dst)

	vs := e.voices.Snapshot()
	retire := false
	if p := e.voices.Polyphony(); len(vs) > p {
		// oldest first: drop everything but the newest p
		for _, v := range vs[:len(vs)-p] {
			v.Stop()
		}
		vs = vs[len(vs)-p:]
		retire = true
	}

	scratch, views := e.scratch[:0], e.views[:0]
	for _, v := range vs {
		if v.Done() {
			retire = true
			continue
		}
		scratch = append(scratch, kernel.Voice{
			Data:    v.Wave.Data,
			Frames:  v.Wave.Frames,
			Loop:    v.Wave.Loop,
			Speed:   v.Speed(),
			Pos:     v.Pos,
			FadePos: v.FadePos,
			Fading:  v.Fading(),
		})
		views = append(views, v)
	}
	e.kernel.Mix(dst, scratch, e.fadeout)
	for i := range scratch {
		kv, v := &scratch[i], views[i]
		v.Pos, v.FadePos = kv.Pos, kv.FadePos
		if kv.Ended {
			v.Stop()
			retire = true
		}
		views[i] = nil
	}
	e.scratch, e.views = scratch[:0], views[:0]
	if retire {
		e.voices.Retire()
	}

	gain := float32(e.state.Volume())
	for i, s := range dst {
		s *= gain
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		dst[i] = s
	}
}

// Faults returns how many render blocks were replaced by silence.
func (e *Engine) Faults() uint64 { return e.faults.Load() }
