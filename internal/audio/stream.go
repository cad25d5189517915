// Package audio streams rendered blocks to an output device.
package audio

import (
	"encoding/binary"
	"io"
	"math"
	"sync"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// SampleSource renders interleaved stereo float32 blocks.
type SampleSource interface {
	Process(dst []float32)
}

// Backend is an opened output device.
type Backend interface {
	Play()
	Pause()
	Close() error
}

// StreamReader adapts a SampleSource to the little-endian float32 byte
// stream output devices pull from. Reads are rounded down to whole blocks of
// blockFrames when blockFrames > 0.
type StreamReader struct {
	mu          sync.Mutex
	source      SampleSource
	blockFrames int
	buf         []float32
}

func NewStreamReader(source SampleSource, blockFrames int) *StreamReader {
	return &StreamReader{source: source, blockFrames: blockFrames}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(p) / 8
	if r.blockFrames > 0 && frames >= r.blockFrames {
		frames -= frames % r.blockFrames
	}
	if frames == 0 {
		return 0, nil
	}
	need := frames * 2
	if cap(r.buf) < need {
		r.buf = make([]float32, need)
	}
	r.buf = r.buf[:need]
	r.source.Process(r.buf)
	for i := 0; i < need; i++ {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(r.buf[i]))
	}
	return frames * 8, nil
}

func (r *StreamReader) Close() error { return nil }

var ebitenContext sharedContext[*ebitaudio.Context]

// EbitenPlayer plays through ebiten's audio context.
type EbitenPlayer struct {
	player *ebitaudio.Player
	reader io.ReadCloser
}

func NewEbitenPlayer(sampleRate, blockFrames int, source SampleSource) (*EbitenPlayer, error) {
	ctx, err := ebitenContext.get(sampleRate, func() (*ebitaudio.Context, error) {
		return ebitaudio.NewContext(sampleRate), nil
	})
	if err != nil {
		return nil, err
	}
	reader := NewStreamReader(source, blockFrames)
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, err
	}
	return &EbitenPlayer{player: pl, reader: reader}, nil
}

func (p *EbitenPlayer) Play()  { p.player.Play() }
func (p *EbitenPlayer) Pause() { p.player.Pause() }

func (p *EbitenPlayer) Close() error {
	p.player.Pause()
	if err := p.player.Close(); err != nil {
		return err
	}
	return p.reader.Close()
}
