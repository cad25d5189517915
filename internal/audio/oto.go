package audio

import (
	"time"

	"github.com/ebitengine/oto/v3"
)

var otoContext sharedContext[*oto.Context]

func openOtoContext(sampleRate, blockFrames int) (*oto.Context, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
	}
	if blockFrames > 0 {
		op.BufferSize = time.Duration(blockFrames) * time.Second / time.Duration(sampleRate)
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready
	return ctx, nil
}

// OtoPlayer plays directly through an oto context.
type OtoPlayer struct {
	player *oto.Player
	reader *StreamReader
}

func NewOtoPlayer(sampleRate, blockFrames int, source SampleSource) (*OtoPlayer, error) {
	ctx, err := otoContext.get(sampleRate, func() (*oto.Context, error) {
		return openOtoContext(sampleRate, blockFrames)
	})
	if err != nil {
		return nil, err
	}
	reader := NewStreamReader(source, blockFrames)
	return &OtoPlayer{player: ctx.NewPlayer(reader), reader: reader}, nil
}

func (p *OtoPlayer) Play()  { p.player.Play() }
func (p *OtoPlayer) Pause() { p.player.Pause() }

func (p *OtoPlayer) Close() error {
	if err := p.player.Close(); err != nil {
		return err
	}
	return p.reader.Close()
}
