// Package wave reads RIFF/WAVE sample files into immutable in-memory
// waveforms, including cue markers and sampler loop points.
package wave

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Mode selects how a waveform reacts to note release.
type Mode int

const (
	// OneShot waveforms always play to the end; release is ignored.
	OneShot Mode = iota
	// Sustain waveforms fade out on release and may loop while held.
	Sustain
)

func (m Mode) String() string {
	if m == Sustain {
		return "sustain"
	}
	return "one-shot"
}

// ErrFormat matches every FormatError via errors.Is.
var ErrFormat = errors.New("wave: malformed file")

// FormatError reports a file that cannot be decoded as a waveform.
type FormatError struct {
	Path   string
	Reason string
}

func (e *FormatError) Error() string {
	if e.Path == "" {
		return "wave: " + e.Reason
	}
	return fmt.Sprintf("wave: %s: %s", filepath.Base(e.Path), e.Reason)
}

func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// Converter downconverts packed 24-bit PCM to 16-bit.
type Converter interface {
	Convert24To16(src []byte) []int16
}

// Waveform is a decoded sample. It is never mutated after Load returns and
// may be shared by any number of voices.
type Waveform struct {
	Name       string
	Note       int
	Velocity   int
	Mode       Mode
	SampleRate int
	Data       []int16 // interleaved stereo
	Frames     int
	Loop       int // loop start frame, -1 = none
	Cues       []int
}

// LoopRegion is a start/end frame pair from a smpl chunk.
type LoopRegion struct {
	Start int
	End   int
}

type format struct {
	audioFormat   uint16
	channels      int
	sampleRate    int
	bitsPerSample int
}

func (f format) frameSize() int { return f.channels * f.bitsPerSample / 8 }

const (
	formatPCM        = 1
	formatExtensible = 0xFFFE
	loopGuardFrames  = 2
)

// Load opens path and decodes it.
func Load(path string, note, velocity int, mode Mode, conv Converter) (*Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	w, err := Decode(f, conv)
	if err != nil {
		var fe *FormatError
		if errors.As(err, &fe) {
			fe.Path = path
		}
		return nil, err
	}
	w.Name = filepath.Base(path)
	w.Note = note
	w.Velocity = velocity
	w.Mode = mode
	return w, nil
}

// Decode reads a RIFF/WAVE stream. Note, velocity and mode are left zero.
func Decode(r io.Reader, conv Converter) (*Waveform, error) {
	var header [12]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, &FormatError{Reason: "short header"}
	}
	if string(header[0:4]) != "RIFF" {
		return nil, &FormatError{Reason: "file does not start with RIFF id"}
	}
	if string(header[8:12]) != "WAVE" {
		return nil, &FormatError{Reason: "not a WAVE file"}
	}

	var (
		fmtChunk *format
		data     []byte
		haveData bool
		cues     []int
		loops    []LoopRegion
	)
chunks:
	for {
		var ch [8]byte
		if _, err := io.ReadFull(r, ch[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return nil, err
		}
		id := string(ch[0:4])
		size := int64(binary.LittleEndian.Uint32(ch[4:8]))

		switch id {
		case "fmt ":
			body, err := readChunk(r, size)
			if err != nil {
				return nil, err
			}
			f, err := parseFormat(body)
			if err != nil {
				return nil, err
			}
			fmtChunk = &f
		case "data":
			if fmtChunk == nil {
				return nil, &FormatError{Reason: "data chunk before fmt chunk"}
			}
			body, complete, err := readBody(r, size)
			if err != nil {
				return nil, err
			}
			data = body
			haveData = true
			if !complete {
				// keep the frames that are present
				break chunks
			}
		case "cue ":
			body, err := readChunk(r, size)
			if err != nil {
				return nil, err
			}
			if cues, err = parseCues(body); err != nil {
				return nil, err
			}
		case "smpl":
			body, err := readChunk(r, size)
			if err != nil {
				return nil, err
			}
			if loops, err = parseLoops(body); err != nil {
				return nil, err
			}
		default:
			if _, err := io.CopyN(io.Discard, r, size); err != nil {
				// a truncated trailing chunk is tolerated
				break chunks
			}
		}
		if size%2 == 1 {
			var pad [1]byte
			if _, err := io.ReadFull(r, pad[:]); err != nil {
				break
			}
		}
	}
	if fmtChunk == nil || !haveData {
		return nil, &FormatError{Reason: "fmt chunk and/or data chunk missing"}
	}

	fs := fmtChunk.frameSize()
	total := len(data) / fs
	frames := total
	loop := -1
	if len(loops) > 0 {
		loop = loops[0].Start
		frames = loops[0].End + loopGuardFrames
		if frames > total {
			frames = total
		}
		if frames < 0 {
			frames = 0
		}
	}
	samples, err := toStereo16(data[:frames*fs], *fmtChunk, conv)
	if err != nil {
		return nil, err
	}
	return &Waveform{
		SampleRate: fmtChunk.sampleRate,
		Data:       samples,
		Frames:     frames,
		Loop:       loop,
		Cues:       cues,
	}, nil
}

// readBody reads up to size bytes. Memory grows with the bytes actually
// present, never with the size claimed by the header.
func readBody(r io.Reader, size int64) (body []byte, complete bool, err error) {
	body, err = io.ReadAll(io.LimitReader(r, size))
	if err != nil {
		return nil, false, err
	}
	return body, int64(len(body)) == size, nil
}

// readChunk is readBody for chunks that are useless when cut short.
func readChunk(r io.Reader, size int64) ([]byte, error) {
	body, complete, err := readBody(r, size)
	if err != nil {
		return nil, err
	}
	if !complete {
		return nil, &FormatError{Reason: "truncated chunk"}
	}
	return body, nil
}

func parseFormat(b []byte) (format, error) {
	if len(b) < 16 {
		return format{}, &FormatError{Reason: "fmt chunk too short"}
	}
	f := format{
		audioFormat:   binary.LittleEndian.Uint16(b[0:2]),
		channels:      int(binary.LittleEndian.Uint16(b[2:4])),
		sampleRate:    int(binary.LittleEndian.Uint32(b[4:8])),
		bitsPerSample: int(binary.LittleEndian.Uint16(b[14:16])),
	}
	if f.audioFormat != formatPCM && f.audioFormat != formatExtensible {
		return format{}, &FormatError{Reason: fmt.Sprintf("unsupported audio format %d", f.audioFormat)}
	}
	if f.channels != 1 && f.channels != 2 {
		return format{}, &FormatError{Reason: fmt.Sprintf("unsupported channel count %d", f.channels)}
	}
	if f.bitsPerSample != 16 && f.bitsPerSample != 24 {
		return format{}, &FormatError{Reason: fmt.Sprintf("unsupported sample width %d bits", f.bitsPerSample)}
	}
	return f, nil
}

// parseCues returns the sample-offset field of every cue record.
func parseCues(b []byte) ([]int, error) {
	if len(b) < 4 {
		return nil, &FormatError{Reason: "cue chunk too short"}
	}
	n := int(binary.LittleEndian.Uint32(b[0:4]))
	if n < 0 || 4+n*24 > len(b) {
		return nil, &FormatError{Reason: "cue chunk truncated"}
	}
	cues := make([]int, n)
	for i := range cues {
		rec := b[4+i*24:]
		cues[i] = int(int32(binary.LittleEndian.Uint32(rec[20:24])))
	}
	return cues, nil
}

// parseLoops reads the loop records that follow the 36-byte smpl header.
func parseLoops(b []byte) ([]LoopRegion, error) {
	if len(b) < 36 {
		return nil, &FormatError{Reason: "smpl chunk too short"}
	}
	n := int(binary.LittleEndian.Uint32(b[28:32]))
	if n < 0 || 36+n*24 > len(b) {
		return nil, &FormatError{Reason: "smpl chunk truncated"}
	}
	loops := make([]LoopRegion, n)
	for i := range loops {
		rec := b[36+i*24:]
		loops[i] = LoopRegion{
			Start: int(int32(binary.LittleEndian.Uint32(rec[8:12]))),
			End:   int(int32(binary.LittleEndian.Uint32(rec[12:16]))),
		}
	}
	return loops, nil
}

func toStereo16(raw []byte, f format, conv Converter) ([]int16, error) {
	var mono []int16
	switch f.bitsPerSample {
	case 16:
		mono = make([]int16, len(raw)/2)
		for i := range mono {
			mono[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
		}
	case 24:
		if conv == nil {
			return nil, &FormatError{Reason: "24-bit data without converter"}
		}
		mono = conv.Convert24To16(raw)
	}
	if f.channels == 2 {
		return mono, nil
	}
	out := make([]int16, len(mono)*2)
	for i, s := range mono {
		out[2*i] = s
		out[2*i+1] = s
	}
	return out, nil
}
