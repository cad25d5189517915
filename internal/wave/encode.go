package wave

import "encoding/binary"

// Markers are optional cue points and loop regions written by Encode.
type Markers struct {
	Cues  []int
	Loops []LoopRegion
}

// Encode writes 16-bit PCM samples as a RIFF/WAVE file. samples are
// interleaved when channels > 1.
func Encode(samples []int16, channels, sampleRate int, m Markers) []byte {
	dataSize := len(samples) * 2
	size := 4 + (8 + 16) + (8 + dataSize)
	cueSize, smplSize := 0, 0
	if len(m.Cues) > 0 {
		cueSize = 4 + 24*len(m.Cues)
		size += 8 + cueSize
	}
	if len(m.Loops) > 0 {
		smplSize = 36 + 24*len(m.Loops)
		size += 8 + smplSize
	}
	out := make([]byte, 0, 8+size)
	out = append(out, "RIFF"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(size))
	out = append(out, "WAVE"...)

	out = append(out, "fmt "...)
	out = binary.LittleEndian.AppendUint32(out, 16)
	out = binary.LittleEndian.AppendUint16(out, formatPCM)
	out = binary.LittleEndian.AppendUint16(out, uint16(channels))
	out = binary.LittleEndian.AppendUint32(out, uint32(sampleRate))
	out = binary.LittleEndian.AppendUint32(out, uint32(sampleRate*channels*2))
	out = binary.LittleEndian.AppendUint16(out, uint16(channels*2))
	out = binary.LittleEndian.AppendUint16(out, 16)

	if cueSize > 0 {
		out = append(out, "cue "...)
		out = binary.LittleEndian.AppendUint32(out, uint32(cueSize))
		out = binary.LittleEndian.AppendUint32(out, uint32(len(m.Cues)))
		for i, c := range m.Cues {
			out = binary.LittleEndian.AppendUint32(out, uint32(i+1)) // id
			out = binary.LittleEndian.AppendUint32(out, uint32(c))   // position
			out = append(out, "data"...)
			out = binary.LittleEndian.AppendUint32(out, 0) // chunk start
			out = binary.LittleEndian.AppendUint32(out, 0) // block start
			out = binary.LittleEndian.AppendUint32(out, uint32(c))
		}
	}

	out = append(out, "data"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(dataSize))
	for _, s := range samples {
		out = binary.LittleEndian.AppendUint16(out, uint16(s))
	}

	if smplSize > 0 {
		out = append(out, "smpl"...)
		out = binary.LittleEndian.AppendUint32(out, uint32(smplSize))
		out = append(out, make([]byte, 28)...)
		out = binary.LittleEndian.AppendUint32(out, uint32(len(m.Loops)))
		out = binary.LittleEndian.AppendUint32(out, 0)
		for i, l := range m.Loops {
			out = binary.LittleEndian.AppendUint32(out, uint32(i+1))
			out = binary.LittleEndian.AppendUint32(out, 0) // forward loop
			out = binary.LittleEndian.AppendUint32(out, uint32(l.Start))
			out = binary.LittleEndian.AppendUint32(out, uint32(l.End))
			out = binary.LittleEndian.AppendUint32(out, 0)
			out = binary.LittleEndian.AppendUint32(out, 0)
		}
	}
	return out
}
