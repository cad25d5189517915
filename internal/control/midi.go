package control

import (
	"bufio"
	"io"

	"gitlab.com/gomidi/midi/v2"
)

const (
	ccSustain     = 64
	ccAllSoundOff = 120
	ccAllNotesOff = 123
)

// DecodeMIDI maps a channel message to an event. Note-on with velocity 0
// arrives as a note-off.
func DecodeMIDI(msg midi.Message) (Event, bool) {
	var ch, key, vel, cc, val, prog uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		return Event{Kind: NoteOn, Note: int(key)}, true
	case msg.GetNoteEnd(&ch, &key):
		return Event{Kind: NoteOff, Note: int(key)}, true
	case msg.GetControlChange(&ch, &cc, &val):
		switch cc {
		case ccSustain:
			return Event{Kind: Sustain, On: val >= 64}, true
		case ccAllSoundOff, ccAllNotesOff:
			return Event{Kind: Panic}, true
		}
	case msg.GetProgramChange(&ch, &prog):
		return Event{Kind: PresetSelect, Value: int(prog)}, true
	}
	return Event{}, false
}

// MIDIReader frames a raw MIDI byte stream (as read from a serial port or a
// raw device node) into channel messages, honouring running status.
type MIDIReader struct {
	r       *bufio.Reader
	running byte
}

func NewMIDIReader(r io.Reader) *MIDIReader {
	return &MIDIReader{r: bufio.NewReader(r)}
}

// Next returns the next channel message. System messages are skipped.
func (m *MIDIReader) Next() (midi.Message, error) {
	for {
		b, err := m.r.ReadByte()
		if err != nil {
			return nil, err
		}
		status := m.running
		switch {
		case b >= 0xF8:
			// realtime bytes may interleave with anything
			continue
		case b >= 0xF0:
			m.running = 0
			continue
		case b >= 0x80:
			m.running = b
			continue
		case status == 0:
			continue
		}
		msg := midi.Message{status, b}
		if dataLen(status) == 2 {
			b2, err := m.r.ReadByte()
			if err != nil {
				return nil, err
			}
			if b2 >= 0x80 {
				m.r.UnreadByte()
				continue
			}
			msg = append(msg, b2)
		}
		return msg, nil
	}
}

func dataLen(status byte) int {
	switch status & 0xF0 {
	case 0xC0, 0xD0:
		return 1
	default:
		return 2
	}
}

// PumpMIDI decodes messages from r into h until r fails.
func PumpMIDI(r io.Reader, h Handler) error {
	mr := NewMIDIReader(r)
	for {
		msg, err := mr.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if ev, ok := DecodeMIDI(msg); ok {
			h.HandleEvent(ev)
		}
	}
}
