package control

// Keyboard maps single key presses from a computer keyboard to events.
// Terminals report no key releases, so a held note is released when the
// next note key is pressed.
type Keyboard struct {
	Base    int // note for 'a'
	held    int
	sustain bool
}

const noNote = -1

var noteKeys = map[byte]int{
	'a': 0, 'w': 1, 's': 2, 'e': 3, 'd': 4, 'f': 5, 't': 6,
	'g': 7, 'y': 8, 'h': 9, 'u': 10, 'j': 11, 'k': 12, 'o': 13, 'l': 14,
}

func NewKeyboard(base int) *Keyboard {
	return &Keyboard{Base: base, held: noNote}
}

// Key returns the events for one key press.
func (k *Keyboard) Key(b byte) []Event {
	if off, ok := noteKeys[b]; ok {
		evs := k.release()
		k.held = k.Base + off
		return append(evs, Event{Kind: NoteOn, Note: k.held})
	}
	switch b {
	case ' ':
		k.sustain = !k.sustain
		return []Event{{Kind: Sustain, On: k.sustain}}
	case '\r', '\n':
		return k.release()
	case 'z':
		k.Base -= 12
	case 'x':
		k.Base += 12
	case '[':
		return []Event{{Kind: PresetStep, Value: -1}}
	case ']':
		return []Event{{Kind: PresetStep, Value: 1}}
	case '-':
		return []Event{{Kind: VolumeStep, Value: -3}}
	case '=', '+':
		return []Event{{Kind: VolumeStep, Value: 3}}
	case '.', 0x1b:
		k.held = noNote
		k.sustain = false
		return []Event{{Kind: Panic}}
	}
	return nil
}

func (k *Keyboard) release() []Event {
	if k.held == noNote {
		return nil
	}
	ev := Event{Kind: NoteOff, Note: k.held}
	k.held = noNote
	return []Event{ev}
}
