// Package control turns raw control input into sampler events.
package control

import "fmt"

// Kind identifies a control event.
type Kind int

const (
	NoteOn Kind = iota
	NoteOff
	Sustain
	Panic
	PresetStep   // Value is +1 or -1
	PresetSelect // Value is the preset index
	VolumeStep   // Value is a dB delta
)

var kindNames = [...]string{"note-on", "note-off", "sustain", "panic", "preset-step", "preset-select", "volume-step"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Event is one control input.
type Event struct {
	Kind  Kind
	Note  int
	On    bool // Sustain
	Value int
}

// Handler receives decoded events.
type Handler interface {
	HandleEvent(Event)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(Event)

func (f HandlerFunc) HandleEvent(ev Event) { f(ev) }
