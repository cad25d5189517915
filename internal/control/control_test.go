package control

import (
	"bytes"
	"testing"

	"gitlab.com/gomidi/midi/v2"
)

func TestDecodeMIDI(t *testing.T) {
	for _, tc := range []struct {
		name string
		msg  midi.Message
		want Event
		ok   bool
	}{
		{"note on", midi.NoteOn(0, 60, 100), Event{Kind: NoteOn, Note: 60}, true},
		{"note on zero velocity", midi.NoteOn(0, 60, 0), Event{Kind: NoteOff, Note: 60}, true},
		{"note off", midi.NoteOff(3, 61), Event{Kind: NoteOff, Note: 61}, true},
		{"sustain down", midi.ControlChange(0, 64, 127), Event{Kind: Sustain, On: true}, true},
		{"sustain up", midi.ControlChange(0, 64, 0), Event{Kind: Sustain}, true},
		{"all notes off", midi.ControlChange(0, 123, 0), Event{Kind: Panic}, true},
		{"program change", midi.ProgramChange(0, 7), Event{Kind: PresetSelect, Value: 7}, true},
		{"mod wheel", midi.ControlChange(0, 1, 10), Event{}, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := DecodeMIDI(tc.msg)
			if ok != tc.ok || got != tc.want {
				t.Fatalf("DecodeMIDI = %+v, %v; want %+v, %v", got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestPumpMIDIRunningStatus(t *testing.T) {
	stream := []byte{
		0x90, 60, 100, // note on
		62, 90, // running status note on
		0xF8,  // clock, ignored
		62, 0, // running status note on vel 0 = off
		0xC0, 5, // program change
		0xB0, 64, 127, // sustain
	}
	var got []Event
	err := PumpMIDI(bytes.NewReader(stream), HandlerFunc(func(ev Event) { got = append(got, ev) }))
	if err != nil {
		t.Fatalf("pump: %v", err)
	}
	want := []Event{
		{Kind: NoteOn, Note: 60},
		{Kind: NoteOn, Note: 62},
		{Kind: NoteOff, Note: 62},
		{Kind: PresetSelect, Value: 5},
		{Kind: Sustain, On: true},
	}
	if len(got) != len(want) {
		t.Fatalf("events = %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestKeyboardReleasesPreviousNote(t *testing.T) {
	k := NewKeyboard(60)
	if evs := k.Key('a'); len(evs) != 1 || evs[0] != (Event{Kind: NoteOn, Note: 60}) {
		t.Fatalf("a = %+v", evs)
	}
	evs := k.Key('d')
	if len(evs) != 2 || evs[0] != (Event{Kind: NoteOff, Note: 60}) || evs[1] != (Event{Kind: NoteOn, Note: 64}) {
		t.Fatalf("d = %+v", evs)
	}
	if evs := k.Key(' '); len(evs) != 1 || !evs[0].On {
		t.Fatalf("space = %+v", evs)
	}
	if evs := k.Key(']'); len(evs) != 1 || evs[0].Kind != PresetStep || evs[0].Value != 1 {
		t.Fatalf("] = %+v", evs)
	}
	k.Key('x')
	if evs := k.Key('a'); evs[len(evs)-1].Note != 72 {
		t.Fatalf("octave up a = %+v", evs)
	}
	if evs := k.Key('?'); evs != nil {
		t.Fatalf("unmapped key = %+v", evs)
	}
}
