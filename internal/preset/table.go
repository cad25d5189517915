// Package preset turns preset directories into dense note/velocity sample
// tables and schedules their loading in the background.
package preset

import "github.com/cbegin/samplerbox-go/internal/wave"

const (
	Notes      = 128
	Velocities = 128
)

// Sparse collects waveforms at the exact (note, velocity) slots they were
// defined for. A nil entry is undefined.
type Sparse [Notes][Velocities]*wave.Waveform

// Set stores w, ignoring out-of-range coordinates.
func (s *Sparse) Set(note, velocity int, w *wave.Waveform) bool {
	if note < 0 || note >= Notes || velocity < 0 || velocity >= Velocities || w == nil {
		return false
	}
	s[note][velocity] = w
	return true
}

// Table is the dense, read-only lookup built from a Sparse mapping. Every
// note row is either fully populated or empty.
type Table struct {
	slots   [Notes][Velocities]*wave.Waveform
	defined int
}

// Build gap-fills s into a new Table.
//
// Within a note, each defined velocity covers the undefined velocities below
// it down to the previous defined one, and the highest defined velocity also
// covers everything above it. A note with nothing defined copies the row of
// note-1 (itself possibly a copy); note 0 with nothing stays empty.
func Build(s *Sparse) *Table {
	t := &Table{}
	for note := 0; note < Notes; note++ {
		row := &s[note]
		var last *wave.Waveform
		start := 0
		for v := 0; v < Velocities; v++ {
			w := row[v]
			if w == nil {
				continue
			}
			t.defined++
			for u := start; u <= v; u++ {
				t.slots[note][u] = w
			}
			start = v + 1
			last = w
		}
		if last != nil {
			for u := start; u < Velocities; u++ {
				t.slots[note][u] = last
			}
			continue
		}
		if note > 0 {
			t.slots[note] = t.slots[note-1]
		}
	}
	return t
}

// Lookup returns the waveform for a slot. Absence is reported with ok=false,
// including for out-of-range coordinates.
func (t *Table) Lookup(note, velocity int) (w *wave.Waveform, ok bool) {
	if t == nil || note < 0 || note >= Notes || velocity < 0 || velocity >= Velocities {
		return nil, false
	}
	w = t.slots[note][velocity]
	return w, w != nil
}

// Defined returns how many slots were defined before gap-filling.
func (t *Table) Defined() int {
	if t == nil {
		return 0
	}
	return t.defined
}

// Empty reports whether the table has no samples at all.
func (t *Table) Empty() bool { return t.Defined() == 0 }
