// Package engine drives rendering: it hands the current voices to a mixing
// kernel once per block and applies the global volume.
package engine

import (
	"math"
	"sync/atomic"

	"github.com/cbegin/samplerbox-go/internal/preset"
)

// DefaultVolumeDB is the global volume a preset starts from.
const DefaultVolumeDB = -12.0

// DBToLinear converts a decibel gain to a linear factor.
func DBToLinear(db float64) float64 { return math.Pow(10, db/20) }

// Settings is one immutable view of the global playback state. A reader that
// loads it sees a table together with the transpose and volume it was
// installed with.
type Settings struct {
	Table     *preset.Table // nil before the first load
	Transpose int
	Volume    float64 // linear
}

// State is the process-wide playback state shared by input handling and the
// render path. Every change publishes a new Settings value.
type State struct {
	cur atomic.Pointer[Settings]
}

func NewState() *State {
	s := &State{}
	s.cur.Store(&Settings{Volume: DBToLinear(DefaultVolumeDB)})
	return s
}

// Settings returns the current view. It must not be modified.
func (s *State) Settings() *Settings { return s.cur.Load() }

func (s *State) update(fn func(*Settings)) {
	for {
		old := s.cur.Load()
		next := *old
		fn(&next)
		if s.cur.CompareAndSwap(old, &next) {
			return
		}
	}
}

// Reset restores the default volume and transpose. The table is kept.
func (s *State) Reset() {
	s.update(func(st *Settings) {
		st.Volume = DBToLinear(DefaultVolumeDB)
		st.Transpose = 0
	})
}

// Install publishes a new table with its transpose and linear volume in a
// single step.
func (s *State) Install(t *preset.Table, transpose int, volume float64) {
	s.cur.Store(&Settings{Table: t, Transpose: transpose, Volume: clampVolume(volume)})
}

func (s *State) Volume() float64 { return s.cur.Load().Volume }

func (s *State) SetVolume(linear float64) {
	s.update(func(st *Settings) { st.Volume = clampVolume(linear) })
}

// AdjustVolumeDB scales the current volume by db decibels.
func (s *State) AdjustVolumeDB(db float64) {
	s.update(func(st *Settings) { st.Volume = clampVolume(st.Volume * DBToLinear(db)) })
}

func (s *State) Transpose() int { return s.cur.Load().Transpose }

func (s *State) SetTranspose(semis int) {
	s.update(func(st *Settings) { st.Transpose = semis })
}

// Table returns the active sample table; nil before the first load.
func (s *State) Table() *preset.Table { return s.cur.Load().Table }

// SetTable swaps in a new table. Readers see either the old or the new one.
func (s *State) SetTable(t *preset.Table) {
	s.update(func(st *Settings) { st.Table = t })
}

func clampVolume(linear float64) float64 {
	if linear < 0 || math.IsNaN(linear) {
		return 0
	}
	return linear
}
