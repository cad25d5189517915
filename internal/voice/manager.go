package voice

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cbegin/samplerbox-go/internal/preset"
)

// Params configures a Manager.
type Params struct {
	Polyphony int
	Debounce  time.Duration
	Velocity  int
}

func DefaultParams() Params {
	return Params{
		Polyphony: 80,
		Debounce:  150 * time.Millisecond,
		Velocity:  preset.FixedVelocity,
	}
}

// Manager owns the active and sustained voice sets. Input handlers mutate
// them under a mutex; after every change an immutable snapshot is published
// for the render goroutine, which never waits on input handling beyond the
// short critical section in Retire.
type Manager struct {
	params Params
	now    func() time.Time

	mu        sync.Mutex
	seq       uint64
	voices    []*Voice // creation order
	held      map[int][]*Voice
	sustained []*Voice
	lastOn    [preset.Notes]time.Time
	sustain   bool

	snap atomic.Pointer[[]*Voice]
}

func NewManager(params Params) *Manager {
	def := DefaultParams()
	if params.Polyphony <= 0 {
		params.Polyphony = def.Polyphony
	}
	if params.Debounce < 0 {
		params.Debounce = 0
	}
	if params.Velocity < 0 || params.Velocity >= preset.Velocities {
		params.Velocity = def.Velocity
	}
	m := &Manager{
		params: params,
		now:    time.Now,
		held:   make(map[int][]*Voice),
	}
	m.publishLocked()
	return m
}

// Polyphony returns the voice ceiling enforced at render time.
func (m *Manager) Polyphony() int { return m.params.Polyphony }

// NoteOn starts a voice for key from tbl. It returns false when the event
// was a debounced duplicate, the key is already held, or tbl has no sample
// for it.
func (m *Manager) NoteOn(key int, tbl *preset.Table) bool {
	return m.NoteOnShifted(key, 0, tbl)
}

// NoteOnShifted is NoteOn sounding key+shift. Held voices stay keyed by key,
// so the matching NoteOff releases them whatever the shift is by then.
func (m *Manager) NoteOnShifted(key, shift int, tbl *preset.Table) bool {
	note := key + shift
	if key < 0 || key >= preset.Notes || note < 0 || note >= preset.Notes {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if m.soundingLocked(key) && now.Sub(m.lastOn[key]) < m.params.Debounce {
		return false
	}
	if len(m.held[key]) > 0 {
		return false
	}
	w, ok := tbl.Lookup(note, m.params.Velocity)
	if !ok {
		return false
	}
	m.lastOn[key] = now
	v := &Voice{Wave: w, Key: key, Note: note, Seq: m.seq}
	m.seq++
	m.voices = append(m.voices, v)
	m.held[key] = append(m.held[key], v)
	m.publishLocked()
	return true
}

// NoteOff releases key. Held voices move to the sustained set while the
// pedal is down and start their fadeout otherwise.
func (m *Manager) NoteOff(key int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	vs := m.held[key]
	if len(vs) == 0 {
		return false
	}
	delete(m.held, key)
	if m.sustain {
		m.sustained = append(m.sustained, vs...)
		return true
	}
	for _, v := range vs {
		v.Fadeout()
	}
	return true
}

// SetSustain sets the pedal. Releasing it fades every sustained voice.
func (m *Manager) SetSustain(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sustain = on
	if on {
		return
	}
	for _, v := range m.sustained {
		v.Fadeout()
	}
	m.sustained = nil
}

func (m *Manager) Sustain() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sustain
}

// Panic silences everything immediately, without fadeout.
func (m *Manager) Panic() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.voices {
		v.Stop()
	}
	m.voices = nil
	m.sustained = nil
	clear(m.held)
	m.publishLocked()
}

// Snapshot returns the voices in creation order. The slice is shared and
// must not be modified.
func (m *Manager) Snapshot() []*Voice {
	if p := m.snap.Load(); p != nil {
		return *p
	}
	return nil
}

// Active returns the number of voices in the last published snapshot.
func (m *Manager) Active() int { return len(m.Snapshot()) }

// Sustained returns the number of voices kept alive by the pedal.
func (m *Manager) Sustained() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sustained)
}

// Retire removes every voice that has been stopped from all sets.
func (m *Manager) Retire() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voices = keepLive(m.voices)
	m.sustained = keepLive(m.sustained)
	for note, vs := range m.held {
		if vs = keepLive(vs); len(vs) == 0 {
			delete(m.held, note)
		} else {
			m.held[note] = vs
		}
	}
	m.publishLocked()
}

func (m *Manager) soundingLocked(key int) bool {
	for _, v := range m.voices {
		if v.Key == key && !v.Done() {
			return true
		}
	}
	return false
}

func (m *Manager) publishLocked() {
	snap := make([]*Voice, len(m.voices))
	copy(snap, m.voices)
	m.snap.Store(&snap)
}

func keepLive(vs []*Voice) []*Voice {
	out := vs[:0]
	for _, v := range vs {
		if !v.Done() {
			out = append(out, v)
		}
	}
	for i := len(out); i < len(vs); i++ {
		vs[i] = nil
	}
	return out
}
