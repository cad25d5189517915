package samplerbox

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	intaudio "github.com/cbegin/samplerbox-go/internal/audio"
	"github.com/cbegin/samplerbox-go/internal/control"
	"github.com/cbegin/samplerbox-go/internal/engine"
	"github.com/cbegin/samplerbox-go/internal/kernel"
	"github.com/cbegin/samplerbox-go/internal/preset"
	"github.com/cbegin/samplerbox-go/internal/status"
	"github.com/cbegin/samplerbox-go/internal/voice"
)

type Backend string

const (
	BackendEbiten Backend = "ebiten"
	BackendOto    Backend = "oto"
	// BackendNone renders only through Process (offline use and tests).
	BackendNone Backend = "none"
)

const (
	DefaultSampleRate  = 44100
	DefaultBlockFrames = 512
	maxPreset          = 127
)

// DeviceOpenError reports that the audio backend could not be opened.
type DeviceOpenError struct {
	Backend Backend
	Err     error
}

func (e *DeviceOpenError) Error() string {
	return fmt.Sprintf("open audio device (%s): %v", e.Backend, e.Err)
}

func (e *DeviceOpenError) Unwrap() error { return e.Err }

type Option func(*config)

type config struct {
	samplesDir  string
	sampleRate  int
	blockFrames int
	backend     Backend
	preset      int
	voices      voice.Params
	kernel      kernel.Kernel
	reporter    status.Reporter
	logger      *slog.Logger
}

func defaultConfig() config {
	return config{
		samplesDir:  ".",
		sampleRate:  DefaultSampleRate,
		blockFrames: DefaultBlockFrames,
		backend:     BackendEbiten,
		voices:      voice.DefaultParams(),
		kernel:      kernel.Default{},
	}
}

// WithSamplesDir sets the directory holding "<index> <name>" preset folders.
func WithSamplesDir(dir string) Option {
	return func(cfg *config) { cfg.samplesDir = dir }
}

// WithInitialPreset selects the preset Start loads first.
func WithInitialPreset(index int) Option {
	return func(cfg *config) { cfg.preset = index }
}

func WithSampleRate(rate int) Option {
	return func(cfg *config) { cfg.sampleRate = rate }
}

// WithBlockFrames sets the render block size in frames.
func WithBlockFrames(frames int) Option {
	return func(cfg *config) { cfg.blockFrames = frames }
}

func WithBackend(b Backend) Option {
	return func(cfg *config) { cfg.backend = b }
}

// WithPolyphony caps the number of simultaneously rendered voices.
func WithPolyphony(n int) Option {
	return func(cfg *config) { cfg.voices.Polyphony = n }
}

// WithDebounce sets the window in which a repeated note-on is ignored.
func WithDebounce(d time.Duration) Option {
	return func(cfg *config) { cfg.voices.Debounce = d }
}

// WithKernel replaces the mixing kernel.
func WithKernel(k kernel.Kernel) Option {
	return func(cfg *config) { cfg.kernel = k }
}

// WithReporter receives display status codes.
func WithReporter(r status.Reporter) Option {
	return func(cfg *config) { cfg.reporter = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(cfg *config) { cfg.logger = l }
}

// Sampler bundles everything the input and render paths share: the preset
// scheduler, the global state (table, volume, transpose), the voice manager
// and the mix engine.
type Sampler struct {
	cfg      config
	logger   *slog.Logger
	reporter status.Reporter

	state  *engine.State
	voices *voice.Manager
	engine *engine.Engine
	lib    *preset.Library
	sched  *preset.Scheduler

	mu     sync.Mutex
	preset int
	audio  intaudio.Backend
}

func New(opts ...Option) (*Sampler, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.sampleRate <= 0 {
		return nil, errors.New("sample rate must be positive")
	}
	if cfg.blockFrames <= 0 {
		return nil, errors.New("block size must be positive")
	}
	if cfg.preset < 0 || cfg.preset > maxPreset {
		return nil, fmt.Errorf("preset %d out of range 0..%d", cfg.preset, maxPreset)
	}
	if cfg.kernel == nil {
		cfg.kernel = kernel.Default{}
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	reporter := cfg.reporter
	if reporter == nil {
		reporter = status.LogReporter{Logger: logger}
	}

	s := &Sampler{
		cfg:      cfg,
		logger:   logger,
		reporter: reporter,
		state:    engine.NewState(),
		voices:   voice.NewManager(cfg.voices),
		preset:   cfg.preset,
	}
	s.engine = engine.New(s.state, s.voices, cfg.kernel, logger)
	s.lib = preset.NewLibrary(cfg.samplesDir, cfg.kernel, logger)
	s.sched = preset.NewScheduler(s.lib, preset.Hooks{
		OnStart: s.loadStarted,
		OnDone:  s.loadDone,
	})
	reporter.Report(status.Boot)
	return s, nil
}

// Start opens the audio device and begins loading preset 0.
func (s *Sampler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.audio == nil && s.cfg.backend != BackendNone {
		var (
			b   intaudio.Backend
			err error
		)
		switch s.cfg.backend {
		case BackendEbiten:
			b, err = intaudio.NewEbitenPlayer(s.cfg.sampleRate, s.cfg.blockFrames, s.engine)
		case BackendOto:
			b, err = intaudio.NewOtoPlayer(s.cfg.sampleRate, s.cfg.blockFrames, s.engine)
		default:
			err = fmt.Errorf("unknown backend %q", s.cfg.backend)
		}
		if err != nil {
			return &DeviceOpenError{Backend: s.cfg.backend, Err: err}
		}
		s.audio = b
		s.audio.Play()
		s.logger.Info("audio device opened", "backend", s.cfg.backend, "rate", s.cfg.sampleRate, "block", s.cfg.blockFrames)
	}
	s.sched.Load(s.preset)
	return nil
}

// Close stops loading and releases the audio device.
func (s *Sampler) Close() error {
	s.sched.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.audio == nil {
		return nil
	}
	err := s.audio.Close()
	s.audio = nil
	return err
}

// Process renders the next block (interleaved stereo) into dst.
func (s *Sampler) Process(dst []float32) { s.engine.Process(dst) }

// NoteOn starts note, sounding it shifted by the current transpose. Missing
// samples are ignored.
func (s *Sampler) NoteOn(note int) bool {
	cur := s.state.Settings()
	return s.voices.NoteOnShifted(note, cur.Transpose, cur.Table)
}

// NoteOff releases note. It matches the NoteOn for the same note even if
// the transpose changed in between.
func (s *Sampler) NoteOff(note int) bool {
	return s.voices.NoteOff(note)
}

func (s *Sampler) SetSustain(on bool) { s.voices.SetSustain(on) }

// Panic silences all voices at once.
func (s *Sampler) Panic() { s.voices.Panic() }

// SelectPreset starts loading preset index, cancelling any load in flight.
func (s *Sampler) SelectPreset(index int) {
	if index < 0 || index > maxPreset {
		return
	}
	s.mu.Lock()
	s.preset = index
	s.mu.Unlock()
	s.sched.Load(index)
}

// ChangePreset steps the preset index by delta, wrapping within 0..127.
func (s *Sampler) ChangePreset(delta int) {
	s.mu.Lock()
	next := ((s.preset+delta)%(maxPreset+1) + maxPreset + 1) % (maxPreset + 1)
	s.mu.Unlock()
	s.SelectPreset(next)
}

// ChangeVolume adjusts the global volume by db decibels.
func (s *Sampler) ChangeVolume(db float64) { s.state.AdjustVolumeDB(db) }

// Preset returns the selected preset index.
func (s *Sampler) Preset() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preset
}

// WaitLoaded blocks until the current preset load has finished.
func (s *Sampler) WaitLoaded() { s.sched.Wait() }

// LoaderState reports whether a preset load is running.
func (s *Sampler) LoaderState() preset.State { return s.sched.State() }

// ActiveVoices returns the number of voices currently sounding.
func (s *Sampler) ActiveVoices() int { return s.voices.Active() }

func (s *Sampler) Volume() float64 { return s.state.Volume() }
func (s *Sampler) Transpose() int  { return s.state.Transpose() }

// RenderFaults returns how many render blocks were replaced by silence.
func (s *Sampler) RenderFaults() uint64 { return s.engine.Faults() }

// HandleEvent applies one control event.
func (s *Sampler) HandleEvent(ev control.Event) {
	switch ev.Kind {
	case control.NoteOn:
		s.NoteOn(ev.Note)
	case control.NoteOff:
		s.NoteOff(ev.Note)
	case control.Sustain:
		s.SetSustain(ev.On)
	case control.Panic:
		s.Panic()
	case control.PresetStep:
		s.ChangePreset(ev.Value)
	case control.PresetSelect:
		s.SelectPreset(ev.Value)
	case control.VolumeStep:
		s.ChangeVolume(float64(ev.Value))
	}
}

func (s *Sampler) loadStarted(index int) {
	s.state.Reset()
	s.logger.Info("preset loading", "preset", index)
	s.reporter.Report(status.Loading(index))
}

func (s *Sampler) loadDone(res preset.Result) {
	switch res.Outcome {
	case preset.Loaded:
		s.install(res.Preset)
		s.logger.Info("preset loaded", "preset", res.Index, "name", res.Preset.Name, "samples", res.Preset.Table.Defined())
		s.reporter.Report(status.Ready(res.Index))
	case preset.Empty:
		if res.Preset != nil {
			s.install(res.Preset)
		}
		s.logger.Warn("preset empty", "preset", res.Index, "err", res.Err)
		s.reporter.Report(status.Failed(res.Index))
	case preset.Failed:
		s.logger.Error("preset load failed", "preset", res.Index, "err", res.Err)
		s.reporter.Report(status.Failed(res.Index))
	case preset.Cancelled:
		s.logger.Debug("preset load cancelled", "preset", res.Index)
	}
}

func (s *Sampler) install(p *preset.Preset) {
	s.state.Install(p.Table, p.Transpose, engine.DBToLinear(engine.DefaultVolumeDB+p.VolumeDB))
}
