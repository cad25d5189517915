package samplerbox

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/cbegin/samplerbox-go/internal/control"
	"github.com/cbegin/samplerbox-go/internal/engine"
	"github.com/cbegin/samplerbox-go/internal/kernel"
	"github.com/cbegin/samplerbox-go/internal/preset"
	"github.com/cbegin/samplerbox-go/internal/status"
	"github.com/cbegin/samplerbox-go/internal/wave"
)

func writePreset(t *testing.T, root, name string, files map[string]int, definition string) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for f, frames := range files {
		samples := make([]int16, frames*2)
		for i := range samples {
			samples[i] = int16(i%2000 + 100)
		}
		if err := os.WriteFile(filepath.Join(dir, f), wave.Encode(samples, 2, 44100, wave.Markers{}), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if definition != "" {
		if err := os.WriteFile(filepath.Join(dir, preset.DefinitionFile), []byte(definition), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func newTestSampler(t *testing.T, root string, opts ...Option) (*Sampler, *status.Recorder) {
	t.Helper()
	rec := &status.Recorder{}
	base := []Option{
		WithSamplesDir(root),
		WithBackend(BackendNone),
		WithReporter(rec),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	s, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, rec
}

func TestSamplerStartLoadsFirstPreset(t *testing.T) {
	root := t.TempDir()
	writePreset(t, root, "0 Piano", map[string]int{"60.wav": 1000}, "")
	s, rec := newTestSampler(t, root)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.WaitLoaded()

	want := []status.Code{status.Boot, "L000", "0000"}
	if got := rec.Codes(); !slices.Equal(got, want) {
		t.Fatalf("codes = %v, want %v", got, want)
	}
	if s.LoaderState() != preset.Idle {
		t.Fatalf("loader state = %v, want idle", s.LoaderState())
	}
	if got, want := s.Volume(), engine.DBToLinear(engine.DefaultVolumeDB); math.Abs(got-want) > 1e-12 {
		t.Fatalf("volume = %v, want %v", got, want)
	}
	if !s.NoteOn(60) {
		t.Fatal("NoteOn(60) rejected")
	}
	if s.NoteOn(59) {
		t.Fatal("NoteOn(59) accepted with no sample at or below it")
	}
	if s.ActiveVoices() != 1 {
		t.Fatalf("active = %d, want 1", s.ActiveVoices())
	}
}

func TestSamplerMissingPresetKeepsTable(t *testing.T) {
	root := t.TempDir()
	writePreset(t, root, "0 Piano", map[string]int{"60.wav": 1000}, "")
	s, rec := newTestSampler(t, root)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	s.WaitLoaded()

	s.SelectPreset(5)
	s.WaitLoaded()
	if rec.Last() != "E005" {
		t.Fatalf("last code = %q, want E005", rec.Last())
	}
	if s.Preset() != 5 {
		t.Fatalf("preset = %d, want 5", s.Preset())
	}
	if !s.NoteOn(60) {
		t.Fatal("previous table should stay active after a missing preset")
	}
}

func TestSamplerEmptyPresetInstallsEmptyTable(t *testing.T) {
	root := t.TempDir()
	writePreset(t, root, "0 Piano", map[string]int{"60.wav": 1000}, "")
	writePreset(t, root, "1 Nothing", nil, "")
	s, rec := newTestSampler(t, root)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	s.WaitLoaded()

	s.SelectPreset(1)
	s.WaitLoaded()
	if rec.Last() != "E001" {
		t.Fatalf("last code = %q, want E001", rec.Last())
	}
	if s.NoteOn(60) {
		t.Fatal("NoteOn should be silent with an empty preset")
	}
}

func TestSamplerSwapKeepsSoundingVoices(t *testing.T) {
	root := t.TempDir()
	writePreset(t, root, "0 Short", map[string]int{"60.wav": 1000}, "")
	writePreset(t, root, "1 Long", map[string]int{"60.wav": 3000}, "")
	s, _ := newTestSampler(t, root)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	s.WaitLoaded()

	if !s.NoteOn(60) {
		t.Fatal("NoteOn(60) rejected")
	}
	old := s.voices.Snapshot()[0].Wave

	s.SelectPreset(1)
	s.WaitLoaded()
	if !s.NoteOn(62) {
		t.Fatal("NoteOn(62) rejected after swap")
	}
	vs := s.voices.Snapshot()
	if len(vs) != 2 {
		t.Fatalf("voices = %d, want 2", len(vs))
	}
	if vs[0].Wave != old || vs[0].Wave.Frames != 1000 {
		t.Fatalf("pre-swap voice changed waveform: frames %d", vs[0].Wave.Frames)
	}
	if vs[1].Wave.Frames != 3000 {
		t.Fatalf("post-swap voice frames = %d, want 3000", vs[1].Wave.Frames)
	}
}

func TestSamplerDefinitionGlobals(t *testing.T) {
	root := t.TempDir()
	writePreset(t, root, "0 Strings", map[string]int{"60.wav": 500},
		"%%transpose=2\n%%volume=-6\n%midinote.wav\n")
	s, _ := newTestSampler(t, root)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	s.WaitLoaded()

	if s.Transpose() != 2 {
		t.Fatalf("transpose = %d, want 2", s.Transpose())
	}
	if got, want := s.Volume(), engine.DBToLinear(engine.DefaultVolumeDB-6); math.Abs(got-want) > 1e-12 {
		t.Fatalf("volume = %v, want %v", got, want)
	}
	if !s.NoteOn(58) {
		t.Fatal("transposed NoteOn(58) should reach note 60")
	}
	if got := s.voices.Snapshot()[0].Note; got != 60 {
		t.Fatalf("voice note = %d, want 60", got)
	}
	if !s.NoteOff(58) {
		t.Fatal("transposed NoteOff(58) should release note 60")
	}
}

func TestSamplerHeldNoteReleasesAcrossTransposeChange(t *testing.T) {
	root := t.TempDir()
	writePreset(t, root, "0 Shifted", map[string]int{"60_1.wav": 500}, "%%transpose=2\n%midinote_%mode.wav\n")
	writePreset(t, root, "1 Plain", map[string]int{"60.wav": 500}, "")
	s, _ := newTestSampler(t, root)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	s.WaitLoaded()

	if !s.NoteOn(58) {
		t.Fatal("NoteOn(58) rejected")
	}
	held := s.voices.Snapshot()[0]
	if held.Wave.Mode != wave.Sustain {
		t.Fatalf("mode = %v, want sustain", held.Wave.Mode)
	}

	s.SelectPreset(1)
	s.WaitLoaded()
	if s.Transpose() != 0 {
		t.Fatalf("transpose = %d, want 0", s.Transpose())
	}
	if !s.NoteOff(58) {
		t.Fatal("NoteOff(58) should release the key pressed before the swap")
	}
	if !held.Fading() {
		t.Fatal("released pre-swap voice should fade out")
	}
}

func TestSamplerChangePresetWraps(t *testing.T) {
	s, _ := newTestSampler(t, t.TempDir())
	s.ChangePreset(-1)
	if s.Preset() != 127 {
		t.Fatalf("preset = %d, want 127", s.Preset())
	}
	s.ChangePreset(1)
	if s.Preset() != 0 {
		t.Fatalf("preset = %d, want 0", s.Preset())
	}
	s.SelectPreset(200)
	if s.Preset() != 0 {
		t.Fatalf("out of range select changed preset to %d", s.Preset())
	}
}

func TestSamplerHandleEvent(t *testing.T) {
	root := t.TempDir()
	writePreset(t, root, "0 Piano", map[string]int{"60.wav": 1000}, "")
	writePreset(t, root, "3 Organ", map[string]int{"60.wav": 1000}, "")
	s, rec := newTestSampler(t, root)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	s.WaitLoaded()

	before := s.Volume()
	s.HandleEvent(control.Event{Kind: control.VolumeStep, Value: 6})
	if got, want := s.Volume(), before*engine.DBToLinear(6); math.Abs(got-want) > 1e-9 {
		t.Fatalf("volume = %v, want %v", got, want)
	}

	s.HandleEvent(control.Event{Kind: control.Sustain, On: true})
	s.HandleEvent(control.Event{Kind: control.NoteOn, Note: 64})
	s.HandleEvent(control.Event{Kind: control.NoteOff, Note: 64})
	if s.voices.Sustained() != 1 {
		t.Fatalf("sustained = %d, want 1", s.voices.Sustained())
	}
	s.HandleEvent(control.Event{Kind: control.Panic})
	if s.ActiveVoices() != 0 {
		t.Fatalf("active after panic = %d, want 0", s.ActiveVoices())
	}

	s.HandleEvent(control.Event{Kind: control.PresetSelect, Value: 3})
	s.WaitLoaded()
	if rec.Last() != "0003" {
		t.Fatalf("last code = %q, want 0003", rec.Last())
	}
	s.HandleEvent(control.Event{Kind: control.PresetStep, Value: -3})
	s.WaitLoaded()
	if rec.Last() != "0000" {
		t.Fatalf("last code = %q, want 0000", rec.Last())
	}
}

func TestSamplerUnknownBackend(t *testing.T) {
	s, _ := newTestSampler(t, t.TempDir(), WithBackend("bogus"))
	err := s.Start()
	var devErr *DeviceOpenError
	if !errors.As(err, &devErr) {
		t.Fatalf("Start error = %v, want DeviceOpenError", err)
	}
	if devErr.Backend != "bogus" {
		t.Fatalf("backend = %q", devErr.Backend)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	if _, err := New(WithSampleRate(0)); err == nil {
		t.Fatal("expected error for zero sample rate")
	}
	if _, err := New(WithBlockFrames(-1)); err == nil {
		t.Fatal("expected error for negative block size")
	}
}

func TestRenderOfflinePlaysUntilSampleEnds(t *testing.T) {
	root := t.TempDir()
	writePreset(t, root, "0 Piano", map[string]int{"60.wav": 1000}, "")
	s, _ := newTestSampler(t, root, WithKernel(kernel.Default{}))
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	s.WaitLoaded()
	s.NoteOn(60)

	out := RenderOffline(s, 1500)
	if len(out) != 3000 {
		t.Fatalf("len = %d, want 3000", len(out))
	}
	nonzero := 0
	for _, v := range out[:1800] {
		if v != 0 {
			nonzero++
		}
	}
	if nonzero == 0 {
		t.Fatal("expected audible output while the sample plays")
	}
	for i, v := range out[2200:] {
		if v != 0 {
			t.Fatalf("sample %d = %v after the waveform ended", 2200+i, v)
		}
	}
	if s.ActiveVoices() != 0 {
		t.Fatalf("active = %d, want 0", s.ActiveVoices())
	}
}

func TestEncodeWAV16(t *testing.T) {
	in := []float32{0, 0, 1, -1, 2, -2, 0.5, -0.5}
	data := EncodeWAV16(in, 22050, 2)
	w, err := wave.Decode(bytes.NewReader(data), kernel.Default{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if w.SampleRate != 22050 {
		t.Fatalf("sample rate = %d", w.SampleRate)
	}
	want := []int16{0, 0, 32767, -32767, 32767, -32768, 16384, -16384}
	if !slices.Equal(w.Data, want) {
		t.Fatalf("data = %v, want %v", w.Data, want)
	}
}
