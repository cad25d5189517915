package preset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cbegin/samplerbox-go/internal/wave"
)

// FixedVelocity is the velocity used for fallback samples and note lookups.
const FixedVelocity = Velocities - 1

// fallback naming covers notes [0, fallbackNotes)
const fallbackNotes = 127

// PresetEmptyError reports that no directory exists for a preset index.
type PresetEmptyError struct {
	Index int
}

func (e *PresetEmptyError) Error() string {
	return fmt.Sprintf("preset %d: no matching directory", e.Index)
}

// Preset is a fully loaded sample bank.
type Preset struct {
	Index     int
	Name      string
	Dir       string
	Table     *Table
	VolumeDB  float64
	Transpose int
}

// Library resolves preset indices to directories under a samples root.
type Library struct {
	root   string
	conv   wave.Converter
	logger *slog.Logger

	// gate, when set, runs before every cancellation check (tests only).
	gate func(ctx context.Context, dir string)
}

func NewLibrary(root string, conv wave.Converter, logger *slog.Logger) *Library {
	if logger == nil {
		logger = slog.Default()
	}
	return &Library{root: root, conv: conv, logger: logger}
}

// Root returns the directory presets are searched in. An unreadable or empty
// configured root falls back to the working directory.
func (l *Library) Root() string {
	entries, err := os.ReadDir(l.root)
	if err != nil || len(entries) == 0 {
		return "."
	}
	return l.root
}

// Resolve finds the directory named "<index> <name>".
func (l *Library) Resolve(index int) (dir string, name string, err error) {
	root := l.Root()
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", "", fmt.Errorf("read samples root: %w", err)
	}
	prefix := strconv.Itoa(index) + " "
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			return filepath.Join(root, e.Name()), e.Name(), nil
		}
	}
	return "", "", &PresetEmptyError{Index: index}
}

// Load builds the preset at index. It returns ctx.Err() as soon as
// cancellation is observed; the check happens before each candidate file.
func (l *Library) Load(ctx context.Context, index int) (*Preset, error) {
	dir, name, err := l.Resolve(index)
	if err != nil {
		return nil, err
	}
	p := &Preset{Index: index, Name: name, Dir: dir}
	var sparse Sparse

	f, err := os.Open(filepath.Join(dir, DefinitionFile))
	switch {
	case err == nil:
		def, lineErrs := ParseDefinition(f)
		f.Close()
		for _, le := range lineErrs {
			l.logger.Warn("definition line skipped", "preset", index, "err", le)
		}
		p.VolumeDB = def.VolumeDB
		p.Transpose = def.Transpose
		if err := l.loadPatterns(ctx, dir, def.Patterns, &sparse); err != nil {
			return nil, err
		}
	case errors.Is(err, os.ErrNotExist):
		if err := l.loadFallback(ctx, dir, &sparse); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	p.Table = Build(&sparse)
	return p, nil
}

func (l *Library) loadPatterns(ctx context.Context, dir string, patterns []Pattern, sparse *Sparse) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, p := range patterns {
		for _, name := range names {
			if err := l.checkpoint(ctx, dir); err != nil {
				return err
			}
			entry, ok, err := p.Match(name)
			if err != nil {
				l.logger.Warn("definition line skipped", "line", p.Line, "file", name,
					"err", &DefinitionLineError{Line: p.Line, Text: p.Source, Err: err})
				continue
			}
			if !ok {
				continue
			}
			l.loadOne(filepath.Join(dir, name), entry, sparse)
		}
	}
	return nil
}

func (l *Library) loadFallback(ctx context.Context, dir string, sparse *Sparse) error {
	for note := 0; note < fallbackNotes; note++ {
		if err := l.checkpoint(ctx, dir); err != nil {
			return err
		}
		path := filepath.Join(dir, strconv.Itoa(note)+".wav")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		l.loadOne(path, Entry{Note: note, Velocity: FixedVelocity, Mode: wave.OneShot}, sparse)
	}
	return nil
}

func (l *Library) checkpoint(ctx context.Context, dir string) error {
	if l.gate != nil {
		l.gate(ctx, dir)
	}
	return ctx.Err()
}

func (l *Library) loadOne(path string, e Entry, sparse *Sparse) {
	w, err := wave.Load(path, e.Note, e.Velocity, e.Mode, l.conv)
	if err != nil {
		l.logger.Warn("waveform skipped", "file", path, "err", err)
		return
	}
	sparse.Set(e.Note, e.Velocity, w)
}
