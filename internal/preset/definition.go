package preset

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/cbegin/samplerbox-go/internal/wave"
)

// DefinitionFile is the optional per-preset definition file name.
const DefinitionFile = "definition.txt"

// DefinitionLineError reports a definition line that was skipped.
type DefinitionLineError struct {
	Line int
	Text string
	Err  error
}

func (e *DefinitionLineError) Error() string {
	return fmt.Sprintf("definition line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *DefinitionLineError) Unwrap() error { return e.Err }

// Definition is the parsed content of a definition file.
type Definition struct {
	VolumeDB  float64
	Transpose int
	Patterns  []Pattern
}

// Entry is what a pattern extracts from a matching file name.
type Entry struct {
	Note     int
	Velocity int
	Mode     wave.Mode
}

// Pattern matches sample file names. Placeholders: %midinote, %velocity,
// %notename (e.g. c#3), %mode (0 or 1) and * for any run of characters.
type Pattern struct {
	Line     int
	Source   string
	re       *regexp.Regexp
	defaults Entry
}

var (
	noteNames = []string{"c", "c#", "d", "d#", "e", "f", "f#", "g", "g#", "a", "a#", "b"}
	// literal definition-driven naming: <note>_<mode>.wav
	literalName = regexp.MustCompile(`^(\d+)_(\d+)\.wav$`)
)

// ParseDefinition reads a definition file. Malformed lines are returned as
// DefinitionLineErrors and otherwise ignored.
func ParseDefinition(r io.Reader) (*Definition, []error) {
	def := &Definition{}
	var errs []error
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if err := def.parseLine(line, text); err != nil {
			errs = append(errs, &DefinitionLineError{Line: line, Text: text, Err: err})
		}
	}
	if err := sc.Err(); err != nil {
		errs = append(errs, &DefinitionLineError{Line: line + 1, Err: err})
	}
	return def, errs
}

func (d *Definition) parseLine(line int, text string) error {
	if key, val, ok := globalParam(text); ok {
		switch key {
		case "volume":
			db, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return fmt.Errorf("bad volume: %w", err)
			}
			d.VolumeDB += db
		case "transpose":
			n, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("bad transpose: %w", err)
			}
			d.Transpose = n
		}
		return nil
	}
	p, err := compilePattern(line, text)
	if err != nil {
		return err
	}
	d.Patterns = append(d.Patterns, p)
	return nil
}

func globalParam(text string) (key, val string, ok bool) {
	k, v, found := strings.Cut(text, "=")
	if !found {
		return "", "", false
	}
	k = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(k), "%%"))
	if k != "volume" && k != "transpose" {
		return "", "", false
	}
	return k, strings.TrimSpace(v), true
}

func compilePattern(line int, text string) (Pattern, error) {
	p := Pattern{Line: line, Source: text, defaults: Entry{Velocity: Velocities - 1, Mode: wave.OneShot}}
	pat, rest, _ := strings.Cut(text, ",")
	pat = strings.TrimSpace(pat)
	if rest != "" {
		clean := strings.NewReplacer(" ", "", "%", "").Replace(rest)
		for _, kv := range strings.Split(clean, ",") {
			if kv == "" {
				continue
			}
			k, v, ok := strings.Cut(kv, "=")
			if !ok {
				return Pattern{}, fmt.Errorf("bad default %q", kv)
			}
			n, err := strconv.Atoi(v)
			if err != nil {
				return Pattern{}, fmt.Errorf("bad default %q: %w", kv, err)
			}
			switch k {
			case "midinote":
				p.defaults.Note = n
			case "velocity":
				p.defaults.Velocity = n
			case "mode":
				p.defaults.Mode = wave.Mode(n)
			default:
				return Pattern{}, fmt.Errorf("unknown default %q", k)
			}
		}
	}
	if pat == "" {
		return Pattern{}, fmt.Errorf("empty pattern")
	}
	if lit := literalName.FindStringSubmatch(pat); lit != nil {
		p.re = regexp.MustCompile("^" + regexp.QuoteMeta(lit[0]) + "$")
		p.defaults.Note, _ = strconv.Atoi(lit[1])
		mode, _ := strconv.Atoi(lit[2])
		p.defaults.Mode = wave.Mode(mode)
		return p, p.defaults.validate()
	}
	expr := regexp.QuoteMeta(pat)
	expr = strings.NewReplacer(
		"%midinote", `(?P<midinote>\d+)`,
		"%velocity", `(?P<velocity>\d+)`,
		"%notename", `(?P<notename>[A-Ga-g]#?[0-9])`,
		"%mode", `(?P<mode>\d)`,
		`\*`, `.*?`,
	).Replace(expr)
	re, err := regexp.Compile("^" + expr + "$")
	if err != nil {
		return Pattern{}, err
	}
	p.re = re
	return p, nil
}

// Match reports whether name matches and what it maps to.
func (p Pattern) Match(name string) (Entry, bool, error) {
	m := p.re.FindStringSubmatch(name)
	if m == nil {
		return Entry{}, false, nil
	}
	e := p.defaults
	for i, group := range p.re.SubexpNames() {
		if group == "" || m[i] == "" {
			continue
		}
		switch group {
		case "midinote":
			e.Note, _ = strconv.Atoi(m[i])
		case "velocity":
			e.Velocity, _ = strconv.Atoi(m[i])
		case "mode":
			n, _ := strconv.Atoi(m[i])
			e.Mode = wave.Mode(n)
		case "notename":
			n, err := noteNumber(m[i])
			if err != nil {
				return Entry{}, false, err
			}
			e.Note = n
		}
	}
	if err := e.validate(); err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

func (e Entry) validate() error {
	if e.Note < 0 || e.Note >= Notes {
		return fmt.Errorf("note %d out of range", e.Note)
	}
	if e.Velocity < 0 || e.Velocity >= Velocities {
		return fmt.Errorf("velocity %d out of range", e.Velocity)
	}
	if e.Mode != wave.OneShot && e.Mode != wave.Sustain {
		return fmt.Errorf("mode %d must be 0 or 1", int(e.Mode))
	}
	return nil
}

// noteNumber converts names like "c#3"; c0 is note 24.
func noteNumber(name string) (int, error) {
	octave := int(name[len(name)-1] - '0')
	pitch := strings.ToLower(name[:len(name)-1])
	for i, n := range noteNames {
		if n == pitch {
			return i + (octave+2)*12, nil
		}
	}
	return 0, fmt.Errorf("unknown note name %q", name)
}
