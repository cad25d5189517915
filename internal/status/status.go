// Package status carries the four-character lifecycle codes shown on the
// instrument's display.
package status

import (
	"fmt"
	"log/slog"
	"sync"
)

// Code is a fixed-width display code.
type Code string

const Width = 4

// Boot is shown before the first preset load.
const Boot Code = "----"

// Loading is shown when a preset load starts, e.g. "L003".
func Loading(index int) Code { return Code(fmt.Sprintf("L%03d", index%1000)) }

// Failed is shown when a preset is empty or fails to load, e.g. "E003".
func Failed(index int) Code { return Code(fmt.Sprintf("E%03d", index%1000)) }

// Ready is shown once a preset is loaded, e.g. "0003".
func Ready(index int) Code { return Code(fmt.Sprintf("%04d", index%10000)) }

// Reporter receives status codes. Implementations must not block for long;
// codes are emitted from input handling and the loader goroutine.
type Reporter interface {
	Report(Code)
}

// LogReporter writes codes to a slog logger.
type LogReporter struct {
	Logger *slog.Logger
}

func (r LogReporter) Report(c Code) {
	l := r.Logger
	if l == nil {
		l = slog.Default()
	}
	l.Info("display", "code", string(c))
}

// Multi fans a code out to several reporters.
type Multi []Reporter

func (m Multi) Report(c Code) {
	for _, r := range m {
		r.Report(c)
	}
}

// Recorder keeps every reported code.
type Recorder struct {
	mu    sync.Mutex
	codes []Code
}

func (r *Recorder) Report(c Code) {
	r.mu.Lock()
	r.codes = append(r.codes, c)
	r.mu.Unlock()
}

// Codes returns a copy of the reported codes.
func (r *Recorder) Codes() []Code {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Code(nil), r.codes...)
}

// Last returns the most recent code, or "" if none.
func (r *Recorder) Last() Code {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.codes) == 0 {
		return ""
	}
	return r.codes[len(r.codes)-1]
}
