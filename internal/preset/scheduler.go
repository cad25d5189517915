package preset

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// State is the scheduler's loader state.
type State int32

const (
	Idle State = iota
	Loading
	Cancelling
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Cancelling:
		return "cancelling"
	default:
		return "idle"
	}
}

// Outcome classifies how a load finished.
type Outcome int

const (
	Loaded Outcome = iota
	Empty
	Failed
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Loaded:
		return "loaded"
	case Empty:
		return "empty"
	case Failed:
		return "failed"
	default:
		return "cancelled"
	}
}

// Result is delivered once per Load.
type Result struct {
	Index   int
	Outcome Outcome
	Preset  *Preset // nil unless Loaded or Empty with a resolved directory
	Err     error
}

// Hooks are invoked by the Scheduler. OnStart runs synchronously inside Load
// once any previous loader has been joined; OnDone runs on the loader
// goroutine before it exits.
type Hooks struct {
	OnStart func(index int)
	OnDone  func(Result)
}

// Scheduler runs at most one Library.Load at a time. Starting a load cancels
// and joins the one in flight.
type Scheduler struct {
	lib   *Library
	hooks Hooks

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	state atomic.Int32
}

func NewScheduler(lib *Library, hooks Hooks) *Scheduler {
	return &Scheduler{lib: lib, hooks: hooks}
}

// State returns the current loader state.
func (s *Scheduler) State() State { return State(s.state.Load()) }

// Load starts loading index in the background.
func (s *Scheduler) Load(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.state.Store(int32(Loading))
	if s.hooks.OnStart != nil {
		s.hooks.OnStart(index)
	}
	go s.run(ctx, index, done)
}

// Wait blocks until the current load, if any, has finished.
func (s *Scheduler) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Close cancels and joins any in-flight load.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	if s.cancel == nil {
		return
	}
	select {
	case <-s.done:
	default:
		s.state.Store(int32(Cancelling))
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.state.Store(int32(Idle))
}

func (s *Scheduler) run(ctx context.Context, index int, done chan struct{}) {
	defer close(done)

	p, err := s.lib.Load(ctx, index)
	res := Result{Index: index, Preset: p, Err: err}
	var empty *PresetEmptyError
	switch {
	case ctx.Err() != nil:
		res.Outcome = Cancelled
		res.Preset = nil
		res.Err = ctx.Err()
	case errors.As(err, &empty):
		res.Outcome = Empty
	case err != nil:
		res.Outcome = Failed
	case p.Table.Empty():
		res.Outcome = Empty
	default:
		res.Outcome = Loaded
	}
	if s.hooks.OnDone != nil {
		s.hooks.OnDone(res)
	}
	s.state.CompareAndSwap(int32(Loading), int32(Idle))
}
