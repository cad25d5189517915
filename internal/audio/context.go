package audio

import (
	"errors"
	"fmt"
	"sync"
)

// ErrContextRate is returned when a device context was already opened at a
// different sample rate.
var ErrContextRate = errors.New("audio: context already initialized at another rate")

// sharedContext opens a process-wide device context once. Both ebiten and
// oto allow only one context per process.
type sharedContext[T any] struct {
	once sync.Once
	ctx  T
	err  error
	rate int
}

func (s *sharedContext[T]) get(rate int, open func() (T, error)) (T, error) {
	s.once.Do(func() {
		s.rate = rate
		s.ctx, s.err = open()
	})
	var zero T
	if s.err != nil {
		return zero, s.err
	}
	if s.rate != rate {
		return zero, fmt.Errorf("%w: %d Hz (requested %d Hz)", ErrContextRate, s.rate, rate)
	}
	return s.ctx, nil
}
