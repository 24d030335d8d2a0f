// Package scope ties timers and resources to the lifetime of one screen or
// connection. Closing a scope cancels its timers and runs its release hooks
// exactly once, whichever exit path gets there first.
package scope

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ReleaseFunc frees a resource acquired within a scope
type ReleaseFunc func(ctx context.Context) error

type Scope struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	nextID   int
	timers   map[int]*time.Timer
	releases []ReleaseFunc

	closeOnce sync.Once
	closeErr  error
}

// New creates a scope whose context is derived from parent
func New(parent context.Context) *Scope {
	ctx, cancel := context.WithCancel(parent)
	return &Scope{
		ctx:    ctx,
		cancel: cancel,
		timers: make(map[int]*time.Timer),
	}
}

// Context is canceled when the scope closes
func (s *Scope) Context() context.Context {
	return s.ctx
}

// Done is closed when the scope closes
func (s *Scope) Done() <-chan struct{} {
	return s.ctx.Done()
}

// AfterFunc runs fn after d unless the scope closes first. The returned
// function cancels the timer and reports whether it stopped fn from running.
func (s *Scope) AfterFunc(d time.Duration, fn func()) (stop func() bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return func() bool { return false }
	}

	id := s.nextID
	s.nextID++
	s.timers[id] = time.AfterFunc(d, func() {
		s.mu.Lock()
		_, live := s.timers[id]
		delete(s.timers, id)
		s.mu.Unlock()

		if live {
			fn()
		}
	})

	return func() bool {
		s.mu.Lock()
		t, live := s.timers[id]
		delete(s.timers, id)
		s.mu.Unlock()

		return live && t.Stop()
	}
}

// Pending returns the number of timers that have not fired or been stopped
func (s *Scope) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// OnRelease registers fn to run when the scope closes. Hooks run in reverse
// registration order. On a closed scope fn runs immediately.
func (s *Scope) OnRelease(fn ReleaseFunc) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fn(context.Background())
	}
	s.releases = append(s.releases, fn)
	s.mu.Unlock()
	return nil
}

// Close cancels pending timers and runs the release hooks. Later calls
// return the result of the first.
func (s *Scope) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		for id, t := range s.timers {
			t.Stop()
			delete(s.timers, id)
		}
		releases := s.releases
		s.releases = nil
		s.mu.Unlock()

		s.cancel()

		var errs []error
		for i := len(releases) - 1; i >= 0; i-- {
			if err := releases[i](ctx); err != nil {
				errs = append(errs, err)
			}
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
