// Package worker supervises the long-running loops of a dispatcher: it
// launches them as goroutines, owns the shared stop flag they poll, gives
// them stop-aware sleeps, and lets callers join them.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrAlreadyStarted is returned by Start on a group that was started before.
	ErrAlreadyStarted = errors.New("worker: group already started")
	// ErrStopped is returned by Start on a group that was stopped before it started.
	ErrStopped = errors.New("worker: group stopped")
)

// Loop is a named function run on its own goroutine until it returns.
// Run is expected to poll Group.Stopped at each iteration boundary.
type Loop struct {
	Name string
	Run  func()
}

// Group runs a fixed set of loops. The zero value is not usable; create
// one with NewGroup.
type Group struct {
	logger *slog.Logger

	eg       errgroup.Group
	mu       sync.Mutex
	started  bool
	stopped  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	err      error
}

// NewGroup creates an idle group.
func NewGroup(logger *slog.Logger) *Group {
	return &Group{
		logger: logger,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches every loop on its own goroutine and returns immediately.
// A group can be started once.
func (g *Group) Start(loops ...Loop) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.started {
		return ErrAlreadyStarted
	}
	if g.stopped.Load() {
		return ErrStopped
	}
	g.started = true

	for _, l := range loops {
		g.eg.Go(func() error { return g.run(l) })
	}

	go func() {
		g.err = g.eg.Wait()
		close(g.done)
	}()

	return nil
}

func (g *Group) run(l Loop) (err error) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("loop panicked",
				slog.String("loop", l.Name),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("loop %s panicked: %v", l.Name, r)
		}
	}()

	l.Run()
	g.logger.Debug("loop exited", slog.String("loop", l.Name))
	return nil
}

// Stop sets the stop flag and wakes every sleeping loop. It does not wait
// for loops to exit. It reports whether this call was the one that
// stopped the group.
func (g *Group) Stop() bool {
	first := false
	g.stopOnce.Do(func() {
		first = true
		g.stopped.Store(true)
		close(g.stopCh)
	})
	return first
}

// Stopped reports whether Stop has been called.
func (g *Group) Stopped() bool { return g.stopped.Load() }

// Started reports whether Start has been called successfully.
func (g *Group) Started() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.started
}

// Done returns a channel closed once every loop has returned.
// It never closes for a group that was not started.
func (g *Group) Done() <-chan struct{} { return g.done }

// Sleep pauses for d or until the group is stopped. It returns false if
// the group was stopped.
func (g *Group) Sleep(d time.Duration) bool {
	return g.Idle(d, nil)
}

// Idle pauses for d, until wake receives, or until the group is stopped,
// whichever happens first. It returns false if the group was stopped.
// A nil wake channel is never ready.
func (g *Group) Idle(d time.Duration, wake <-chan struct{}) bool {
	if g.stopped.Load() {
		return false
	}
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-wake:
		return true
	case <-g.stopCh:
		return false
	}
}

// Wait blocks until every loop has returned or ctx is done. It returns
// the first loop failure, ctx.Err() on timeout, and nil for a group that
// was never started.
func (g *Group) Wait(ctx context.Context) error {
	if !g.Started() {
		return nil
	}

	select {
	case <-g.done:
		return g.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
