// Package goroutine runs bounded background work such as event publishing.
package goroutine

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/shandysiswandi/idgate/internal/pkg/stacktrace"
)

// DefaultMaxGoroutine is multiplied by NumCPU when NewManager gets a
// non-positive limit.
const DefaultMaxGoroutine int = 100

// ErrPanic wraps a recovered task panic in the Wait result.
var ErrPanic = errors.New("goroutine: task panicked")

// Runner schedules background tasks.
type Runner interface {
	Go(ctx context.Context, f func(ctx context.Context) error)
}

// Manager runs tasks with a concurrency limit and collects their errors.
//
// Tasks that do not fit under the limit are dropped and logged. After Wait
// is called no new task is accepted.
type Manager struct {
	mu   sync.Mutex
	errs []error

	wg   sync.WaitGroup
	sema chan struct{}

	stateMu sync.RWMutex
	closed  bool
}

// NewManager creates a Manager running at most maxGoroutine tasks at once.
func NewManager(maxGoroutine int) *Manager {
	if maxGoroutine < 1 {
		maxGoroutine = runtime.NumCPU() * DefaultMaxGoroutine
	}

	return &Manager{sema: make(chan struct{}, maxGoroutine)}
}

// Go runs f in a new goroutine if a slot is free.
func (g *Manager) Go(ctx context.Context, f func(ctx context.Context) error) {
	if g == nil {
		return
	}

	g.stateMu.RLock()
	defer g.stateMu.RUnlock()

	if g.closed {
		slog.WarnContext(ctx, "goroutine manager is closed, task dropped")
		return
	}

	select {
	case g.sema <- struct{}{}:
	default:
		slog.WarnContext(ctx, "goroutine limit reached, task dropped", "limit", cap(g.sema))
		return
	}

	g.wg.Go(func() {
		defer func() { <-g.sema }()
		defer g.recover(ctx)

		if err := ctx.Err(); err != nil {
			slog.WarnContext(ctx, "goroutine canceled before start", "error", err)
			return
		}

		if err := f(ctx); err != nil {
			g.record(err)
		}
	})
}

// Wait stops accepting tasks, blocks until running ones finish, and returns
// their joined errors.
func (g *Manager) Wait() error {
	if g == nil {
		return nil
	}

	g.stateMu.Lock()
	g.closed = true
	g.stateMu.Unlock()

	g.wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()
	return errors.Join(g.errs...)
}

func (g *Manager) record(err error) {
	g.mu.Lock()
	g.errs = append(g.errs, err)
	g.mu.Unlock()
}

func (g *Manager) recover(ctx context.Context) {
	rvr := recover()
	if rvr == nil {
		return
	}

	stack := debug.Stack()
	if paths := stacktrace.InternalPaths(stack); len(paths) > 0 {
		slog.ErrorContext(ctx, "panic occurred in goroutine", "panic", rvr, "stack", paths)
	} else {
		slog.ErrorContext(ctx, "panic occurred in goroutine", "panic", rvr, "stack", string(stack))
	}
	g.record(ErrPanic)
}
