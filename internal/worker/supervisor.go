// Package worker runs named background tasks with per-key exclusivity. A key
// identifies the resource a task owns (a location during a scan); submitting
// a second task for an active key is rejected with services.ErrBusy rather
// than queued, so callers decide whether to retry after the active run ends.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"setlist/internal/logging"
	"setlist/internal/services"
)

// Task is the unit of work a supervisor runs. The context is cancelled by
// Handle.Cancel and by Shutdown; tasks observe it at their own checkpoints.
type Task func(ctx context.Context) (any, error)

// Outcome is the exactly-once completion record of a task.
type Outcome struct {
	Result    any
	Cancelled bool
	Err       error
}

// Handle tracks one submitted task.
type Handle struct {
	key  string
	name string

	cancel  context.CancelFunc
	done    chan struct{}
	outcome Outcome
}

// Key returns the exclusivity key the task was submitted under.
func (h *Handle) Key() string { return h.key }

// Name returns the human-readable task name.
func (h *Handle) Name() string { return h.name }

// Cancel requests cancellation. It is safe to call repeatedly and after
// completion.
func (h *Handle) Cancel() { h.cancel() }

// Done is closed after the outcome has been recorded.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Outcome returns the completion record. It is only valid after Done is
// closed.
func (h *Handle) Outcome() Outcome {
	select {
	case <-h.done:
		return h.outcome
	default:
		return Outcome{Err: errors.New("task still running")}
	}
}

// Wait blocks until the task completes or ctx is cancelled.
func (h *Handle) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-h.done:
		return h.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Supervisor owns the active task set.
type Supervisor struct {
	logger *slog.Logger

	mu     sync.Mutex
	active map[string]*Handle
	closed bool
	wg     sync.WaitGroup
}

// NewSupervisor returns an empty supervisor logging through logger.
func NewSupervisor(logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Supervisor{
		logger: logging.NewComponentLogger(logger, "worker"),
		active: make(map[string]*Handle),
	}
}

// Submit starts task under key. While a task for key is active, further
// submissions for the same key fail with services.ErrBusy.
func (s *Supervisor) Submit(key, name string, task Task) (*Handle, error) {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		key:    key,
		name:   name,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		return nil, services.Wrap(services.ErrValidation, "worker", "submit", "supervisor is shut down", nil)
	}
	if running, ok := s.active[key]; ok {
		s.mu.Unlock()
		cancel()
		return nil, services.Wrap(services.ErrBusy, "worker", "submit",
			fmt.Sprintf("task %q already active for key %q", running.name, key), nil)
	}
	s.active[key] = h
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("task started", "task", name, "key", key)
	go s.run(ctx, h, task)
	return h, nil
}

func (s *Supervisor) run(ctx context.Context, h *Handle, task Task) {
	defer s.wg.Done()

	result, err := runTask(ctx, task)

	out := Outcome{Result: result, Err: err}
	if err != nil && ctx.Err() != nil && errors.Is(err, context.Canceled) {
		out = Outcome{Result: result, Cancelled: true}
	}

	// Release the key before signalling completion so a waiter observing
	// Done can immediately resubmit.
	s.mu.Lock()
	delete(s.active, h.key)
	s.mu.Unlock()

	h.outcome = out
	close(h.done)

	switch {
	case out.Cancelled:
		s.logger.Info("task cancelled", "task", h.name, "key", h.key)
	case out.Err != nil:
		s.logger.Error("task failed", "task", h.name, "key", h.key, "error", out.Err)
	default:
		s.logger.Info("task completed", "task", h.name, "key", h.key)
	}
}

func runTask(ctx context.Context, task Task) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panic: %v", r)
		}
	}()
	return task(ctx)
}

// Active reports whether a task currently holds key.
func (s *Supervisor) Active(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[key]
	return ok
}

// Shutdown cancels every active task and waits for completion or ctx expiry.
// After Shutdown the supervisor rejects new submissions.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	for _, h := range s.active {
		h.cancel()
	}
	s.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("supervisor shutdown: %w", ctx.Err())
	}
}
