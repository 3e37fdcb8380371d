package tasks

import (
	"context"
	"sync"

	"github.com/vladimiradmaev/food-diary/internal/logger"
)

// Status describes the poll outcome for a user's analysis task.
type Status int

const (
	StatusAbsent Status = iota
	StatusPending
	StatusReady
)

// Result is the outcome of a photo analysis task.
type Result struct {
	Text        string
	PhotoPath   string
	CanWrite    bool
	TemporaryID uint
}

type task struct {
	cancel context.CancelFunc
	done   chan struct{}
	result *Result
	err    error
}

// Registry tracks at most one in-flight analysis task per user. Submitting a
// new task cancels and replaces the previous one; polling a finished task
// consumes it. Process-local, not persisted.
type Registry struct {
	mu    sync.Mutex
	tasks map[uint]*task
}

func NewRegistry() *Registry {
	return &Registry{
		tasks: make(map[uint]*task),
	}
}

// Submit registers work for the user, cancelling any prior in-flight task.
// The work function runs on its own goroutine with a cancellable context;
// cancellation is cooperative, so the work must check ctx at its own
// checkpoints.
func (r *Registry) Submit(userID uint, work func(ctx context.Context) (*Result, error)) {
	ctx, cancel := context.WithCancel(context.Background())
	t := &task{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	r.mu.Lock()
	if prev, ok := r.tasks[userID]; ok {
		prev.cancel()
		logger.Infof("Superseded in-flight analysis task for user %d", userID)
	}
	r.tasks[userID] = t
	r.mu.Unlock()

	go func() {
		defer cancel()
		result, err := work(ctx)
		t.result = result
		t.err = err
		close(t.done)
	}()
}

// Poll reports the state of the user's task. A ready result is returned once
// and the task is removed; a second poll reports absent. A superseded task's
// result is never exposed because its registry slot was overwritten.
func (r *Registry) Poll(userID uint) (Status, *Result, error) {
	r.mu.Lock()
	t, ok := r.tasks[userID]
	r.mu.Unlock()
	if !ok {
		return StatusAbsent, nil, nil
	}

	select {
	case <-t.done:
	default:
		return StatusPending, nil, nil
	}

	r.mu.Lock()
	// The slot may have been replaced while we were checking completion.
	if cur, ok := r.tasks[userID]; !ok || cur != t {
		r.mu.Unlock()
		return StatusAbsent, nil, nil
	}
	delete(r.tasks, userID)
	r.mu.Unlock()

	return StatusReady, t.result, t.err
}

// Cancel aborts and forgets the user's task, if any.
func (r *Registry) Cancel(userID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[userID]; ok {
		t.cancel()
		delete(r.tasks, userID)
	}
}

// Shutdown cancels every registered task.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range r.tasks {
		t.cancel()
		delete(r.tasks, id)
	}
}
