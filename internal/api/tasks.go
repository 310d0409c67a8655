package api

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Tasks runs fire-and-forget bridge operations in the background.
// Every task receives the same long-lived context, not the request's, so it
// outlives the HTTP exchange that started it. Tasks report their own
// failures; one failing task never cancels the others.
type Tasks struct {
	ctx context.Context
	g   errgroup.Group
}

// NewTasks creates a runner whose tasks observe ctx.
func NewTasks(ctx context.Context) *Tasks {
	return &Tasks{ctx: ctx}
}

// Go starts fn in its own goroutine.
func (t *Tasks) Go(fn func(ctx context.Context)) {
	t.g.Go(func() error {
		fn(t.ctx)
		return nil
	})
}

// Wait blocks until every started task has returned.
func (t *Tasks) Wait() {
	_ = t.g.Wait()
}

// WaitContext waits for running tasks or until ctx is done. A native dialog
// left open can keep a task alive indefinitely.
func (t *Tasks) WaitContext(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
