package cleanup

import (
	"context"
	"log/slog"
	"sync"
)

type task struct {
	ctx    context.Context
	ref    string
	reason string
}

// Pool removes assets on a fixed set of in-process workers. Schedule never
// blocks: when the buffer is full the task runs on its own goroutine.
type Pool struct {
	remover  Remover
	reporter reporter

	tasks   chan task
	workers sync.WaitGroup
	pending sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewPool(remover Remover, logger *slog.Logger, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	p := &Pool{
		remover:  remover,
		reporter: newReporter(logger),
		tasks:    make(chan task, workers*64),
	}

	for i := 0; i < workers; i++ {
		p.workers.Add(1)
		go p.work()
	}

	return p
}

// Schedule queues removal of ref. The task outlives the caller's context
// cancellation but keeps its values, so logs still carry the request id.
func (p *Pool) Schedule(ctx context.Context, ref, reason string) {
	if ref == "" {
		return
	}

	t := task{ctx: context.WithoutCancel(ctx), ref: ref, reason: reason}
	p.pending.Add(1)

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		go p.run(t)
		return
	}

	select {
	case p.tasks <- t:
	default:
		go p.run(t)
	}
}

func (p *Pool) work() {
	defer p.workers.Done()
	for t := range p.tasks {
		p.run(t)
	}
}

func (p *Pool) run(t task) {
	defer p.pending.Done()

	err := p.remover.Remove(t.ctx, t.ref)
	p.reporter.report(t.ctx, Result{Ref: t.ref, Reason: t.reason, Attempt: 1, Err: err}, true)
}

// Wait blocks until every scheduled task has finished.
func (p *Pool) Wait() {
	p.pending.Wait()
}

// Close stops accepting work on the workers and waits for scheduled tasks,
// or until ctx is done.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.workers.Wait()
		p.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
