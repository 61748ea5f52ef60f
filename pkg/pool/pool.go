// Package pool provides a fixed-size pool of persistent worker goroutines
// draining a FIFO task queue. Unlike a buffered-channel pool, it supports a
// quiescence barrier (Wait) and a cooperative stop that discards queued
// tasks while letting in-flight ones finish.
package pool

import (
	"context"
	"errors"
	"sync"

	"github.com/fractalforge/coordplane/pkg/core"
)

// ErrPoolStopped is returned by Submit once StopAndWait has begun.
var ErrPoolStopped = errors.New("pool: stopped")

// todoNode is a queue element. The pool owns the node; the task it carries
// must stay valid until it has executed.
type todoNode struct {
	next *todoNode
	task Task
}

// Pool executes submitted tasks on a fixed set of worker goroutines.
type Pool struct {
	mu   sync.Mutex
	todo *sync.Cond // signaled when the queue gains work or stop is set
	done *sync.Cond // signaled when a worker finishes a task or exits

	first *todoNode
	last  *todoNode

	numWorking int
	stopped    bool

	workers int
	wg      sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
	logger core.Logger
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger replaces the default logger.
func WithLogger(l core.Logger) Option {
	return func(p *Pool) { p.logger = l }
}

// New creates a pool with numWorkers persistent workers. Counts below 1 are
// clamped to 1. The workers run until StopAndWait.
func New(numWorkers int, opts ...Option) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		workers: numWorkers,
		ctx:     ctx,
		cancel:  cancel,
		logger:  core.NewDefaultLogger(),
	}
	p.todo = sync.NewCond(&p.mu)
	p.done = sync.NewCond(&p.mu)

	for i := range opts {
		opts[i](p)
	}

	p.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go p.loop(i + 1)
	}

	return p
}

// loop is the worker state machine: wait for work, run it outside the lock,
// report done, repeat until stopped.
func (p *Pool) loop(id int) {
	defer p.wg.Done()

	p.mu.Lock()
	for {
		for !p.stopped && p.first == nil {
			p.todo.Wait()
		}
		if p.stopped {
			p.done.Broadcast()
			p.mu.Unlock()
			return
		}

		node := p.first
		p.first = node.next
		if p.first == nil {
			p.last = nil
		}
		task := node.task
		node.next = nil
		node.task = nil
		p.numWorking++
		p.mu.Unlock()

		// The task runs without the pool lock so workers execute
		// concurrently and Submit/Wait stay responsive.
		if err := task.Execute(p.ctx); err != nil {
			p.logger.Errorf("pool: worker %d: task %s failed: %v", id, task.Name(), err)
		}

		p.mu.Lock()
		p.numWorking--
		p.done.Broadcast()
	}
}

// Submit appends a task to the queue and wakes the workers. It never runs
// the task inline. Returns ErrPoolStopped if the pool is stopping.
func (p *Pool) Submit(task Task) error {
	if task == nil {
		return errors.New("pool: task cannot be nil")
	}

	node := &todoNode{task: task}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrPoolStopped
	}
	if p.first == nil {
		p.first = node
		p.last = node
	} else {
		p.last.next = node
		p.last = node
	}
	p.todo.Broadcast()
	return nil
}

// Wait blocks until the queue is empty and no worker is running a task.
// This is the barrier a caller uses after submitting a batch.
func (p *Pool) Wait() {
	p.mu.Lock()
	for p.numWorking > 0 || p.first != nil {
		p.done.Wait()
	}
	p.mu.Unlock()
}

// Size returns the worker count. The field is immutable after New, so no
// lock is needed.
func (p *Pool) Size() int {
	return p.workers
}

// StopAndWait stops the pool: queued-but-not-started tasks are discarded
// without running, in-flight tasks run to completion, and all workers are
// joined before it returns. Idempotent.
func (p *Pool) StopAndWait() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		p.wg.Wait()
		return
	}
	p.stopped = true

	for p.first != nil {
		node := p.first
		p.first = node.next
		node.next = nil
		node.task = nil
	}
	p.last = nil

	p.todo.Broadcast()
	for p.numWorking > 0 {
		p.done.Wait()
	}
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}
