// Package pool runs submitted tasks on a fixed number of goroutines.
package pool

import (
	"errors"
	"sync"
)

var ErrClosed = errors.New("pool: closed")

type Task func()

// Pool is a fixed-size worker pool. Its queue is unbounded: Submit never
// blocks, and a burst of tasks waits for a free worker instead of being
// rejected.
type Pool struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Task
	closed bool
	active int

	onPanic func(any)
	wg      sync.WaitGroup
}

type Option func(*Pool)

// WithPanicHandler makes f receive the value of every recovered task panic.
func WithPanicHandler(f func(any)) Option {
	return func(p *Pool) {
		p.onPanic = f
	}
}

// New starts size workers. size must be positive.
func New(size int, opts ...Option) *Pool {
	if size <= 0 {
		panic("pool: size must be positive")
	}
	p := &Pool{}
	for _, opt := range opts {
		opt(p)
	}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

// Submit queues t for execution.
func (p *Pool) Submit(t Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	p.queue = append(p.queue, t)
	p.cond.Signal()
	return nil
}

// Queued returns the number of tasks waiting for a worker.
func (p *Pool) Queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Active returns the number of tasks currently running.
func (p *Pool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Close stops accepting tasks, lets the workers drain the queue and waits
// for them to exit.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		t := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.active++
		p.mu.Unlock()

		p.run(t)

		p.mu.Lock()
		p.active--
		p.mu.Unlock()
	}
}

// run keeps a panicking task from taking its worker down.
func (p *Pool) run(t Task) {
	defer func() {
		if r := recover(); r != nil && p.onPanic != nil {
			p.onPanic(r)
		}
	}()
	t()
}
