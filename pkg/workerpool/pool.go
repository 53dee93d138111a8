// Package workerpool implements the bounded worker pool of spec.md
// §4.8: a fixed number of goroutines draining a FIFO queue of tasks.
// Shutdown drains the queue and joins workers; tasks submitted after
// shutdown are rejected.
package workerpool

import (
	"errors"
	"sync"

	"github.com/joynr-go/joynr/pkg/joynrlog"
)

var logger = joynrlog.For("workerpool")

// ErrClosed is returned by Submit once the pool has been shut down.
var ErrClosed = errors.New("workerpool: submit after shutdown")

// Pool is a bounded pool of worker goroutines processing a FIFO queue
// of tasks.
type Pool struct {
	tasks  chan func()
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// New starts workers goroutines reading from a queue of capacity
// queueSize.
func New(workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	p := &Pool{tasks: make(chan func(), queueSize)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		runTask(task)
	}
}

// runTask executes a task, converting a panic into a logged error so
// one failing task never takes down a worker goroutine (spec.md §4.6
// "failure policy": per-message failures never abort the worker or
// affect other in-flight work).
func runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("recovered panic in worker task: %v", r)
		}
	}()
	task()
}

// Submit enqueues a task for asynchronous execution. Returns
// ErrClosed if the pool has already been shut down.
//
// The mutex is held across the channel send (not just the closed
// check) so a concurrent Shutdown can't close the channel between
// Submit's check and its send.
func (p *Pool) Submit(task func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	p.tasks <- task
	return nil
}

// QueueDepth returns the number of tasks currently queued but not yet
// picked up by a worker, exposed to pkg/joynrmetrics.
func (p *Pool) QueueDepth() int {
	return len(p.tasks)
}

// Shutdown closes the task queue, waits for already-enqueued tasks to
// drain, and joins all worker goroutines.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.tasks)
	p.wg.Wait()
}
