// Package parallel provides a small work-stealing worker pool used to
// spread per-row and per-band rendering work across CPUs.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool is a fixed-size worker pool. Tasks submitted through ExecuteAll
// are distributed round-robin over per-worker queues; idle workers
// steal from their neighbours so uneven tasks still finish together.
type Pool struct {
	workers int
	queues  []chan func()
	done    chan struct{}
	wg      sync.WaitGroup
	closed  atomic.Bool
}

// NewPool creates a pool with the given number of workers. A count of
// zero or less uses runtime.NumCPU.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	p := &Pool{
		workers: workers,
		queues:  make([]chan func(), workers),
		done:    make(chan struct{}),
	}
	for i := range p.queues {
		p.queues[i] = make(chan func(), 64)
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.run(i)
	}
	return p
}

// Workers reports the number of workers in the pool.
func (p *Pool) Workers() int { return p.workers }

func (p *Pool) run(id int) {
	defer p.wg.Done()
	for {
		select {
		case task, ok := <-p.queues[id]:
			if !ok {
				return
			}
			task()
		case <-p.done:
			// Drain our own queue before exiting.
			for {
				select {
				case task, ok := <-p.queues[id]:
					if !ok {
						return
					}
					task()
				default:
					return
				}
			}
		default:
			if !p.steal(id) {
				select {
				case task, ok := <-p.queues[id]:
					if !ok {
						return
					}
					task()
				case <-p.done:
					return
				}
			}
		}
	}
}

// steal runs one task from another worker's queue, if any is waiting.
func (p *Pool) steal(id int) bool {
	for i := 1; i < p.workers; i++ {
		victim := (id + i) % p.workers
		select {
		case task, ok := <-p.queues[victim]:
			if !ok {
				continue
			}
			task()
			return true
		default:
		}
	}
	return false
}

// ExecuteAll runs every task and blocks until all have completed.
// Calling ExecuteAll on a closed pool runs the tasks on the caller's
// goroutine.
func (p *Pool) ExecuteAll(tasks []func()) {
	if len(tasks) == 0 {
		return
	}
	if p.closed.Load() {
		for _, task := range tasks {
			task()
		}
		return
	}
	var wg sync.WaitGroup
	wg.Add(len(tasks))
	for i, task := range tasks {
		task := task
		p.queues[i%p.workers] <- func() {
			defer wg.Done()
			task()
		}
	}
	wg.Wait()
}

// Map invokes fn(i) for every i in [0, n), spread across the pool.
// It blocks until all invocations have returned.
func (p *Pool) Map(n int, fn func(i int)) {
	if n <= 0 {
		return
	}
	tasks := make([]func(), n)
	for i := 0; i < n; i++ {
		i := i
		tasks[i] = func() { fn(i) }
	}
	p.ExecuteAll(tasks)
}

// Close stops the workers after any queued tasks finish. The pool must
// not be used concurrently with Close.
func (p *Pool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	close(p.done)
	for _, q := range p.queues {
		close(q)
	}
	p.wg.Wait()
}
