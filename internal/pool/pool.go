// Package pool provides explicit bounded worker pools with a submit/wait API.
// Pool sizing and backpressure are visible in code rather than hidden behind
// asynchronous dispatch: Submit blocks when all workers are busy.
package pool

import "sync"

// Pool bounds the number of concurrently running tasks. A Pool is shared
// across callers; each caller joins its own tasks through a Group.
type Pool struct {
	sem chan struct{}
}

// New creates a pool that runs at most size tasks concurrently.
func New(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{sem: make(chan struct{}, size)}
}

// Size returns the maximum concurrency.
func (p *Pool) Size() int {
	return cap(p.sem)
}

// Group tracks a batch of tasks submitted to a shared pool so the caller can
// wait for its own batch without waiting on unrelated work.
type Group struct {
	p  *Pool
	wg sync.WaitGroup
}

// Group starts a new empty batch on the pool.
func (p *Pool) Group() *Group {
	return &Group{p: p}
}

// Submit blocks until a worker slot is free, then runs task in its own
// goroutine.
func (g *Group) Submit(task func()) {
	g.wg.Add(1)
	g.p.sem <- struct{}{} // acquire
	go func() {
		defer g.wg.Done()
		defer func() { <-g.p.sem }() // release
		task()
	}()
}

// Wait blocks until every task submitted to this group has finished.
func (g *Group) Wait() {
	g.wg.Wait()
}
