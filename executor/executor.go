// Package executor provides the bounded worker pool the write queue posts
// process_dependencies callbacks onto after a commit (spec.md §4.1 step 3).
// Posting here — rather than calling back synchronously — is what keeps a
// validator that holds the cache's per-block lock from deadlocking with
// the writer.
package executor

import (
	"log"

	"github.com/JekaMas/workerpool"
)

// Executor dispatches fire-and-forget work onto a fixed-size pool.
type Executor struct {
	pool *workerpool.WorkerPool
}

// New creates an Executor backed by size worker goroutines.
func New(size int) *Executor {
	if size < 1 {
		size = 1
	}
	return &Executor{pool: workerpool.New(size)}
}

// Post schedules fn to run on the pool. fn is recovered from panics so one
// misbehaving validation path cannot take down the pool.
func (e *Executor) Post(fn func()) {
	e.pool.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[executor] task panicked: %v", r)
			}
		}()
		fn()
	})
}

// Close stops accepting new work and waits for in-flight tasks to drain.
func (e *Executor) Close() {
	e.pool.StopWait()
}
