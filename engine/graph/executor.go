package graph

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/baidu/anyflow/util/semaphore"
)

// Executor dispatches a non-trivial vertex's body (or a Closure's finish
// callback) to run. Grounded on purpleidea/mgmt's util/semaphore package:
// the PoolExecutor below reuses that bounded-concurrency pattern, wired to
// the graph's dispatch path instead of a resource convergence worker.
type Executor interface {
	Run(fn func())
}

// InlineExecutor runs fn synchronously on the calling goroutine. It is the
// default: most graphs are dominated by trivial vertices, and those never
// reach the Executor at all (they run inline from Vertex.invoke directly),
// so the Executor only matters for non-trivial vertices and OnFinish
// callbacks.
type InlineExecutor struct{}

// Run implements Executor.
func (InlineExecutor) Run(fn func()) { fn() }

// PoolExecutor runs fn on a bounded pool of goroutines, gated by the same
// util/semaphore.Semaphore mgmt uses to bound concurrent resource
// convergence. An optional rate.Limiter further throttles dispatch, useful
// for graphs whose non-trivial vertices make outbound calls a downstream
// service needs protected from bursts.
type PoolExecutor struct {
	sem     *semaphore.Semaphore
	limiter *rate.Limiter
	wg      sync.WaitGroup
}

// NewPoolExecutor returns a PoolExecutor allowing up to size concurrent
// dispatches. A nil limiter disables rate limiting.
func NewPoolExecutor(size int, limiter *rate.Limiter) *PoolExecutor {
	if size < 1 {
		size = 1
	}
	return &PoolExecutor{sem: semaphore.NewSemaphore(size), limiter: limiter}
}

// Run implements Executor: it blocks until a pool slot is free, then runs
// fn on a new goroutine; if a limiter is set, that goroutine waits for the
// limiter to admit it before calling fn. If the pool has been Closed, fn runs inline instead of being
// dropped, so a vertex's Closure still reaches a terminal state during
// shutdown.
func (p *PoolExecutor) Run(fn func()) {
	if err := p.sem.P(1); err != nil {
		fn()
		return
	}
	p.wg.Add(1)
	go func() {
		defer func() {
			_ = p.sem.V(1)
			p.wg.Done()
		}()
		if p.limiter != nil {
			_ = p.limiter.Wait(context.Background())
		}
		fn()
	}()
}

// Wait blocks until every fn ever passed to Run has returned. Useful in
// tests and in host shutdown paths; Graph.Run's own completion tracking
// (Closure.Wait) does not depend on this.
func (p *PoolExecutor) Wait() {
	p.wg.Wait()
}

// Close shuts the pool down: any Run call already blocked on a free slot
// falls back to running inline instead of hanging, and every future Run
// does the same. Safe to call once during host shutdown.
func (p *PoolExecutor) Close() {
	p.sem.Close()
}
