package graph

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/baidu/anyflow/engine"
)

// callbackState is the callback-slot state a closureContext's OnFinish
// install races against Finish sealing it. Grounded on mgmt's
// close-to-broadcast idiom (state.go closes obj.started to fan a signal out
// to any number of waiters); here the payload is an error code rather than
// nothing, so a CAS'd struct stands in for the channel close.
type callbackState struct {
	cb     func(int)
	sealed bool
	code   int
}

// closureContext is the private, mutable half of a Closure: the per-run
// bookkeeping that decides when a requested run has finished and when it
// has stalled. Grounded on mgmt's engine/graph/state.go State, generalized
// from "has this one resource converged" to "have all requested data slots
// become ready".
type closureContext struct {
	runID         string
	waitingData   atomic.Int32
	waitingVertex atomic.Int32
	state         atomic.Pointer[callbackState]

	finishedCh chan struct{}
	flushOnce  sync.Once
	flushedCh  chan struct{}

	executor Executor
	logf     func(string, ...interface{})
	targets  []*Data
}

func newClosureContext(targets []*Data, executor Executor, logf func(string, ...interface{})) *closureContext {
	c := &closureContext{
		runID:      uuid.NewString(),
		finishedCh: make(chan struct{}),
		flushedCh:  make(chan struct{}),
		executor:   executor,
		logf:       logf,
		targets:    targets,
	}
	c.state.Store(&callbackState{})
	// Pre-incremented by one beyond the per-target/per-dispatch counts:
	// this guard is consumed by fire() once the initial activation wave
	// (every Graph.Run target) has been walked, so a run whose targets
	// are all already satisfied synchronously can't finish before
	// activation itself completes.
	c.waitingData.Store(int32(len(targets)) + 1)
	c.waitingVertex.Store(1)
	return c
}

// fire consumes the pre-increment guard once Graph.Run has finished
// activating every requested target.
func (c *closureContext) fire() {
	if c.waitingData.Add(-1) == 0 {
		c.finish(engine.CodeOK)
	}
	if c.waitingVertex.Add(-1) == 0 {
		c.closeFlushed()
		c.finishIfUnfinished(engine.CodeStalled)
	}
}

// dataSub is called once per requested target, when that target's
// Committer.Release runs.
func (c *closureContext) dataSub() {
	if c.waitingData.Add(-1) == 0 {
		c.finish(engine.CodeOK)
	}
}

// addVertex is called once per VertexClosure constructed: a vertex was
// actually dispatched (trivially or through the executor) this run.
func (c *closureContext) addVertex() {
	c.waitingVertex.Add(1)
}

// vertexDone is called once per VertexClosure.Done.
func (c *closureContext) vertexDone() {
	if c.waitingVertex.Add(-1) == 0 {
		c.closeFlushed()
		c.finishIfUnfinished(engine.CodeStalled)
	}
}

func (c *closureContext) closeFlushed() {
	c.flushOnce.Do(func() { close(c.flushedCh) })
}

// finishIfUnfinished runs finish(code) only if the run hasn't already
// finished through the normal "every target ready" path. Used when the
// vertex population drains to zero before all targets resolved: a stall.
func (c *closureContext) finishIfUnfinished(code int) {
	select {
	case <-c.finishedCh:
		return
	default:
	}
	if code == engine.CodeStalled {
		c.auditStall()
	}
	c.finish(code)
}

// auditStall walks upstream from every unready requested target, logging
// the point where the dependency chain actually broke: a slot whose
// producers' dependencies are all themselves ready, yet the slot was never
// committed (no producer ran it), or a slot with no producer at all.
// Grounded on the spec's stall diagnostic: "all vertex finish but X not
// ready" once every dispatched vertex has settled with some requested data
// still unready.
func (c *closureContext) auditStall() {
	if c.logf == nil {
		return
	}
	visited := map[*Data]bool{}
	var walk func(d *Data)
	walk = func(d *Data) {
		if visited[d] {
			return
		}
		visited[d] = true
		if d.Ready() {
			return
		}
		if len(d.producers) == 0 {
			c.logf("[%s] stall audit: %s not ready, no producer", c.runID, d.Name())
			return
		}
		blocked := false
		for _, p := range d.producers {
			for _, dep := range p.deps {
				if dep.Ready() {
					continue
				}
				blocked = true
				walk(dep.Target)
				if dep.Condition != nil {
					walk(dep.Condition)
				}
			}
		}
		if !blocked {
			c.logf("[%s] stall audit: all vertex finish but %s not ready", c.runID, d.Name())
		}
	}
	for _, t := range c.targets {
		walk(t)
	}
}

// finish transitions the run to its terminal state exactly once. Later
// calls (from either path racing) are no-ops; the first call's code wins.
func (c *closureContext) finish(code int) {
	for {
		old := c.state.Load()
		if old.sealed {
			return
		}
		next := &callbackState{sealed: true, code: code}
		if c.state.CompareAndSwap(old, next) {
			close(c.finishedCh)
			if c.logf != nil {
				c.logf("[%s] run finished, code=%d", c.runID, code)
			}
			if old.cb != nil {
				c.dispatch(old.cb, code)
			}
			return
		}
	}
}

// onFinish registers cb to run once the closure finishes, or runs it
// immediately (via the executor) if it already has.
func (c *closureContext) onFinish(cb func(int)) {
	for {
		old := c.state.Load()
		if old.sealed {
			c.dispatch(cb, old.code)
			return
		}
		next := &callbackState{cb: cb}
		if c.state.CompareAndSwap(old, next) {
			return
		}
	}
}

func (c *closureContext) dispatch(cb func(int), code int) {
	if c.executor != nil {
		c.executor.Run(func() { cb(code) })
		return
	}
	cb(code)
}

func (c *closureContext) errorCode() int {
	return c.state.Load().code
}

// Closure is the handle a caller gets back from Graph.Run: a read-only view
// over a closureContext.
type Closure struct {
	ctx *closureContext
}

// RunID returns the unique identifier generated for this Run call, useful
// for correlating log lines and metrics across a single run's vertices.
func (c Closure) RunID() string {
	return c.ctx.runID
}

// Finished reports whether every requested target has become ready (or the
// run has failed/stalled).
func (c Closure) Finished() bool {
	select {
	case <-c.ctx.finishedCh:
		return true
	default:
		return false
	}
}

// Wait blocks until every dispatched vertex has completed, including any
// cleanup work that runs after the requested targets themselves became
// ready (the spec's "flushed" transition).
func (c Closure) Wait() {
	<-c.ctx.flushedCh
}

// Get blocks until the run finishes and returns its error code.
func (c Closure) Get() int {
	<-c.ctx.finishedCh
	return c.ctx.errorCode()
}

// ErrorCode returns the run's error code; only meaningful once Finished.
func (c Closure) ErrorCode() int {
	return c.ctx.errorCode()
}

// OnFinish registers cb to run, on the graph's executor, once the run
// finishes.
func (c Closure) OnFinish(cb func(code int)) {
	c.ctx.onFinish(cb)
}

// vertexClosure is the RAII-style handle a Vertex's dispatch gets back from
// newVertexClosure. Go has no destructors, so callers are responsible for
// calling Done exactly once; synchronous dispatch calls it right after
// Process returns, AsyncProcessor implementations do so from their own
// completion callback.
type vertexClosure struct {
	closure *closureContext
	vertex  *Vertex
	done    atomic.Bool
}

func newVertexClosure(c *closureContext, v *Vertex) *vertexClosure {
	c.addVertex()
	return &vertexClosure{closure: c, vertex: v}
}

// Done finalizes the vertex's dispatch: a nonzero code fails the whole run,
// any of the vertex's emits nobody committed are flushed empty, and the
// closure's vertex counter is decremented.
func (vc *vertexClosure) Done(code int, stack *runnableStack) {
	if !vc.done.CompareAndSwap(false, true) {
		return
	}
	if code != engine.CodeOK {
		vc.closure.finish(code)
	}
	vc.vertex.flushUnpublished(stack)
	vc.closure.vertexDone()
}
