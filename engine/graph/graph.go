package graph

import (
	"github.com/baidu/anyflow/arena"
	"github.com/baidu/anyflow/pgraph"
)

// Graph is a built, runnable instance: the dense set of Vertex/Data objects
// a Builder produced from its vertex descriptions, ready for any number of
// sequential Run/Reset cycles.
type Graph struct {
	name     string
	vertices []*Vertex
	data     map[string]*Data
	executor Executor
	arena    *arena.Arena
	logf     func(string, ...interface{})

	pg *pgraph.Graph // retained for introspection (Reachability, String)
}

// Name returns the graph's build-time name.
func (g *Graph) Name() string { return g.name }

// Data looks up a named slot by name, or nil if no such slot exists.
func (g *Graph) Data(name string) *Data { return g.data[name] }

// SetExecutor swaps the Executor used to dispatch non-trivial vertices.
// Must be called between runs, never while a Closure from a prior Run is
// still unflushed.
func (g *Graph) SetExecutor(e Executor) { g.executor = e }

// activateProducers walks reverse-reachability from data: every Vertex that
// may produce it gets activated (and, transitively, so do the producers of
// whatever those vertices themselves depend on). A Data with no producers
// simply never becomes ready; if something essential depends on it that
// manifests as a stall, not a build-time error, consistent with the
// "missing producer" case being caught at Builder.Build time instead.
func (g *Graph) activateProducers(data *Data, stack *runnableStack, closure *closureContext) {
	for _, p := range data.producers {
		p.activate(g, stack, closure)
	}
}

// Run activates the reverse-reachability closure of targets and drains
// every vertex that becomes immediately runnable, returning a Closure the
// caller uses to observe completion. Non-trivial vertices dispatched to the
// Executor continue draining asynchronously on their own goroutines; Run
// itself never blocks on them.
func (g *Graph) Run(targets ...*Data) Closure {
	ctx := newClosureContext(targets, g.executor, g.logf)
	stack := &runnableStack{}
	for _, t := range targets {
		t.awaiting.Store(ctx)
		g.activateProducers(t, stack, ctx)
	}
	// Drain the initial wave before releasing the pre-increment guard:
	// every vertex this wave will ever dispatch gets its VertexClosure
	// (and so its addVertex) synchronously inside drain, even for
	// non-trivial vertices (only the processor body itself is handed to
	// the Executor). Releasing the guard first would let waitingVertex
	// observe zero before any of that has happened.
	g.drain(stack)
	ctx.fire()
	return Closure{ctx: ctx}
}

// drain pops runnable vertices off stack and invokes them until empty. Each
// invoke may push further vertices onto the same stack (trivial chaining)
// or dispatch asynchronously through the Executor, which drains its own
// fresh stack on its own goroutine.
func (g *Graph) drain(stack *runnableStack) {
	for {
		v := stack.pop()
		if v == nil {
			return
		}
		v.invoke(stack)
	}
}

// Reset releases the arena (running every destructor registered against it
// this run), gives every processor a chance to clear its own per-instance
// state via Processor.Reset, and clears every Vertex/Data back to its
// pre-run state. Reset must not be called while any Closure from a prior
// Run is still unflushed; the caller owns that exclusion, the same contract
// the spec places on the arena itself.
func (g *Graph) Reset() {
	g.arena.Reset()
	for _, v := range g.vertices {
		if err := v.processor.Reset(v.context(nil)); err != nil && g.logf != nil {
			g.logf("[%s] Reset: %v", v.name, err)
		}
	}
	for _, d := range g.data {
		d.reset()
	}
	for _, v := range g.vertices {
		v.reset()
	}
}
