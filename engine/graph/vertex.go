package graph

import (
	"fmt"
	"sync/atomic"

	"github.com/baidu/anyflow/engine"
	"github.com/baidu/anyflow/value"
)

// Vertex is one operator instance wired into the graph, corresponding to
// the spec's GraphVertex. It owns the Dependency edges reading its inputs
// and the Data slots it may commit.
type Vertex struct {
	name      string
	processor engine.Processor
	deps      []*Dependency
	depsByName map[string]*Dependency
	emits     []*Data
	emitsByName map[string]*Data
	trivial   bool
	option    interface{}

	g *Graph

	activated atomic.Bool
	waiting   atomic.Int32
	closure   *closureContext
}

// String implements pgraph.Vertex.
func (v *Vertex) String() string { return v.name }

// Name returns the vertex's build-time name.
func (v *Vertex) Name() string { return v.name }

// SetTrivial marks this vertex as eligible for inline dispatch on the
// completing thread instead of being handed to the Executor. It is meant
// for vertices whose Process is cheap and synchronous (alias, const,
// select): the canonical trivial-vertex set the spec calls out. Processors
// cannot reach it through engine.Context; Builder sets the same flag from
// VertexBuilder.Trivial.
func (v *Vertex) SetTrivial(trivial bool) { v.trivial = trivial }

func (v *Vertex) addDependency(d *Dependency) {
	v.deps = append(v.deps, d)
}

func (v *Vertex) addEmit(d *Data) {
	v.emits = append(v.emits, d)
	d.addProducer(v)
}

// reset clears per-run state. Called by Graph.Reset.
func (v *Vertex) reset() {
	v.activated.Store(false)
	v.waiting.Store(0)
	v.closure = nil
	for _, d := range v.deps {
		d.reset()
	}
}

// activate marks this vertex as part of the current run (idempotent across
// however many Dependency edges reach it) and arms its own Dependencies.
// A vertex with no dependencies is immediately runnable.
func (v *Vertex) activate(g *Graph, stack *runnableStack, closure *closureContext) {
	if !v.activated.CompareAndSwap(false, true) {
		return
	}
	v.closure = closure
	if len(v.deps) == 0 {
		stack.push(v)
		return
	}
	v.waiting.Store(int32(len(v.deps)))
	_ = v.processor.OnActivate(v.context(stack))
	for _, d := range v.deps {
		d.activate(g, stack, closure)
	}
}

// dependencyDone is called once per Dependency.finalize; when the last one
// settles, this vertex becomes runnable.
func (v *Vertex) dependencyDone(stack *runnableStack) {
	if v.waiting.Add(-1) == 0 {
		stack.push(v)
	}
}

// invoke runs the essential-level checks and then either executes the
// vertex inline (trivial) or hands it to the Executor.
func (v *Vertex) invoke(stack *runnableStack) {
	for _, d := range v.deps {
		if d.Essential == engine.EssentialFail && d.failedEssential() {
			v.closure.finish(engine.CodeEssentialFailed)
			return
		}
	}
	skip := false
	for _, d := range v.deps {
		if d.Essential == engine.EssentialSkip && d.failedEssential() {
			skip = true
			break
		}
	}

	vc := newVertexClosure(v.closure, v)
	if skip {
		vc.Done(engine.CodeOK, stack)
		return
	}
	if v.trivial {
		v.runBody(vc, stack)
		return
	}
	v.g.executor.Run(func() {
		local := &runnableStack{}
		v.runBody(vc, local)
		v.g.drain(local)
	})
}

// runBody invokes the processor's Process/ProcessAsync and, for the
// synchronous case, immediately finalizes the vertex closure on stack.
// Async processors own their vertexClosure's Done call instead.
func (v *Vertex) runBody(vc *vertexClosure, stack *runnableStack) {
	ctx := v.context(stack)
	if async, ok := v.processor.(engine.AsyncProcessor); ok {
		async.ProcessAsync(ctx, func(code int) {
			vc.Done(code, stack)
		})
		return
	}
	code := engine.CodeOK
	if err := v.processor.Process(ctx); err != nil {
		code = engine.CodeFailed
	}
	vc.Done(code, stack)
}

// flushUnpublished emits an empty value through every emit this vertex
// never committed this run, releasing each on stack.
func (v *Vertex) flushUnpublished(stack *runnableStack) {
	for _, e := range v.emits {
		if c, ok := e.Emit(); ok {
			c.Release(stack)
		}
	}
}

func (v *Vertex) dependencyByName(name string) *Dependency {
	d, ok := v.depsByName[name]
	if !ok {
		panic(fmt.Sprintf("graph: vertex %q has no dependency named %q", v.name, name))
	}
	return d
}

func (v *Vertex) emitByName(name string) *Data {
	d, ok := v.emitsByName[name]
	if !ok {
		panic(fmt.Sprintf("graph: vertex %q has no emit named %q", v.name, name))
	}
	return d
}

// context builds the engine.Context this vertex's processor sees for the
// current call. stack is threaded through so that any emit committed
// during this call feeds the right runnableStack (the caller's, if this is
// a trivial vertex continuing a chain; a fresh per-dispatch one otherwise).
func (v *Vertex) context(stack *runnableStack) *engine.Context {
	return &engine.Context{
		Logf: func(format string, args ...interface{}) {
			if v.g.logf != nil {
				v.g.logf("["+v.name+"] "+format, args...)
			}
		},
		Option: func() interface{} { return v.option },
		Dependency: func(name string) engine.DependencyHandle {
			return v.dependencyByName(name)
		},
		Emit: func(name string) engine.EmitHandle {
			data := v.emitByName(name)
			c, ok := data.Emit()
			if !ok {
				return nil
			}
			return &emitHandle{committer: c, stack: stack}
		},
		Arena: v.g.arena,
	}
}

// emitHandle adapts Committer to engine.EmitHandle, threading the
// runnableStack that was live when the processor called Context.Emit
// through to Release so newly-runnable vertices land on the right stack.
type emitHandle struct {
	committer *Committer
	stack     *runnableStack
	done      bool
}

// Set implements engine.EmitHandle.
func (e *emitHandle) Set(v value.Value) error {
	if e.done {
		return engine.ErrAlreadyAcquired
	}
	e.done = true
	e.committer.Set(v)
	e.committer.Release(e.stack)
	return nil
}

// Forward implements engine.EmitHandle.
func (e *emitHandle) Forward(dep engine.DependencyHandle) error {
	if e.done {
		return engine.ErrAlreadyAcquired
	}
	e.done = true
	e.committer.Set(dep.Value())
	e.committer.Release(e.stack)
	return nil
}
