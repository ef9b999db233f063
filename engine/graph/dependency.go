package graph

import (
	"sync/atomic"

	"github.com/baidu/anyflow/engine"
	"github.com/baidu/anyflow/value"
)

// Dependency is one edge from a Vertex to the Data it reads, corresponding
// to the spec's GraphDependency. It may additionally be gated by a
// condition Data plus a polarity: the edge is established only once the
// condition's boolean value equals On.
type Dependency struct {
	Consumer  *Vertex
	Target    *Data
	Condition *Data
	// On is the polarity this edge was declared with: true for .on(cond),
	// false for .unless(cond). Ignored when Condition is nil.
	On        bool
	Mutable   bool
	Essential engine.Essential

	// remaining counts the outstanding events (target-ready, and
	// condition-ready if Condition != nil) this edge still needs before
	// it can resolve. It starts at 1 or 2 each Activate.
	remaining atomic.Int32
	finalized atomic.Bool
	ready     atomic.Bool
	established atomic.Bool
}

// reset clears per-run state. Called by Graph.Reset.
func (d *Dependency) reset() {
	d.remaining.Store(0)
	d.finalized.Store(false)
	d.ready.Store(false)
	d.established.Store(false)
}

// activate arms the edge's counter and triggers reverse-reachability
// activation of whatever producers feed its target (and its condition, if
// any). Registration as a successor of Target/Condition happens once, at
// build time (see Builder.Build), not here: activate can run once per
// Graph.Run and must not grow those lists run over run.
func (d *Dependency) activate(g *Graph, stack *runnableStack, closure *closureContext) {
	if d.Condition != nil {
		d.remaining.Store(2)
		g.activateProducers(d.Condition, stack, closure)
	} else {
		d.remaining.Store(1)
		d.established.Store(true)
	}
	g.activateProducers(d.Target, stack, closure)
}

// onDataReady is the Committer.Release callback: data just became ready,
// and this Dependency declared it as either its Target or its Condition.
func (d *Dependency) onDataReady(data *Data, stack *runnableStack) {
	if data == d.Condition {
		d.onConditionReady(stack)
		return
	}
	d.onTargetReady(stack)
}

func (d *Dependency) onConditionReady(stack *runnableStack) {
	v, ok := boolOf(d.Condition.Value())
	satisfied := ok && v == d.On
	d.established.Store(satisfied)
	if !satisfied {
		// Short circuit: this edge is settled regardless of whether the
		// target ever produces. finalize is idempotent so a later
		// onTargetReady for the same edge is harmless.
		d.finalize(stack)
		return
	}
	if d.remaining.Add(-1) <= 0 {
		d.finalize(stack)
	}
}

func (d *Dependency) onTargetReady(stack *runnableStack) {
	if d.remaining.Add(-1) <= 0 {
		d.finalize(stack)
	}
}

// finalize runs exactly once per activation: it claims mutability on the
// target if the edge is established, marks it ready, and tells the
// consumer one of its dependencies has resolved.
func (d *Dependency) finalize(stack *runnableStack) {
	if !d.finalized.CompareAndSwap(false, true) {
		return
	}
	if d.established.Load() {
		var claimed bool
		if d.Mutable {
			claimed = d.Target.acquireMutableDepend()
		} else {
			claimed = d.Target.acquireImmutableDepend()
		}
		if !claimed {
			// Invariant I2 violated at run time: some other established
			// dependency already holds an incompatible claim on this
			// slot. Fatal per spec §4.3/§7 — fail the whole run instead
			// of silently proceeding with whatever dependState holds.
			d.Consumer.closure.finish(engine.CodeMutabilityConflict)
		}
		d.ready.Store(true)
	}
	d.Consumer.dependencyDone(stack)
}

// Value implements engine.DependencyHandle.
func (d *Dependency) Value() value.Value {
	if !d.established.Load() {
		return value.Empty()
	}
	return d.Target.Value()
}

// Ready implements engine.DependencyHandle.
func (d *Dependency) Ready() bool { return d.ready.Load() }

// Established implements engine.DependencyHandle.
func (d *Dependency) Established() bool { return d.established.Load() }

// Empty implements engine.DependencyHandle.
func (d *Dependency) Empty() bool {
	if !d.established.Load() {
		return true
	}
	return d.Target.Empty()
}

// failedEssential reports whether this edge resolved to "no value", for the
// essential-level checks GraphVertex.invoke performs before dispatch.
func (d *Dependency) failedEssential() bool {
	return !d.established.Load() || d.Target.Empty()
}

func boolOf(v value.Value) (bool, bool) {
	if b := value.Get[bool](v); b != nil {
		return *b, true
	}
	return false, false
}
