// Package graph implements the runtime half of anyflow: the GraphData,
// GraphDependency, GraphVertex and Closure state machines the spec
// describes, plus the Builder that assembles them (recording the vertex
// edges in a pgraph.Graph alongside).
//
// Grounded throughout on purpleidea/mgmt's engine/graph package: the
// activation/state bookkeeping here plays the role state.go's State struct
// plays for a single resource, generalized from "one resource converging to
// a fixed point" to "one data slot becoming ready exactly once per run".
package graph

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/baidu/anyflow/arena"
	"github.com/baidu/anyflow/value"
)

// dependState is the mutability claim on a Data slot for the current run.
type dependState int32

const (
	dependNone dependState = iota
	dependImmutable
	dependMutable
)

// Data is one named slot in the graph: the output of one Vertex (Builder
// keys every emitted slot by its producer's name), or of none for a slot
// registered with Builder.DeclareInput, and the input to any number of
// Dependencies. It corresponds to the spec's GraphData.
type Data struct {
	name         string
	declaredType reflect.Type // nil means untyped ("any")
	isChannel    bool

	producers  []*Vertex
	successors []*Dependency

	mu    sync.Mutex
	value value.Value

	acquired    atomic.Bool
	ready       atomic.Bool
	dependState atomic.Int32
	awaiting    atomic.Pointer[closureContext]

	presetMu  sync.Mutex
	presetVal value.Value
	hasPreset bool

	reusable reusableBinding

	topic channelCloser
}

// reusableBinding lets a Data slot's per-run storage be pooled through an
// arena.Reusable instead of reallocated fresh on every reset. Kept as a
// closure pair rather than a generic field on Data itself, since Data is
// not generic over the slot's payload type T.
type reusableBinding struct {
	get func() value.Value
	put func(value.Value)
}

// BindReusable wires d's per-run storage through r: each reset returns the
// previous run's instance to r and fetches the (possibly same, now cleared)
// instance for the next run, so repeated Run/Reset cycles reuse the same
// backing address instead of allocating fresh every time. r owns the
// periodic-recreate policy (see arena.Reusable) that eventually replaces
// the instance anyway, so long-running graphs don't pin one allocation
// forever. Grounded on the spec's reusable-storage contract: "reset reuses
// storage" for slots whose producer would otherwise allocate a fresh buffer
// every run.
func BindReusable[T any](d *Data, r *arena.Reusable[T]) {
	d.reusable = reusableBinding{
		get: func() value.Value { return value.Ref(r.Get()) },
		put: func(v value.Value) {
			if p := value.Get[T](v); p != nil {
				r.Put(p)
			}
		},
	}
}

// channelCloser is satisfied by channel.Topic[T] instantiations; kept as a
// narrow interface here so package graph need not import package channel's
// type parameter directly.
type channelCloser interface {
	ProducerDone()
}

// NewData creates a Data slot named name. typ may be nil for an untyped
// slot. typ is recorded and reported by DeclaredType; Commit and Preset do
// not check values against it.
func NewData(name string, typ reflect.Type) *Data {
	return &Data{name: name, declaredType: typ}
}

// Name returns the slot's declared name.
func (d *Data) Name() string { return d.name }

// DeclaredType returns the Go type this slot was declared with, or nil for
// an untyped slot.
func (d *Data) DeclaredType() reflect.Type { return d.declaredType }

// SetChannel marks this slot as a streaming (multi-value) edge rather than
// a single-commit one. topic is the channel.Topic backing it; Committer
// calls topic.ProducerDone() once per producer on release, in addition to
// sealing the slot's single value.
func (d *Data) SetChannel(topic channelCloser) {
	d.isChannel = true
	d.topic = topic
}

// IsChannel reports whether this slot streams rather than commits once.
func (d *Data) IsChannel() bool { return d.isChannel }

// addProducer registers v as a vertex that may commit this slot. Called by
// the builder, never at run time.
func (d *Data) addProducer(v *Vertex) {
	d.producers = append(d.producers, v)
}

// addSuccessor registers dep as a Dependency edge that reads this slot,
// either as its target or as its condition. Called by the builder.
func (d *Data) addSuccessor(dep *Dependency) {
	d.successors = append(d.successors, dep)
}

// Preset records v as the slot's value to install on reset: every later
// Graph.Reset puts v back (unless a reusable binding is set), and it stays
// recorded across resets until Preset is called again. It does not change
// the slot's current value. A producer's Set or Forward replaces the value
// rather than editing v in place. Preset alone does not make the slot
// ready; a producer must still Commit.
func (d *Data) Preset(v value.Value) {
	d.presetMu.Lock()
	defer d.presetMu.Unlock()
	d.presetVal = v
	d.hasPreset = true
}

// reset clears all per-run state so the slot can be reused by the next
// Graph.Run. Called by Graph.Reset, which guarantees no run is in flight.
func (d *Data) reset() {
	d.acquired.Store(false)
	d.ready.Store(false)
	d.dependState.Store(int32(dependNone))
	d.awaiting.Store(nil)
	d.mu.Lock()
	switch {
	case d.reusable.get != nil:
		if d.reusable.put != nil {
			d.reusable.put(d.value)
		}
		d.value = d.reusable.get()
	case d.hasPreset:
		d.value = d.presetVal
	default:
		d.value = value.Value{}
	}
	d.mu.Unlock()
}

// Ready reports whether this slot has been committed for the current run.
func (d *Data) Ready() bool { return d.ready.Load() }

// Empty reports whether the slot is ready but holds no meaningful value.
// A slot that was never committed is treated as empty too.
func (d *Data) Empty() bool {
	if !d.ready.Load() {
		return true
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.value.IsEmpty()
}

// Value returns the slot's committed value. Only meaningful once Ready.
func (d *Data) Value() value.Value {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.value
}

// acquireImmutableDepend claims a non-exclusive read of this slot. It
// succeeds unless a mutable claim is already in place: none->immutable
// always succeeds, immutable->immutable is idempotent, mutable->immutable
// fails.
func (d *Data) acquireImmutableDepend() bool {
	for {
		cur := dependState(d.dependState.Load())
		switch cur {
		case dependMutable:
			return false
		case dependNone:
			if d.dependState.CompareAndSwap(int32(dependNone), int32(dependImmutable)) {
				return true
			}
		default:
			return true
		}
	}
}

// acquireMutableDepend claims exclusive write access to this slot. It
// succeeds only from dependNone; any existing claim (mutable or immutable)
// fails it.
func (d *Data) acquireMutableDepend() bool {
	return d.dependState.CompareAndSwap(int32(dependNone), int32(dependMutable))
}

// Committer is the single-use handle a Vertex gets back from Emit. Exactly
// one of Set/Forward may be called, followed by exactly one Release.
type Committer struct {
	data   *Data
	closed atomic.Bool
}

// Emit claims this slot's single commit for the current run. ok is false if
// the slot was already claimed, either by an earlier Emit call or by the
// automatic empty-flush that runs when a vertex's VertexClosure completes.
func (d *Data) Emit() (c *Committer, ok bool) {
	if !d.acquired.CompareAndSwap(false, true) {
		return nil, false
	}
	return &Committer{data: d}, true
}

// Set commits v as the slot's value. It does not make the slot ready by
// itself; call Release to do that.
func (c *Committer) Set(v value.Value) {
	d := c.data
	d.mu.Lock()
	d.value = v
	d.mu.Unlock()
}

// Forward adopts dep's current storage verbatim instead of copying a value
// in, preserving pointer identity end to end: the common case is an alias
// or select operator re-publishing one of its own dependencies unchanged.
func (c *Committer) Forward(dep *Dependency) {
	c.Set(dep.Value())
}

// Release seals the slot: its value becomes visible to readers, and every
// Dependency waiting on it (as target or condition) is notified. Release is
// idempotent; only the first call has effect. runnable collects any
// vertices that become invokable as a direct result, for the caller to
// drain on its own goroutine (the iterative trivial-chaining walk).
func (c *Committer) Release(runnable *runnableStack) {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	d := c.data
	d.ready.Store(true)
	if cc := d.awaiting.Swap(nil); cc != nil {
		cc.dataSub()
	}
	for _, dep := range d.successors {
		dep.onDataReady(d, runnable)
	}
	if d.isChannel && d.topic != nil {
		d.topic.ProducerDone()
	}
}
