// Package engine declares the contracts that connect a user-supplied
// operator ("processor") to the runtime graph in package graph, without
// graph importing engine or vice versa creating a cycle: graph depends on
// engine for these interfaces, and processors written against engine never
// need to import graph directly. Values cross the boundary as value.Value.
package engine

import (
	"github.com/baidu/anyflow/arena"
	"github.com/baidu/anyflow/value"
)

// Essential describes how a GraphVertex reacts when one of its dependencies
// resolves to an empty value.
type Essential int

// The three essential levels a dependency can declare.
const (
	// EssentialOptional (0): the vertex proceeds, the dependency accessor
	// returns a default/empty value.
	EssentialOptional Essential = iota
	// EssentialSkip (1): the vertex skips process() entirely and
	// publishes empty values on all of its emits.
	EssentialSkip
	// EssentialFail (2): the run fails outright.
	EssentialFail
)

// String renders a human readable name, used in build/run error messages.
func (e Essential) String() string {
	switch e {
	case EssentialOptional:
		return "optional"
	case EssentialSkip:
		return "skip-on-empty"
	case EssentialFail:
		return "fail-on-empty"
	default:
		return "unknown"
	}
}

// DependencyHandle is the read side of a dependency, as seen from inside a
// processor's Process method. It is implemented by *graph.Dependency.
type DependencyHandle interface {
	// Value returns the current value of the dependency's target. It is
	// only meaningful to call once Ready() is true.
	Value() value.Value
	// Ready reports whether the target data is ready and this edge's
	// condition (if any) was satisfied.
	Ready() bool
	// Established reports whether this edge's condition (if any)
	// evaluated to the polarity the consumer declared.
	Established() bool
	// Empty reports whether the dependency should be treated as having
	// no value: either its target published nothing, or its condition
	// was not established.
	Empty() bool
}

// EmitHandle is the write side of an emit, as seen from inside a
// processor's Process method. It is implemented by package graph's
// emitHandle, a wrapper around *graph.Committer.
type EmitHandle interface {
	// Set commits v into the emit's target slot. It is an error to call
	// Set more than once on the same handle.
	Set(v value.Value) error
	// Forward is the zero-copy pathway: it commits dep's current
	// value.Value as-is (same holder kind, same payload) instead of
	// copying a value in. It does not convert between mutable and const
	// references: a ref stays the kind it was, and an owned value stays
	// owned.
	Forward(dep DependencyHandle) error
}

// Context is handed to every lifecycle hook a Processor implements. It is
// the Go analogue of the member-pointer binding the spec's INTERFACE macro
// would otherwise generate: named dependencies/emits are looked up by name
// through it instead of being bound to generated struct fields.
type Context struct {
	// Logf logs a formatted message tagged with the owning vertex's name.
	Logf func(format string, v ...interface{})
	// Option returns the processor's normalized per-instance option, as
	// produced by Config.
	Option func() interface{}
	// Dependency looks up a named dependency declared by this processor.
	// It panics if name was not declared for this vertex on its
	// VertexBuilder: that is a programming error, not a runtime condition.
	Dependency func(name string) DependencyHandle
	// Emit looks up a named emit declared by this processor. Panics
	// under the same condition as Dependency.
	Emit func(name string) EmitHandle
	// Arena is the graph's scratch allocator, valid until the next
	// Graph.Reset. Processors needing typed scratch state call
	// arena.CreateObject[T](ctx.Arena, ...) directly rather than through
	// a closure, since Go methods and struct fields can't carry type
	// parameters of their own.
	Arena *arena.Arena
}

// Processor is the operator contract. Every method is optional in spirit
// (a no-op default is reasonable for Config/Setup/OnActivate/Reset) but
// required in Go's type system; embed NoopProcessor to only override what
// you need.
type Processor interface {
	// Config runs once at build time. It receives the user-supplied raw
	// option and returns a normalized per-instance form, or an error
	// that aborts the build.
	Config(raw interface{}) (interface{}, error)
	// Setup runs once per runtime graph instance, after every
	// Dependency/emit name this processor declared has been wired to a
	// resolved slot. Implementations that need scratch state valid for
	// the graph's whole lifetime (not just one run) allocate it here.
	Setup(ctx *Context) error
	// OnActivate runs at the start of every run this vertex is
	// activated in, before its dependencies are activated. A vertex with
	// no dependencies is made runnable directly and OnActivate is not
	// called for it. It is the hook alias/select operators use to claim
	// mutability ahead of time.
	OnActivate(ctx *Context) error
	// Process performs the computation. A non-nil error fails the run
	// with CodeFailed. For implementations that also satisfy
	// AsyncProcessor, Process is never called; the engine checks for
	// AsyncProcessor first.
	Process(ctx *Context) error
	// Reset runs during Graph.Reset, after the arena has been released.
	Reset(ctx *Context) error
}

// AsyncProcessor is satisfied by processors whose Process work completes on
// another goroutine (e.g. after an I/O callback). The engine detects this
// via a type assertion and calls ProcessAsync instead of Process, handing
// ownership of done to the processor: done must be called exactly once,
// with a non-zero code on failure.
type AsyncProcessor interface {
	Processor
	ProcessAsync(ctx *Context, done func(code int))
}

// NoopProcessor can be embedded by operators that only need to override a
// subset of the Processor lifecycle.
type NoopProcessor struct{}

// Config is a no-op default that passes the raw option through unchanged.
func (NoopProcessor) Config(raw interface{}) (interface{}, error) { return raw, nil }

// Setup is a no-op default.
func (NoopProcessor) Setup(ctx *Context) error { return nil }

// OnActivate is a no-op default.
func (NoopProcessor) OnActivate(ctx *Context) error { return nil }

// Reset is a no-op default.
func (NoopProcessor) Reset(ctx *Context) error { return nil }
