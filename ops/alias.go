// Package ops is the builtin operator library: thin processors that wrap
// the engine API for the handful of operations common enough to ship with
// the runtime rather than leave to every caller to reimplement. None of
// them do anything a caller couldn't write directly against
// engine.Processor; they exist so a Builder-driven graph (in particular
// one loaded from YAML by package yamlgraph) has a usable vocabulary
// without a host program writing Go for every node.
package ops

import "github.com/baidu/anyflow/engine"

// Alias republishes its single "in" dependency on "out" unchanged,
// preserving storage identity via Forward rather than copying the value.
// Callers should always wire it with VertexBuilder.Trivial: there is never
// a reason to dispatch it through the Executor.
type Alias struct {
	engine.NoopProcessor
}

// Process implements engine.Processor.
func (a *Alias) Process(ctx *engine.Context) error {
	return ctx.Emit("out").Forward(ctx.Dependency("in"))
}
