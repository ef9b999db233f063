package ops

import "github.com/baidu/anyflow/engine"

// Select republishes whichever of two conditionally-gated dependencies,
// named "a" and "b", actually established this run: the expected wiring
// declares Dependency("a", ...).On(cond) and Dependency("b", ...).Unless(
// cond) against the same condition slot, so exactly one of them resolves.
// If somehow neither established (the condition data was itself empty),
// Select publishes an empty value rather than guessing.
type Select struct {
	engine.NoopProcessor
}

// Process implements engine.Processor.
func (s *Select) Process(ctx *engine.Context) error {
	a := ctx.Dependency("a")
	if a.Established() {
		return ctx.Emit("out").Forward(a)
	}
	b := ctx.Dependency("b")
	if b.Established() {
		return ctx.Emit("out").Forward(b)
	}
	return ctx.Emit("out").Set(emptyValue())
}
