package ops

import "github.com/baidu/anyflow/engine"

// Expr wraps an arbitrary Go function as a processor: the thin-wrapper
// shape the spec describes for an expression evaluator, minus an actual
// expression language. A host embedding anyflow that wants string
// expressions (arithmetic, templating, whatever) parses them once at
// Config time into a Func closure; Expr itself only ever calls that
// closure against the current Context.
type Expr struct {
	engine.NoopProcessor
	Func func(ctx *engine.Context) error
}

// Process implements engine.Processor.
func (e *Expr) Process(ctx *engine.Context) error {
	if e.Func == nil {
		return nil
	}
	return e.Func(ctx)
}
