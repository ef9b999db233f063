package ops

import (
	"github.com/baidu/anyflow/engine"
	"github.com/baidu/anyflow/value"
)

// Const emits a fixed value.Value on "out" every run, configured via the
// Builder's rawOption argument. It never reads any dependency and is
// always eligible for VertexBuilder.Trivial.
type Const struct {
	engine.NoopProcessor
	v value.Value
}

// Config implements engine.Processor: raw must be a value.Value.
func (c *Const) Config(raw interface{}) (interface{}, error) {
	v, _ := raw.(value.Value)
	c.v = v
	return raw, nil
}

// Process implements engine.Processor.
func (c *Const) Process(ctx *engine.Context) error {
	ctx.Emit("out").Set(c.v)
	return nil
}
