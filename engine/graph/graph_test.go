package graph

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/baidu/anyflow/engine"
	"github.com/baidu/anyflow/value"
)

// constProc emits a fixed int, or an empty value when asked to.
type constProc struct {
	engine.NoopProcessor
	v     int
	empty bool
}

func (c *constProc) Process(ctx *engine.Context) error {
	if c.empty {
		ctx.Emit("out").Set(value.Empty())
		return nil
	}
	ctx.Emit("out").Set(value.Assign(c.v))
	return nil
}

// boolProc emits a fixed bool.
type boolProc struct {
	engine.NoopProcessor
	v bool
}

func (b *boolProc) Process(ctx *engine.Context) error {
	ctx.Emit("out").Set(value.Assign(b.v))
	return nil
}

// addProc sums its two int dependencies.
type addProc struct {
	engine.NoopProcessor
}

func (a *addProc) Process(ctx *engine.Context) error {
	sum := 0
	if x := value.Get[int](ctx.Dependency("a").Value()); x != nil {
		sum += *x
	}
	if y := value.Get[int](ctx.Dependency("b").Value()); y != nil {
		sum += *y
	}
	ctx.Emit("out").Set(value.Assign(sum))
	return nil
}

// passProc forwards its single dependency unchanged.
type passProc struct {
	engine.NoopProcessor
}

func (p *passProc) Process(ctx *engine.Context) error {
	return ctx.Emit("out").Forward(ctx.Dependency("in"))
}

func intType() reflect.Type  { return reflect.TypeOf(0) }
func boolType() reflect.Type { return reflect.TypeOf(false) }

func TestAddTwoConstants(t *testing.T) {
	b := NewBuilder("sum")
	b.AddVertex("c1", &constProc{v: 2}, nil).Emit("out", intType()).Trivial()
	b.AddVertex("c2", &constProc{v: 3}, nil).Emit("out", intType()).Trivial()
	b.AddVertex("add", &addProc{}, nil).
		Emit("out", intType()).
		Dependency("a", "c1.out", false, engine.EssentialOptional).
		Dependency("b", "c2.out", false, engine.EssentialOptional).
		Trivial()

	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	target := g.Data("add.out")
	cl := g.Run(target)
	cl.Wait()

	if code := cl.Get(); code != engine.CodeOK {
		t.Fatalf("expected CodeOK, got %d", code)
	}
	got := value.Get[int](target.Value())
	if got == nil || *got != 5 {
		t.Fatalf("expected 5, got %v", got)
	}
}

func TestForwardPreservesIdentity(t *testing.T) {
	b := NewBuilder("fwd")
	b.AddVertex("src", &constProc{v: 7}, nil).Emit("out", intType()).Trivial()
	b.AddVertex("mid", &passProc{}, nil).
		Emit("out", intType()).
		Dependency("in", "src.out", false, engine.EssentialOptional).
		Trivial()

	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	target := g.Data("mid.out")
	g.Run(target).Wait()

	src := g.Data("src.out")
	if !value.SameDescriptor(src.Value(), target.Value()) {
		t.Errorf("expected forwarded value to share descriptor identity")
	}
	got := value.Get[int](target.Value())
	if got == nil || *got != 7 {
		t.Fatalf("expected 7, got %v", got)
	}
}

func TestEssentialSkipFlushesEmpty(t *testing.T) {
	b := NewBuilder("skip")
	b.AddVertex("maybe", &constProc{empty: true}, nil).Emit("out", intType()).Trivial()
	b.AddVertex("consumer", &addProc{}, nil).
		Emit("out", intType()).
		Dependency("a", "maybe.out", false, engine.EssentialSkip).
		Dependency("b", "maybe.out", false, engine.EssentialOptional).
		Trivial()

	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	target := g.Data("consumer.out")
	cl := g.Run(target)
	cl.Wait()

	if code := cl.Get(); code != engine.CodeOK {
		t.Fatalf("expected CodeOK, got %d", code)
	}
	if !target.Empty() {
		t.Errorf("expected skipped vertex to flush an empty emit")
	}
}

func TestEssentialFailFailsRun(t *testing.T) {
	b := NewBuilder("fail")
	b.AddVertex("maybe", &constProc{empty: true}, nil).Emit("out", intType()).Trivial()
	b.AddVertex("consumer", &addProc{}, nil).
		Emit("out", intType()).
		Dependency("a", "maybe.out", false, engine.EssentialFail).
		Trivial()

	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	target := g.Data("consumer.out")
	cl := g.Run(target)

	if code := cl.Get(); code != engine.CodeEssentialFailed {
		t.Fatalf("expected CodeEssentialFailed, got %d", code)
	}
}

func TestConditionalDependencyOn(t *testing.T) {
	for _, condValue := range []bool{true, false} {
		b := NewBuilder("cond")
		b.AddVertex("flag", &boolProc{v: condValue}, nil).Emit("out", boolType()).Trivial()
		b.AddVertex("val", &constProc{v: 42}, nil).Emit("out", intType()).Trivial()
		b.AddVertex("consumer", &passProc{}, nil).
			Emit("out", intType()).
			Dependency("in", "val.out", false, engine.EssentialOptional).On("flag.out")

		g, err := b.Build()
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		target := g.Data("consumer.out")
		g.Run(target).Wait()

		got := value.Get[int](target.Value())
		if condValue {
			if got == nil || *got != 42 {
				t.Errorf("condValue=true: expected 42, got %v", got)
			}
		} else {
			if got != nil {
				t.Errorf("condValue=false: expected dependency treated as empty, got %v", got)
			}
		}
	}
}

// resettingProc counts how many times Reset was called against it.
type resettingProc struct {
	engine.NoopProcessor
	resets int
}

func (r *resettingProc) Process(ctx *engine.Context) error {
	ctx.Emit("out").Set(value.Assign(1))
	return nil
}

func (r *resettingProc) Reset(ctx *engine.Context) error {
	r.resets++
	return nil
}

func TestGraphResetCallsProcessorReset(t *testing.T) {
	proc := &resettingProc{}
	b := NewBuilder("reset-hook")
	b.AddVertex("p", proc, nil).Emit("out", intType()).Trivial()
	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	target := g.Data("p.out")

	g.Run(target).Wait()
	g.Reset()
	if proc.resets != 1 {
		t.Fatalf("expected Reset called once, got %d", proc.resets)
	}

	g.Run(target).Wait()
	g.Reset()
	if proc.resets != 2 {
		t.Fatalf("expected Reset called twice total, got %d", proc.resets)
	}
}

func TestStalledRunAuditsAndReportsNoProducer(t *testing.T) {
	var lines []string
	b := NewBuilder("stall")
	b.SetLogf(func(format string, args ...interface{}) { lines = append(lines, fmt.Sprintf(format, args...)) })
	// "in.value" is declared as an external input with no vertex ever
	// emitting it and never Preset before Run: the minimal stall case.
	b.DeclareInput("in.value", intType())

	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	target := g.Data("in.value")

	cl := g.Run(target)
	if code := cl.Get(); code != engine.CodeStalled {
		t.Fatalf("expected CodeStalled, got %d", code)
	}
	cl.Wait()

	found := false
	for _, l := range lines {
		if strings.Contains(l, "in.value") && strings.Contains(l, "no producer") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected stall audit to log in.value with no producer, got: %v", lines)
	}
}

func TestStalledRunAuditsBlockedChain(t *testing.T) {
	var lines []string
	b := NewBuilder("stallchain")
	b.SetLogf(func(format string, args ...interface{}) { lines = append(lines, fmt.Sprintf(format, args...)) })
	// "root" depends on the external input "ext.in", which is declared but
	// never Preset, so root never becomes invokable; "mid" depends on
	// root's output and is blocked in turn. The audit should walk from the
	// requested target ("mid.out") through root.out to the true break,
	// ext.in.
	b.DeclareInput("ext.in", intType())
	b.AddVertex("root", &passProc{}, nil).
		Emit("out", intType()).
		Dependency("in", "ext.in", false, engine.EssentialOptional).
		Trivial()
	b.AddVertex("mid", &passProc{}, nil).
		Emit("out", intType()).
		Dependency("in", "root.out", false, engine.EssentialOptional).
		Trivial()

	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	target := g.Data("mid.out")
	cl := g.Run(target)
	if code := cl.Get(); code != engine.CodeStalled {
		t.Fatalf("expected CodeStalled, got %d", code)
	}
	cl.Wait()

	found := false
	for _, l := range lines {
		if strings.Contains(l, "ext.in") && strings.Contains(l, "no producer") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected stall audit to walk upstream to ext.in, got: %v", lines)
	}
}

func TestRunIDIsUniquePerRun(t *testing.T) {
	b := NewBuilder("runid")
	b.AddVertex("c1", &constProc{v: 1}, nil).Emit("out", intType()).Trivial()
	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	target := g.Data("c1.out")

	cl1 := g.Run(target)
	cl1.Wait()
	id1 := cl1.RunID()
	if id1 == "" {
		t.Fatalf("expected a non-empty run id")
	}

	g.Reset()
	cl2 := g.Run(target)
	cl2.Wait()
	id2 := cl2.RunID()

	if id1 == id2 {
		t.Errorf("expected distinct run ids across runs, got %q twice", id1)
	}
}

func TestResetAllowsSecondRun(t *testing.T) {
	b := NewBuilder("reruns")
	b.AddVertex("c1", &constProc{v: 2}, nil).Emit("out", intType()).Trivial()
	b.AddVertex("c2", &constProc{v: 3}, nil).Emit("out", intType()).Trivial()
	b.AddVertex("add", &addProc{}, nil).
		Emit("out", intType()).
		Dependency("a", "c1.out", false, engine.EssentialOptional).
		Dependency("b", "c2.out", false, engine.EssentialOptional).
		Trivial()

	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	target := g.Data("add.out")

	g.Run(target).Wait()
	if got := value.Get[int](target.Value()); got == nil || *got != 5 {
		t.Fatalf("first run: expected 5, got %v", got)
	}

	g.Reset()
	g.Run(target).Wait()
	if got := value.Get[int](target.Value()); got == nil || *got != 5 {
		t.Fatalf("second run: expected 5, got %v", got)
	}
}
