package ops

import (
	"reflect"
	"testing"

	"github.com/baidu/anyflow/arena"
	"github.com/baidu/anyflow/engine"
	"github.com/baidu/anyflow/engine/graph"
	"github.com/baidu/anyflow/value"
)

func TestAliasForwards(t *testing.T) {
	b := graph.NewBuilder("alias")
	b.AddVertex("c", &Const{}, value.Assign(9)).Emit("out", reflect.TypeOf(0)).Trivial()
	b.AddVertex("a", &Alias{}, nil).
		Emit("out", reflect.TypeOf(0)).
		Dependency("in", "c.out", false, engine.EssentialOptional).
		Trivial()

	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	target := g.Data("a.out")
	g.Run(target).Wait()

	got := value.Get[int](target.Value())
	if got == nil || *got != 9 {
		t.Fatalf("expected 9, got %v", got)
	}
}

// TestExprUsesArena exercises Context.Arena, arming a destructor through
// arena.CreateObject and checking it runs once the graph resets.
func TestExprUsesArena(t *testing.T) {
	type scratch struct{ closed bool }
	var captured *scratch

	b := graph.NewBuilder("arena")
	b.AddVertex("e", &Expr{Func: func(ctx *engine.Context) error {
		s := arena.CreateObject[scratch](ctx.Arena, nil)
		captured = s
		ctx.Arena.RegisterDestructor(func() { s.closed = true })
		ctx.Emit("out").Set(value.Assign(1))
		return nil
	}}, nil).Emit("out", reflect.TypeOf(0)).Trivial()

	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	target := g.Data("e.out")
	g.Run(target).Wait()

	if captured == nil || captured.closed {
		t.Fatalf("expected destructor not yet run mid-graph-lifetime")
	}
	g.Reset()
	if !captured.closed {
		t.Errorf("expected arena Reset to run the registered destructor")
	}
}

func TestSelectPicksEstablishedBranch(t *testing.T) {
	for _, cond := range []bool{true, false} {
		b := graph.NewBuilder("select")
		b.AddVertex("flag", &Const{}, value.Assign(cond)).Emit("out", reflect.TypeOf(false)).Trivial()
		b.AddVertex("a", &Const{}, value.Assign(1)).Emit("out", reflect.TypeOf(0)).Trivial()
		b.AddVertex("b", &Const{}, value.Assign(2)).Emit("out", reflect.TypeOf(0)).Trivial()
		b.AddVertex("pick", &Select{}, nil).
			Emit("out", reflect.TypeOf(0)).
			Dependency("a", "a.out", false, engine.EssentialOptional).On("flag.out").
			Dependency("b", "b.out", false, engine.EssentialOptional).Unless("flag.out").
			Trivial()

		g, err := b.Build()
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		target := g.Data("pick.out")
		g.Run(target).Wait()

		got := value.Get[int](target.Value())
		want := 2
		if cond {
			want = 1
		}
		if got == nil || *got != want {
			t.Errorf("cond=%v: expected %d, got %v", cond, want, got)
		}
	}
}
