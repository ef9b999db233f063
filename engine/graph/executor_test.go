package graph

import (
	"testing"

	"golang.org/x/time/rate"

	"github.com/baidu/anyflow/engine"
	"github.com/baidu/anyflow/value"
)

func TestPoolExecutorRunsNonTrivialVertex(t *testing.T) {
	b := NewBuilder("pooled")
	b.AddVertex("c1", &constProc{v: 2}, nil).Emit("out", intType()).Trivial()
	b.AddVertex("c2", &constProc{v: 3}, nil).Emit("out", intType()).Trivial()
	// No .Trivial(): add runs through the Executor, not inline.
	b.AddVertex("add", &addProc{}, nil).
		Emit("out", intType()).
		Dependency("a", "c1.out", false, engine.EssentialOptional).
		Dependency("b", "c2.out", false, engine.EssentialOptional)

	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	pool := NewPoolExecutor(2, rate.NewLimiter(rate.Inf, 1))
	g.SetExecutor(pool)

	target := g.Data("add.out")
	cl := g.Run(target)
	cl.Wait()
	pool.Wait()

	if code := cl.Get(); code != engine.CodeOK {
		t.Fatalf("expected CodeOK, got %d", code)
	}
	got := value.Get[int](target.Value())
	if got == nil || *got != 5 {
		t.Fatalf("expected 5, got %v", got)
	}
}

func TestPoolExecutorCloseFallsBackInline(t *testing.T) {
	pool := NewPoolExecutor(1, nil)
	pool.Close()

	ran := make(chan struct{})
	pool.Run(func() { close(ran) })

	select {
	case <-ran:
	default:
		t.Fatalf("expected fn to run inline once pool is closed")
	}
}
