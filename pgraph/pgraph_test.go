package pgraph

import "testing"

type testVertex string

func (t testVertex) String() string { return string(t) }

func TestAddEdgeVertex(t *testing.T) {
	g := NewGraph("t")
	a, b := testVertex("a"), testVertex("b")
	g.AddEdge(a, b, NewEdge("e1"))

	if g.NumVertices() != 2 {
		t.Errorf("expected 2 vertices, got %d", g.NumVertices())
	}
	if g.NumEdges() != 1 {
		t.Errorf("expected 1 edge, got %d", g.NumEdges())
	}
	if !g.HasVertex(a) || !g.HasVertex(b) {
		t.Errorf("expected both vertices present")
	}
}

func TestDeleteVertex(t *testing.T) {
	g := NewGraph("t")
	a, b := testVertex("a"), testVertex("b")
	g.AddEdge(a, b, NewEdge("e1"))
	g.DeleteVertex(b)

	if g.HasVertex(b) {
		t.Errorf("expected b removed")
	}
	if g.NumEdges() != 0 {
		t.Errorf("expected dangling edge removed, got %d edges", g.NumEdges())
	}
}

func TestTopologicalSort(t *testing.T) {
	g := NewGraph("t")
	a, b, c := testVertex("a"), testVertex("b"), testVertex("c")
	g.AddEdge(a, b, NewEdge(""))
	g.AddEdge(b, c, NewEdge(""))

	order, ok := g.TopologicalSort()
	if !ok {
		t.Fatalf("expected acyclic graph to sort")
	}
	pos := map[Vertex]int{}
	for i, v := range order {
		pos[v] = i
	}
	if pos[a] > pos[b] || pos[b] > pos[c] {
		t.Errorf("expected order a,b,c got %v", order)
	}
}

func TestTopologicalSortCycle(t *testing.T) {
	g := NewGraph("t")
	a, b := testVertex("a"), testVertex("b")
	g.AddEdge(a, b, NewEdge(""))
	g.AddEdge(b, a, NewEdge(""))

	_, ok := g.TopologicalSort()
	if ok {
		t.Errorf("expected cycle to be detected")
	}
}

func TestReversePath(t *testing.T) {
	g := NewGraph("t")
	a, b, c, d := testVertex("a"), testVertex("b"), testVertex("c"), testVertex("d")
	g.AddEdge(a, b, NewEdge(""))
	g.AddEdge(b, c, NewEdge(""))
	g.AddVertex(d) // disconnected

	active := g.ReversePath([]Vertex{c})
	if !active[a] || !active[b] || !active[c] {
		t.Errorf("expected a,b,c active, got %v", active)
	}
	if active[d] {
		t.Errorf("expected d inactive")
	}
}

func TestReachabilityIdentity(t *testing.T) {
	g := NewGraph("t")
	a := testVertex("a")
	g.AddVertex(a)
	path := g.Reachability(a, a)
	if len(path) != 1 || path[0] != a {
		t.Errorf("expected path of just a, got %v", path)
	}
}

func TestReachabilityUnreachable(t *testing.T) {
	g := NewGraph("t")
	a, b := testVertex("a"), testVertex("b")
	g.AddVertex(a)
	g.AddVertex(b)
	if path := g.Reachability(a, b); path != nil {
		t.Errorf("expected nil path, got %v", path)
	}
}
