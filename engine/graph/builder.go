package graph

import (
	"fmt"
	"reflect"

	"github.com/baidu/anyflow/arena"
	"github.com/baidu/anyflow/engine"
	"github.com/baidu/anyflow/pgraph"
	"github.com/baidu/anyflow/util/errwrap"
	"github.com/pkg/errors"
)

// Builder assembles a Graph from named vertex/edge descriptions,
// corresponding to the spec's GraphBuilder: a symbol table keyed by name,
// validated and wired into dense Vertex/Data objects on Build. Grounded on
// mgmt's engine.go Load/Validate/Commit staging (parse everything first,
// only wire pointers up once every name is known to resolve).
type Builder struct {
	name    string
	logf    func(string, ...interface{})
	specs   []*vertexSpec
	byName  map[string]*vertexSpec
	dataset map[string]*Data
	inputs  []emitSpec
	err     error
}

// vertexSpec is the not-yet-wired description of one Vertex, accumulated by
// VertexBuilder and resolved by Build.
type vertexSpec struct {
	name      string
	processor engine.Processor
	rawOption interface{}
	deps      []depSpec
	emits     []emitSpec
	trivial   bool

	vertex *Vertex
}

type depSpec struct {
	field     string
	target    string
	condition string
	on        bool
	mutable   bool
	essential engine.Essential
}

// mutableDepRef is the subset of a depSpec the mutability-conflict check
// needs, named for error reporting.
type mutableDepRef struct {
	vertex    string
	field     string
	condition string
	on        bool
}

// disjoint reports whether a and b can be statically proven to never both
// be established in the same run: the only provable case is the same
// condition slot declared with opposite polarity.
func disjoint(a, b mutableDepRef) bool {
	return a.condition != "" && a.condition == b.condition && a.on != b.on
}

type emitSpec struct {
	field string
	name  string
	typ   reflect.Type
}

// NewBuilder starts a new graph description named name.
func NewBuilder(name string) *Builder {
	return &Builder{
		name:    name,
		byName:  map[string]*vertexSpec{},
		dataset: map[string]*Data{},
	}
}

// SetLogf installs the logging function the built Graph (and every
// Context its vertices receive) will use.
func (b *Builder) SetLogf(logf func(string, ...interface{})) *Builder {
	b.logf = logf
	return b
}

// DeclareInput pre-registers a producer-less Data slot named name, typed
// typ. Unlike an Emit, no vertex ever commits it, and Data.Preset does not
// make a slot ready, so the slot never becomes ready during a run: a
// dependency on it never resolves and a run that needs it stalls. Grounded
// on the spec's external collaborator contract: "external code passes
// references in via preset()" describes a value binding that exists
// independent of any producing vertex.
func (b *Builder) DeclareInput(name string, typ reflect.Type) *Builder {
	b.inputs = append(b.inputs, emitSpec{field: name, name: name, typ: typ})
	return b
}

// AddVertex starts describing a new vertex named name, running processor.
// rawOption is passed through Processor.Config at Build time. Returns a
// VertexBuilder to declare its dependencies and emits; errors are
// accumulated and only surfaced from Build, mirroring mgmt's Load-then-
// Validate-then-Commit staging so callers can chain calls without checking
// an error after every one.
func (b *Builder) AddVertex(name string, processor engine.Processor, rawOption interface{}) *VertexBuilder {
	if _, exists := b.byName[name]; exists {
		b.fail(errors.Errorf("duplicate vertex name %q", name))
		return &VertexBuilder{b: b}
	}
	spec := &vertexSpec{name: name, processor: processor, rawOption: rawOption}
	b.specs = append(b.specs, spec)
	b.byName[name] = spec
	return &VertexBuilder{b: b, spec: spec}
}

func (b *Builder) fail(err error) {
	b.err = errwrap.Append(b.err, err)
}

// VertexBuilder declares one vertex's dependencies and emits. Every data
// slot is identified by a (vertex name, emit name) pair written as
// "vertex.emit"; Dependency(field, "vertex.emit") resolves it at Build
// time, once every vertex has been added.
type VertexBuilder struct {
	b    *Builder
	spec *vertexSpec
}

// Emit declares an output slot named name, typed typ (nil for untyped).
func (vb *VertexBuilder) Emit(name string, typ reflect.Type) *VertexBuilder {
	if vb.spec == nil {
		return vb
	}
	vb.spec.emits = append(vb.spec.emits, emitSpec{field: name, name: name, typ: typ})
	return vb
}

// Dependency declares a required input slot named field, reading source
// (formatted "vertex.emit"). essential controls how this vertex reacts if
// source resolves empty.
func (vb *VertexBuilder) Dependency(field, source string, mutable bool, essential engine.Essential) *VertexBuilder {
	if vb.spec == nil {
		return vb
	}
	vb.spec.deps = append(vb.spec.deps, depSpec{field: field, target: source, mutable: mutable, essential: essential})
	return vb
}

// On declares the most recently added dependency as conditional: it is
// only established once condition's boolean value is true.
func (vb *VertexBuilder) On(condition string) *VertexBuilder {
	return vb.condition(condition, true)
}

// Unless is the negated counterpart to On.
func (vb *VertexBuilder) Unless(condition string) *VertexBuilder {
	return vb.condition(condition, false)
}

func (vb *VertexBuilder) condition(condition string, on bool) *VertexBuilder {
	if vb.spec == nil {
		return vb // AddVertex already recorded why this vertex has no spec
	}
	if len(vb.spec.deps) == 0 {
		vb.b.fail(errors.Errorf("vertex %q: On/Unless with no preceding Dependency", vb.spec.name))
		return vb
	}
	last := &vb.spec.deps[len(vb.spec.deps)-1]
	last.condition = condition
	last.on = on
	return vb
}

// Trivial marks the vertex eligible for inline dispatch (see
// Vertex.SetTrivial).
func (vb *VertexBuilder) Trivial() *VertexBuilder {
	if vb.spec != nil {
		vb.spec.trivial = true
	}
	return vb
}

// Build resolves every name, wires Vertex/Dependency/Data objects together,
// and returns the assembled Graph. It enforces that every vertex producing
// a slot with more than one producer is treated as non-trivial
// (the spec's multi-producer forces non-trivial rule), since more than one
// producer committing a would-be single-shot slot across different run
// phases can't be safely inlined into a chain the way a single producer
// can.
func (b *Builder) Build() (*Graph, error) {
	if b.err != nil {
		return nil, b.err
	}

	g := &Graph{
		name:     b.name,
		data:     map[string]*Data{},
		executor: InlineExecutor{},
		arena:    arena.New(),
		logf:     b.logf,
		pg:       pgraph.NewGraph(b.name),
	}

	// Pass 1: create every Data slot (by vertex.emit) and every Vertex,
	// so cross-references resolve regardless of declaration order.
	for _, spec := range b.specs {
		v := &Vertex{
			name:        spec.name,
			processor:   spec.processor,
			trivial:     spec.trivial,
			depsByName:  map[string]*Dependency{},
			emitsByName: map[string]*Data{},
			g:           g,
		}
		spec.vertex = v
		g.vertices = append(g.vertices, v)
		g.pg.AddVertex(v)

		for _, e := range spec.emits {
			key := spec.name + "." + e.name
			d := NewData(key, e.typ)
			g.data[key] = d
			v.addEmit(d)
			v.emitsByName[e.field] = d
		}
	}

	// Pass 1.5: register declared external inputs as producer-less Data
	// slots, so Pass 3 can resolve dependencies against them without any
	// vertex having emitted them.
	for _, in := range b.inputs {
		if _, exists := g.data[in.name]; exists {
			b.fail(errors.Errorf("input %q collides with an existing slot", in.name))
			continue
		}
		g.data[in.name] = NewData(in.name, in.typ)
	}

	// Pass 2: count producers per slot, to decide trivial eligibility.
	producerCount := map[string]int{}
	for _, spec := range b.specs {
		for _, e := range spec.emits {
			producerCount[spec.name+"."+e.name]++
		}
	}

	// Pass 2.5: static mutability-conflict check (P7 / the build-time half
	// of Scenario S3). Two dependencies that both declare mutable against
	// the same target slot are only safe together if their conditions are
	// provably disjoint — the only case Build can prove statically is the
	// same condition slot declared with opposite polarity (On vs Unless);
	// anything else (including either side being unconditional) might both
	// be established in the same run, which would otherwise only surface
	// as a runtime I2 violation (CodeMutabilityConflict) instead of a
	// build-time error.
	mutableDeps := map[string][]mutableDepRef{}
	for _, spec := range b.specs {
		for _, ds := range spec.deps {
			if !ds.mutable {
				continue
			}
			mutableDeps[ds.target] = append(mutableDeps[ds.target], mutableDepRef{
				vertex:    spec.name,
				field:     ds.field,
				condition: ds.condition,
				on:        ds.on,
			})
		}
	}
	for target, refs := range mutableDeps {
		for i := 0; i < len(refs); i++ {
			for j := i + 1; j < len(refs); j++ {
				if disjoint(refs[i], refs[j]) {
					continue
				}
				b.fail(errors.Errorf(
					"vertex %q dependency %q and vertex %q dependency %q both declare mutable on slot %q without disjoint conditions",
					refs[i].vertex, refs[i].field, refs[j].vertex, refs[j].field, target,
				))
			}
		}
	}

	// Pass 3: resolve dependencies, condition edges, and wire emit
	// producer lists. Unresolvable names are accumulated via b.fail
	// rather than aborting, so Build reports every broken reference in
	// one pass instead of one at a time across repeated attempts.
	for _, spec := range b.specs {
		v := spec.vertex
		for _, ds := range spec.deps {
			target, ok := g.data[ds.target]
			if !ok {
				b.fail(errors.Errorf("vertex %q: dependency %q refers to unknown slot %q", spec.name, ds.field, ds.target))
				continue
			}
			var cond *Data
			if ds.condition != "" {
				cond, ok = g.data[ds.condition]
				if !ok {
					b.fail(errors.Errorf("vertex %q: condition %q refers to unknown slot %q", spec.name, ds.field, ds.condition))
					continue
				}
			}
			dep := &Dependency{
				Consumer:  v,
				Target:    target,
				Condition: cond,
				On:        ds.on,
				Mutable:   ds.mutable,
				Essential: ds.essential,
			}
			v.addDependency(dep)
			v.depsByName[ds.field] = dep
			target.addSuccessor(dep)
			if cond != nil {
				cond.addSuccessor(dep)
			}
			// A declared input has no vertex to draw an edge from; skip
			// it rather than wire in a nil producer (g.byProducerName
			// returns nil when ds.target names no known vertex).
			producerVertex, producerEmit := splitSlotName(ds.target)
			if pv := g.byProducerName(producerVertex, producerEmit); pv != nil {
				g.pg.AddEdge(pv, v, pgraph.NewEdge(ds.field))
			}
		}
		for _, e := range spec.emits {
			key := spec.name + "." + e.name
			if producerCount[key] > 1 {
				v.trivial = false
			}
		}
	}

	if b.err != nil {
		return nil, b.err
	}

	// Pass 4: run Config/Setup for every processor now that the Vertex
	// and its Dependency/Data objects exist and can be referenced from
	// Context closures.
	for _, spec := range b.specs {
		opt, err := spec.processor.Config(spec.rawOption)
		if err != nil {
			b.fail(errors.Wrapf(err, "vertex %q: Config", spec.name))
			continue
		}
		spec.vertex.option = opt
		if err := spec.processor.Setup(spec.vertex.context(nil)); err != nil {
			b.fail(errors.Wrapf(err, "vertex %q: Setup", spec.name))
		}
	}

	if b.err != nil {
		return nil, b.err
	}
	return g, nil
}

func splitSlotName(key string) (vertex, emit string) {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '.' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}

func (g *Graph) byProducerName(vertexName, _ string) *Vertex {
	for _, v := range g.vertices {
		if v.name == vertexName {
			return v
		}
	}
	return nil
}

// String renders the underlying dependency graph for debugging, delegating
// to pgraph.Graph.
func (g *Graph) String() string {
	if g.pg == nil {
		return fmt.Sprintf("graph(%s)", g.name)
	}
	return g.pg.String()
}
