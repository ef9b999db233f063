// Package yamlgraph loads a graph.Builder description from YAML, the same
// role purpleidea/mgmt's yamlgraph package plays for a convergent resource
// graph: a declarative format a host program can accept from a config file
// or a remote control plane instead of wiring graph.Builder calls in Go.
//
// Processor kinds are resolved through a small registry (Register) instead
// of mgmt's reflect-driven Resources struct, since anyflow operators are
// arbitrary third-party engine.Processor implementations rather than a
// fixed, closed set of built-in resource kinds.
package yamlgraph

import (
	"io/ioutil"

	"github.com/baidu/anyflow/engine"
	"github.com/baidu/anyflow/engine/graph"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Factory constructs a fresh engine.Processor instance for one vertex kind.
type Factory func() engine.Processor

var registry = map[string]Factory{}

// Register associates kind with a Factory, so GraphConfig.Build can
// instantiate a processor for every vertex declared with that kind.
// Typically called from an init() in the package defining the operator.
func Register(kind string, f Factory) {
	registry[kind] = f
}

// DependencyConfig describes one edge in GraphConfig's YAML form.
type DependencyConfig struct {
	Field     string `yaml:"field"`
	Source    string `yaml:"source"`
	Mutable   bool   `yaml:"mutable"`
	Essential string `yaml:"essential"` // "optional" (default), "skip", "fail"
	On        string `yaml:"on"`
	Unless    string `yaml:"unless"`
}

// EmitConfig describes one output slot.
type EmitConfig struct {
	Field string `yaml:"field"`
}

// VertexConfig describes one operator instance.
type VertexConfig struct {
	Name         string             `yaml:"name"`
	Kind         string             `yaml:"kind"`
	Trivial      bool               `yaml:"trivial"`
	Option       interface{}        `yaml:"option"`
	Emits        []EmitConfig       `yaml:"emits"`
	Dependencies []DependencyConfig `yaml:"dependencies"`
}

// GraphConfig is the top-level YAML document: a named graph and its
// vertices. Grounded on mgmt's GraphConfig (graph name + a flat resource
// list + edges), flattened here since dependencies are declared inline on
// the consuming vertex rather than as a separate edge list — anyflow edges
// always name a (field, source) pair, which reads more naturally attached
// to the vertex that owns the field.
type GraphConfig struct {
	Graph    string         `yaml:"graph"`
	Vertices []VertexConfig `yaml:"vertices"`

	logf func(string, ...interface{})
}

// SetLogf installs the logging function the built Graph (and every vertex's
// Context) uses. Optional; a nil logf is the Graph/Vertex default of
// discarding log calls.
func (c *GraphConfig) SetLogf(logf func(string, ...interface{})) {
	c.logf = logf
}

// Parse unmarshals data into c and checks the minimal required fields.
func (c *GraphConfig) Parse(data []byte) error {
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrap(err, "yamlgraph: parse")
	}
	if c.Graph == "" {
		return errors.New("yamlgraph: graph config missing `graph` name")
	}
	return nil
}

// Load reads and parses path.
func Load(path string) (*GraphConfig, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "yamlgraph: read")
	}
	c := &GraphConfig{}
	if err := c.Parse(data); err != nil {
		return nil, err
	}
	return c, nil
}

// Build translates c into a runnable *graph.Graph using the package-level
// operator registry to resolve each vertex's Kind.
func (c *GraphConfig) Build() (*graph.Graph, error) {
	b := graph.NewBuilder(c.Graph)
	if c.logf != nil {
		b.SetLogf(c.logf)
	}
	for _, vc := range c.Vertices {
		factory, ok := registry[vc.Kind]
		if !ok {
			return nil, errors.Errorf("yamlgraph: vertex %q: unregistered kind %q", vc.Name, vc.Kind)
		}
		vb := b.AddVertex(vc.Name, factory(), vc.Option)
		for _, e := range vc.Emits {
			vb.Emit(e.Field, nil)
		}
		for _, d := range vc.Dependencies {
			vb.Dependency(d.Field, d.Source, d.Mutable, essentialFromString(d.Essential))
			switch {
			case d.On != "":
				vb.On(d.On)
			case d.Unless != "":
				vb.Unless(d.Unless)
			}
		}
		if vc.Trivial {
			vb.Trivial()
		}
	}
	return b.Build()
}

func essentialFromString(s string) engine.Essential {
	switch s {
	case "skip":
		return engine.EssentialSkip
	case "fail":
		return engine.EssentialFail
	default:
		return engine.EssentialOptional
	}
}
