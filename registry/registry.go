// Package registry holds the node type catalog and the palette the editor
// offers when adding nodes.
package registry

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/meikuraledutech/hookgraph"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultCatalog []byte

// Context is what palette entries see when deciding availability and
// initial data.
type Context struct {
	Env   map[string]string
	Graph *hookgraph.Graph
}

// Entry is a palette item. Enabled and Data override the static
// RequiresEnv and Defaults when set.
type Entry struct {
	Type        string         `yaml:"type"`
	Label       string         `yaml:"label"`
	Icon        string         `yaml:"icon"`
	Defaults    map[string]any `yaml:"defaults"`
	RequiresEnv []string       `yaml:"requires_env"`

	Enabled func(Context) bool           `yaml:"-"`
	Data    func(Context) map[string]any `yaml:"-"`
}

// IsEnabled reports whether the entry is offered in ctx.
func (e Entry) IsEnabled(ctx Context) bool {
	if e.Enabled != nil {
		return e.Enabled(ctx)
	}
	for _, key := range e.RequiresEnv {
		if ctx.Env[key] == "" {
			return false
		}
	}
	return true
}

// InitialData returns the data a new node picked from this entry starts with.
func (e Entry) InitialData(ctx Context) map[string]any {
	if e.Data != nil {
		if d := e.Data(ctx); d != nil {
			return d
		}
		return map[string]any{}
	}
	out := make(map[string]any, len(e.Defaults))
	for k, v := range e.Defaults {
		out[k] = v
	}
	return out
}

func (e Entry) matches(query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(e.Label), q) ||
		strings.Contains(strings.ToLower(e.Type), q)
}

// Item is a palette entry together with whether it can be added right now.
// Err carries the rejection reason when it cannot.
type Item struct {
	Entry
	Err error
}

// Registry is a node type catalog. It is not safe to Register concurrently
// with lookups.
type Registry struct {
	types   map[string]hookgraph.NodeTypeMeta
	palette []Entry
}

type catalog struct {
	Types   []hookgraph.NodeTypeMeta `yaml:"types"`
	Palette []Entry                  `yaml:"palette"`
}

// New creates a registry from node types and palette entries.
func New(types []hookgraph.NodeTypeMeta, palette []Entry) *Registry {
	r := &Registry{types: make(map[string]hookgraph.NodeTypeMeta, len(types))}
	for _, t := range types {
		r.Register(t)
	}
	r.palette = append(r.palette, palette...)
	return r
}

// Parse reads a YAML catalog.
func Parse(b []byte) (*Registry, error) {
	var c catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("registry: parse catalog: %w", err)
	}
	for i, t := range c.Types {
		if t.Type == "" {
			return nil, fmt.Errorf("registry: type #%d has no name", i)
		}
	}
	return New(c.Types, c.Palette), nil
}

// Load reads a YAML catalog from path.
func Load(path string) (*Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	return Parse(b)
}

// Default returns the built-in catalog.
func Default() *Registry {
	r, err := Parse(defaultCatalog)
	if err != nil {
		panic(err)
	}
	return r
}

// Register adds or replaces a node type.
func (r *Registry) Register(meta hookgraph.NodeTypeMeta) {
	r.types[meta.Type] = meta
}

// Lookup implements hookgraph.Registry.
func (r *Registry) Lookup(nodeType string) (hookgraph.NodeTypeMeta, bool) {
	meta, ok := r.types[nodeType]
	return meta, ok
}

// Types returns all node types sorted by type name.
func (r *Registry) Types() []hookgraph.NodeTypeMeta {
	out := make([]hookgraph.NodeTypeMeta, 0, len(r.types))
	for _, t := range r.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// Entry returns the palette entry for nodeType.
func (r *Registry) Entry(nodeType string) (Entry, bool) {
	for _, e := range r.palette {
		if e.Type == nodeType {
			return e, true
		}
	}
	return Entry{}, false
}

// Palette lists the enabled entries matching query, in catalog order, each
// with its instance-cap verdict against nodes.
func (r *Registry) Palette(ctx Context, query string, nodes []hookgraph.Node) []Item {
	items := []Item{}
	for _, e := range r.palette {
		if !e.IsEnabled(ctx) || !e.matches(query) {
			continue
		}
		items = append(items, Item{Entry: e, Err: hookgraph.CanAddNode(r, e.Type, nodes)})
	}
	return items
}
