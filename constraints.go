package hookgraph

import "fmt"

// Kind classifies node types.
type Kind string

const (
	KindTrigger   Kind = "trigger"
	KindFormatter Kind = "formatter"
	KindAction    Kind = "action"
)

// DefaultInputKey is the input port assumed when an edge names no target handle.
const DefaultInputKey = "in"

// InputSpec describes an input port. MaxConnections <= 0 means unlimited.
type InputSpec struct {
	Key            string `json:"key" yaml:"key"`
	Label          string `json:"label" yaml:"label"`
	MaxConnections int    `json:"maxConnections,omitempty" yaml:"max_connections"`
}

// NodeTypeMeta is the registry's description of a node type.
// MaxPerGraph <= 0 means no instance cap.
type NodeTypeMeta struct {
	Type        string      `json:"type" yaml:"type"`
	Label       string      `json:"label" yaml:"label"`
	Icon        string      `json:"icon,omitempty" yaml:"icon"`
	Kind        Kind        `json:"kind" yaml:"kind"`
	MaxPerGraph int         `json:"maxPerGraph,omitempty" yaml:"max_per_graph"`
	Inputs      []InputSpec `json:"inputs,omitempty" yaml:"inputs"`
	Outputs     []string    `json:"outputs,omitempty" yaml:"outputs"`
}

// Input returns the input spec for key.
func (m NodeTypeMeta) Input(key string) (InputSpec, bool) {
	for _, in := range m.Inputs {
		if in.Key == key {
			return in, true
		}
	}
	return InputSpec{}, false
}

// Registry supplies node type metadata.
type Registry interface {
	Lookup(nodeType string) (NodeTypeMeta, bool)
}

// ValidationError is a constraint rejection. It is reported to the caller
// that attempted the change and leaves the graph untouched.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func rejectf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// CountByType returns the number of nodes per type.
func CountByType(nodes []Node) map[string]int {
	counts := make(map[string]int)
	for _, n := range nodes {
		counts[n.Type]++
	}
	return counts
}

// CanAddNode reports whether another node of nodeType fits under the type's
// instance cap.
func CanAddNode(reg Registry, nodeType string, nodes []Node) error {
	meta, ok := lookup(reg, nodeType)
	if !ok || meta.MaxPerGraph <= 0 {
		return nil
	}
	current := 0
	for _, n := range nodes {
		if n.Type == nodeType {
			current++
		}
	}
	if current >= meta.MaxPerGraph {
		return rejectf("Limit reached: only %d %s %s allowed in a graph.",
			meta.MaxPerGraph, nodeType, plural(meta.MaxPerGraph, "node", "nodes"))
	}
	return nil
}

// CanConnectEdge reports whether proposed fits under the connection cap of
// its target input port. The same check serves commits and drag previews.
func CanConnectEdge(reg Registry, nodes []Node, edges []Edge, proposed Edge) error {
	var targetType string
	found := false
	for _, n := range nodes {
		if n.ID == proposed.Target {
			targetType, found = n.Type, true
			break
		}
	}
	if !found {
		return nil
	}
	meta, ok := lookup(reg, targetType)
	if !ok {
		return nil
	}
	key := inputKey(proposed.TargetHandle)
	spec, ok := meta.Input(key)
	if !ok || spec.MaxConnections <= 0 {
		return nil
	}

	count := 0
	for _, e := range edges {
		if e.Target == proposed.Target && inputKey(e.TargetHandle) == key {
			count++
		}
	}
	if count >= spec.MaxConnections {
		label := spec.Label
		if label == "" {
			label = spec.Key
		}
		return rejectf("Input %q accepts at most %d %s.",
			label, spec.MaxConnections, plural(spec.MaxConnections, "connection", "connections"))
	}
	return nil
}

// CheckConstraints replays def node by node and edge by edge through the
// instance and handle caps, returning the first rejection.
func CheckConstraints(reg Registry, def Definition) error {
	nodes := make([]Node, 0, len(def.Nodes))
	for _, n := range def.Nodes {
		if err := CanAddNode(reg, n.Type, nodes); err != nil {
			return fmt.Errorf("node %s: %w", n.ID, err)
		}
		nodes = append(nodes, n)
	}
	edges := make([]Edge, 0, len(def.Edges))
	for _, e := range def.Edges {
		if err := CanConnectEdge(reg, nodes, edges, e); err != nil {
			return fmt.Errorf("edge %s: %w", e.ID, err)
		}
		edges = append(edges, e)
	}
	return nil
}

func lookup(reg Registry, nodeType string) (NodeTypeMeta, bool) {
	if reg == nil {
		return NodeTypeMeta{}, false
	}
	return reg.Lookup(nodeType)
}

// inputKey resolves a target handle to its input port; the null handle is
// the default port.
func inputKey(h *string) string {
	if h == nil || *h == "" {
		return DefaultInputKey
	}
	return *h
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
