// Package hookgraph models event-to-webhook pipeline graphs: typed nodes
// wired by edges, the constraints on how they may be connected, and the
// derived state an editor keeps in sync with a remote backend.
package hookgraph

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the deployment lifecycle state of a graph.
type Status string

const (
	StatusDraft  Status = "DRAFT"
	StatusActive Status = "ACTIVE"
	StatusPaused Status = "PAUSED"
)

// Position is a point in editor space.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a vertex of a graph definition.
// Data holds configuration values and derived fields; the inferencer owns the
// availableParams key.
type Node struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Position Position       `json:"position"`
	Width    float64        `json:"width,omitempty"`
	Height   float64        `json:"height,omitempty"`
	Selected bool           `json:"selected,omitempty"`
	Data     map[string]any `json:"data"`
}

// Edge is a directed connection from a node's output port to another node's
// input port. A nil handle is the null handle.
type Edge struct {
	ID           string         `json:"id"`
	Source       string         `json:"source"`
	SourceHandle *string        `json:"sourceHandle"`
	Target       string         `json:"target"`
	TargetHandle *string        `json:"targetHandle"`
	Type         string         `json:"type,omitempty"`
	Selected     bool           `json:"selected,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

// Handle returns a handle reference for name.
func Handle(name string) *string {
	return &name
}

// UnmarshalJSON accepts handles given as strings, null, or objects carrying an id.
func (e *Edge) UnmarshalJSON(b []byte) error {
	type plain Edge
	var raw struct {
		plain
		SourceHandle json.RawMessage `json:"sourceHandle"`
		TargetHandle json.RawMessage `json:"targetHandle"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	src, err := decodeHandle(raw.SourceHandle)
	if err != nil {
		return fmt.Errorf("hookgraph: edge %s sourceHandle: %w", raw.ID, err)
	}
	dst, err := decodeHandle(raw.TargetHandle)
	if err != nil {
		return fmt.Errorf("hookgraph: edge %s targetHandle: %w", raw.ID, err)
	}
	*e = Edge(raw.plain)
	e.SourceHandle = src
	e.TargetHandle = dst
	return nil
}

func decodeHandle(raw json.RawMessage) (*string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &s, nil
	}
	var obj struct {
		ID *string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	return obj.ID, nil
}

// Definition is the unit of persistence and of dirty comparison.
type Definition struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// EmptyDefinition returns a definition with non-nil empty sequences.
func EmptyDefinition() Definition {
	return Definition{Nodes: []Node{}, Edges: []Edge{}}
}

// Node returns the node with the given id.
func (d Definition) Node(id string) (Node, bool) {
	for _, n := range d.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Validate checks that node ids are unique and every edge references
// existing nodes.
func (d Definition) Validate() error {
	seen := make(map[string]bool, len(d.Nodes))
	for _, n := range d.Nodes {
		if seen[n.ID] {
			return fmt.Errorf("%w: %q", ErrDuplicateNode, n.ID)
		}
		seen[n.ID] = true
	}
	for _, e := range d.Edges {
		if !seen[e.Source] {
			return fmt.Errorf("%w: edge %q source %q", ErrDanglingEdge, e.ID, e.Source)
		}
		if !seen[e.Target] {
			return fmt.Errorf("%w: edge %q target %q", ErrDanglingEdge, e.ID, e.Target)
		}
	}
	return nil
}

// Graph is a persisted graph record.
type Graph struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Status            Status     `json:"status"`
	Version           int        `json:"version"`
	Definition        Definition `json:"definition"`
	DeployFingerprint string     `json:"deployFingerprint,omitempty"`
	CompiledAt        *time.Time `json:"compiledAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// StatusOrDraft returns the graph status, defaulting to DRAFT.
func (g *Graph) StatusOrDraft() Status {
	if g == nil || g.Status == "" {
		return StatusDraft
	}
	return g.Status
}
