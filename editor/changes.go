package editor

import (
	"fmt"

	"github.com/meikuraledutech/hookgraph"
)

// ChangeKind names one kind of node or edge change.
type ChangeKind string

const (
	ChangePosition   ChangeKind = "position"
	ChangeDimensions ChangeKind = "dimensions"
	ChangeSelect     ChangeKind = "select"
	ChangeRemove     ChangeKind = "remove"
	ChangeData       ChangeKind = "data"
	ChangeReplace    ChangeKind = "replace"
)

// NodeChange is one entry of a node change batch, as produced by a canvas.
type NodeChange struct {
	Kind     ChangeKind
	ID       string
	Position hookgraph.Position
	Width    float64
	Height   float64
	Selected bool
	// Data is merged into the node's data for ChangeData.
	Data map[string]any
	// Node replaces the node wholesale for ChangeReplace.
	Node *hookgraph.Node
}

// Positional reports whether the change leaves the content of the graph alone.
func (c NodeChange) Positional() bool {
	switch c.Kind {
	case ChangePosition, ChangeDimensions, ChangeSelect:
		return true
	}
	return false
}

// EdgeChange is one entry of an edge change batch.
type EdgeChange struct {
	Kind     ChangeKind
	ID       string
	Selected bool
	// Edge is the new edge for ChangeReplace.
	Edge *hookgraph.Edge
}

// PositionalOnly reports whether every change in the batch is positional.
func PositionalOnly(changes []NodeChange) bool {
	for _, c := range changes {
		if !c.Positional() {
			return false
		}
	}
	return true
}

// ApplyNodeChanges applies a batch of node changes. A positional-only batch
// on a clean graph (re)starts the autosave debounce; any other batch cancels
// a pending autosave. Changes naming unknown nodes are ignored. The batch is
// applied to a scratch copy, so a rejected batch leaves the graph untouched.
// A replacement that changes a node's type must fit under the new type's
// instance cap and the handle caps of the node's incoming edges.
func (s *Session) ApplyNodeChanges(changes []NodeChange) error {
	if len(changes) == 0 {
		return nil
	}
	for _, c := range changes {
		switch c.Kind {
		case ChangePosition, ChangeDimensions, ChangeSelect, ChangeData, ChangeReplace, ChangeRemove:
		default:
			return fmt.Errorf("editor: unknown node change %q", c.Kind)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	nodes := hookgraph.Sanitize(s.nodes, nil).Nodes
	edges := hookgraph.Sanitize(nil, s.edges).Edges
	affected := map[string]bool{}
	var removed []string
	for _, c := range changes {
		i := indexOfNodeIn(nodes, c.ID)
		if i < 0 {
			continue
		}
		n := &nodes[i]
		switch c.Kind {
		case ChangePosition:
			n.Position = c.Position
		case ChangeDimensions:
			n.Width, n.Height = c.Width, c.Height
		case ChangeSelect:
			n.Selected = c.Selected
		case ChangeData:
			n.Data = mergeData(n.Data, c.Data)
			markDownstream(edges, n.ID, affected)
		case ChangeReplace:
			if c.Node == nil {
				continue
			}
			next := hookgraph.Sanitize([]hookgraph.Node{*c.Node}, nil).Nodes[0]
			next.ID = n.ID
			if next.Type != n.Type {
				if err := checkRetype(s.registry, nodes, edges, i, next); err != nil {
					return err
				}
			}
			*n = next
			affected[n.ID] = true
			markDownstream(edges, n.ID, affected)
		case ChangeRemove:
			removed = append(removed, n.ID)
			nodes, edges = removeNode(nodes, edges, i, affected)
		}
	}

	s.nodes, s.edges = nodes, edges
	for _, id := range removed {
		delete(s.bindings, id)
	}
	if len(affected) > 0 {
		s.updateParamsLocked(affected)
	}

	if !PositionalOnly(changes) {
		s.cancelAutosaveLocked()
		return nil
	}
	if s.graph != nil && !s.dirtyLocked() {
		s.scheduleAutosaveLocked()
	}
	return nil
}

// checkRetype reports whether nodes[i] may become next: the new type must
// have room under its instance cap, and every edge into the node must fit
// the new type's input caps.
func checkRetype(reg hookgraph.Registry, nodes []hookgraph.Node, edges []hookgraph.Edge, i int, next hookgraph.Node) error {
	others := append(append([]hookgraph.Node{}, nodes[:i]...), nodes[i+1:]...)
	if err := hookgraph.CanAddNode(reg, next.Type, others); err != nil {
		return err
	}
	retyped := append(others, next)
	var placed []hookgraph.Edge
	for _, e := range edges {
		if e.Target != next.ID {
			continue
		}
		if err := hookgraph.CanConnectEdge(reg, retyped, placed, e); err != nil {
			return err
		}
		placed = append(placed, e)
	}
	return nil
}

// RemoveNode deletes a node together with every edge touching it.
func (s *Session) RemoveNode(id string) error {
	return s.ApplyNodeChanges([]NodeChange{{Kind: ChangeRemove, ID: id}})
}

// MoveNode sets a node's position as a positional change.
func (s *Session) MoveNode(id string, pos hookgraph.Position) error {
	return s.ApplyNodeChanges([]NodeChange{{Kind: ChangePosition, ID: id, Position: pos}})
}

// ApplyEdgeChanges applies a batch of edge changes. Replacements are checked
// against the handle caps on a scratch copy first, so a rejected batch leaves
// the edges untouched. Structural changes cancel a pending autosave.
func (s *Session) ApplyEdgeChanges(changes []EdgeChange) error {
	if len(changes) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	scratch := hookgraph.Sanitize(nil, s.edges).Edges
	affected := map[string]bool{}
	structural := false
	for _, c := range changes {
		i := indexOfEdge(scratch, c.ID)
		switch c.Kind {
		case ChangeSelect:
			if i >= 0 {
				scratch[i].Selected = c.Selected
			}
		case ChangeRemove:
			if i < 0 {
				continue
			}
			affected[scratch[i].Target] = true
			scratch = append(scratch[:i], scratch[i+1:]...)
			structural = true
		case ChangeReplace:
			if i < 0 || c.Edge == nil {
				continue
			}
			next := cloneEdge(*c.Edge)
			next.ID = c.ID
			if s.indexOfNode(next.Source) < 0 || s.indexOfNode(next.Target) < 0 {
				return fmt.Errorf("%w: %s -> %s", hookgraph.ErrDanglingEdge, next.Source, next.Target)
			}
			rest := append(append([]hookgraph.Edge{}, scratch[:i]...), scratch[i+1:]...)
			if err := hookgraph.CanConnectEdge(s.registry, s.nodes, rest, next); err != nil {
				return err
			}
			affected[scratch[i].Target] = true
			affected[next.Target] = true
			scratch[i] = next
			structural = true
		default:
			return fmt.Errorf("editor: unknown edge change %q", c.Kind)
		}
	}

	s.edges = scratch
	if len(affected) > 0 {
		s.updateParamsLocked(affected)
	}
	if structural {
		s.cancelAutosaveLocked()
	}
	return nil
}

// RemoveEdge deletes one edge.
func (s *Session) RemoveEdge(id string) error {
	return s.ApplyEdgeChanges([]EdgeChange{{Kind: ChangeRemove, ID: id}})
}

// removeNode drops nodes[i] and every edge touching it, flagging the
// targets that lost an input.
func removeNode(nodes []hookgraph.Node, edges []hookgraph.Edge, i int, affected map[string]bool) ([]hookgraph.Node, []hookgraph.Edge) {
	id := nodes[i].ID
	nodes = append(nodes[:i], nodes[i+1:]...)
	delete(affected, id)

	kept := edges[:0]
	for _, e := range edges {
		if e.Source == id || e.Target == id {
			if e.Target != id {
				affected[e.Target] = true
			}
			continue
		}
		kept = append(kept, e)
	}
	return nodes, kept
}

// markDownstream flags every node fed by id, since their previews read id's data.
func markDownstream(edges []hookgraph.Edge, id string, affected map[string]bool) {
	for _, e := range edges {
		if e.Source == id {
			affected[e.Target] = true
		}
	}
}

func (s *Session) updateParamsLocked(affected map[string]bool) {
	targets := make([]string, 0, len(affected))
	for id := range affected {
		targets = append(targets, id)
	}
	hookgraph.UpdateParams(s.registry, s.nodes, s.edges, targets...)
}

// mergeData copies data and overlays patch. The derived parameter list
// cannot be patched by hand.
func mergeData(data, patch map[string]any) map[string]any {
	out := hookgraph.Sanitize([]hookgraph.Node{{Data: data}}, nil).Nodes[0].Data
	for k, v := range hookgraph.Sanitize([]hookgraph.Node{{Data: patch}}, nil).Nodes[0].Data {
		if k == hookgraph.ParamsKey {
			continue
		}
		out[k] = v
	}
	return out
}

func indexOfEdge(edges []hookgraph.Edge, id string) int {
	for i := range edges {
		if edges[i].ID == id {
			return i
		}
	}
	return -1
}

func indexOfNodeIn(nodes []hookgraph.Node, id string) int {
	for i := range nodes {
		if nodes[i].ID == id {
			return i
		}
	}
	return -1
}
