// Package editor keeps a live, editable graph in sync with the backend:
// constraint-gated mutations, derived parameters, dirty tracking, debounced
// autosave, and the save/deploy reconciler.
package editor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/meikuraledutech/hookgraph"
	"github.com/meikuraledutech/hookgraph/registry"
)

// DefaultEdgeType is given to edges connected without an explicit type.
const DefaultEdgeType = "default"

// State is the snapshot surfaced to the presentation layer.
type State struct {
	Graph      *hookgraph.Graph
	Definition hookgraph.Definition
	Dirty      bool
	ShowDeploy bool
	Compiling  bool
}

// Session is the editing context of one selected graph. All methods are safe
// for concurrent use; network calls run without holding the session lock so
// the graph stays editable while a request is pending.
type Session struct {
	config
	backend  Backend
	registry hookgraph.Registry

	mu        sync.Mutex
	graph     *hookgraph.Graph
	nodes     []hookgraph.Node
	edges     []hookgraph.Edge
	bindings  hookgraph.Bindings
	lastSaved hookgraph.Definition
	compiling bool
	closed    bool

	pending    Task
	generation uint64
}

// Open starts a session on g. Live nodes and edges are rehydrated from the
// record's definition and one full parameter pass covers edges that existed
// before the session started. The record's definition as stored is the saved
// baseline, so a graph stored without derived parameters opens dirty.
func Open(backend Backend, reg hookgraph.Registry, g hookgraph.Graph, opts ...Option) *Session {
	s := &Session{
		config:   newConfig(opts),
		backend:  backend,
		registry: reg,
	}
	s.load(g)
	return s
}

func (s *Session) load(g hookgraph.Graph) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := cloneGraph(&g)
	s.graph = rec
	s.nodes, s.edges, s.bindings = hookgraph.Rehydrate(rec.Definition, s.UpdateNodeData)
	hookgraph.UpdateAllParams(s.registry, s.nodes, s.edges)
	s.lastSaved = rec.Definition.Clone()
	s.logger.Debug("session opened", "graph_id", rec.ID, "nodes", len(s.nodes), "edges", len(s.edges))
}

// Close cancels any pending autosave. The session must not be used after.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelAutosaveLocked()
	s.closed = true
}

// RefreshDeployState fetches the deployed fingerprint. It is best-effort:
// failures are emitted and never returned.
func (s *Session) RefreshDeployState(ctx context.Context) {
	s.mu.Lock()
	if s.graph == nil || s.closed {
		s.mu.Unlock()
		return
	}
	id := s.graph.ID
	s.mu.Unlock()

	start := time.Now()
	state, err := s.backend.DeployState(ctx, id)
	if err != nil {
		s.emit(Event{Op: OpDeployState, GraphID: id, Err: err, Dropped: true, Duration: time.Since(start)})
		return
	}

	s.mu.Lock()
	if s.graph != nil && s.graph.ID == id {
		s.graph.DeployFingerprint = state.DeployFingerprint
	}
	s.mu.Unlock()
	s.emit(Event{Op: OpDeployState, GraphID: id, Duration: time.Since(start)})
}

// Graph returns a copy of the selected graph record.
func (s *Session) Graph() *hookgraph.Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneGraph(s.graph)
}

// Nodes returns a copy of the live nodes.
func (s *Session) Nodes() []hookgraph.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return hookgraph.Sanitize(s.nodes, nil).Nodes
}

// Edges returns a copy of the live edges.
func (s *Session) Edges() []hookgraph.Edge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return hookgraph.Sanitize(nil, s.edges).Edges
}

// Node returns a copy of one live node.
func (s *Session) Node(id string) (hookgraph.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOfNode(id)
	if i < 0 {
		return hookgraph.Node{}, false
	}
	return hookgraph.Sanitize(s.nodes[i:i+1], nil).Nodes[0], true
}

// Binding returns the change callback wired to a node, for the presentation layer.
func (s *Session) Binding(nodeID string) hookgraph.ChangeFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bindings.For(nodeID)
}

// Definition returns the current sanitized definition.
func (s *Session) Definition() hookgraph.Definition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return hookgraph.Sanitize(s.nodes, s.edges)
}

// LastSaved returns the persistence baseline.
func (s *Session) LastSaved() hookgraph.Definition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSaved.Clone()
}

// Dirty reports whether the live graph differs in content from the last
// saved definition. Positions, dimensions and selection do not count.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirtyLocked()
}

func (s *Session) dirtyLocked() bool {
	return !hookgraph.ContentEqual(hookgraph.Sanitize(s.nodes, s.edges), s.lastSaved)
}

// Compiling reports whether a deploy is in flight.
func (s *Session) Compiling() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compiling
}

// ShowDeploy reports whether a Deploy action should be offered: the graph is
// clean, its saved definition has a configured trigger, and that trigger is
// not what is currently deployed.
func (s *Session) ShowDeploy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.showDeployLocked()
}

func (s *Session) showDeployLocked() bool {
	if s.graph == nil || s.dirtyLocked() {
		return false
	}
	fp := hookgraph.Fingerprint(s.lastSaved)
	return fp != "" && fp != s.graph.DeployFingerprint
}

// State returns a snapshot of everything the presentation layer renders.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Graph:      cloneGraph(s.graph),
		Definition: hookgraph.Sanitize(s.nodes, s.edges),
		Dirty:      s.dirtyLocked(),
		ShowDeploy: s.showDeployLocked(),
		Compiling:  s.compiling,
	}
}

// CanAddNode checks the instance cap of nodeType without changing anything.
func (s *Session) CanAddNode(nodeType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return hookgraph.CanAddNode(s.registry, nodeType, s.nodes)
}

// AddNode appends a node of nodeType at pos when the type's instance cap
// allows it.
func (s *Session) AddNode(nodeType string, data map[string]any, pos hookgraph.Position) (hookgraph.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return hookgraph.Node{}, ErrClosed
	}
	if err := hookgraph.CanAddNode(s.registry, nodeType, s.nodes); err != nil {
		return hookgraph.Node{}, err
	}

	n := hookgraph.Node{
		ID:       s.newID(),
		Type:     nodeType,
		Position: pos,
		Data:     hookgraph.Sanitize([]hookgraph.Node{{Data: data}}, nil).Nodes[0].Data,
	}
	s.nodes = append(s.nodes, n)
	s.bindings[n.ID] = s.UpdateNodeData
	s.cancelAutosaveLocked()
	return hookgraph.Sanitize(s.nodes[len(s.nodes)-1:], nil).Nodes[0], nil
}

// AddFromPalette adds a node picked from a palette entry, seeded with the
// entry's initial data.
func (s *Session) AddFromPalette(e registry.Entry, ctx registry.Context, pos hookgraph.Position) (hookgraph.Node, error) {
	return s.AddNode(e.Type, e.InitialData(ctx), pos)
}

// CanConnect evaluates a proposed edge during a connection drag. It has no
// side effects and applies the same rule as Connect.
func (s *Session) CanConnect(proposed hookgraph.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.checkConnectLocked(proposed)
	return err
}

// Connect commits a new edge when its target input has room. Connecting the
// same ports twice returns the existing edge.
func (s *Session) Connect(e hookgraph.Edge) (hookgraph.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return hookgraph.Edge{}, ErrClosed
	}
	i, err := s.checkConnectLocked(e)
	if err != nil {
		return hookgraph.Edge{}, err
	}
	if i >= 0 {
		return cloneEdge(s.edges[i]), nil
	}

	if e.ID == "" {
		e.ID = s.newID()
	}
	if e.Type == "" {
		e.Type = DefaultEdgeType
	}
	e = cloneEdge(e)
	s.edges = append(s.edges, e)
	hookgraph.UpdateParams(s.registry, s.nodes, s.edges, e.Target)
	s.cancelAutosaveLocked()
	return cloneEdge(e), nil
}

// UpdateNodeData merges patch into a node's data. It is the callback bound
// to every node and counts as a non-positional change.
func (s *Session) UpdateNodeData(nodeID string, patch map[string]any) {
	_ = s.ApplyNodeChanges([]NodeChange{{Kind: ChangeData, ID: nodeID, Data: patch}})
}

// Revert discards live edits and restores the last saved definition.
func (s *Session) Revert() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelAutosaveLocked()
	s.nodes, s.edges, s.bindings = hookgraph.Rehydrate(s.lastSaved, s.UpdateNodeData)
}

// ResumeAllowed is false while the graph is paused and usage is over the limit.
func (s *Session) ResumeAllowed() bool {
	s.mu.Lock()
	paused := s.graph != nil && s.graph.Status == hookgraph.StatusPaused
	s.mu.Unlock()
	if !paused || s.usage == nil {
		return true
	}
	return !s.usage.OverLimit()
}

// checkConnectLocked is the connection rule shared by the drag preview and
// the commit. It returns the index of an edge already joining the same ports,
// or -1 when e would be new and fits its target input.
func (s *Session) checkConnectLocked(e hookgraph.Edge) (int, error) {
	if s.indexOfNode(e.Source) < 0 || s.indexOfNode(e.Target) < 0 {
		return -1, fmt.Errorf("%w: %s -> %s", hookgraph.ErrDanglingEdge, e.Source, e.Target)
	}
	for i, existing := range s.edges {
		if existing.Source == e.Source && existing.Target == e.Target &&
			handleEq(existing.SourceHandle, e.SourceHandle) && handleEq(existing.TargetHandle, e.TargetHandle) {
			return i, nil
		}
	}
	return -1, hookgraph.CanConnectEdge(s.registry, s.nodes, s.edges, e)
}

func (s *Session) indexOfNode(id string) int {
	return indexOfNodeIn(s.nodes, id)
}

func (s *Session) emit(e Event) {
	s.emitter.Emit(e)
}

func handleEq(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func cloneEdge(e hookgraph.Edge) hookgraph.Edge {
	return hookgraph.Sanitize(nil, []hookgraph.Edge{e}).Edges[0]
}

func cloneGraph(g *hookgraph.Graph) *hookgraph.Graph {
	if g == nil {
		return nil
	}
	c := *g
	c.Definition = g.Definition.Clone()
	c.CompiledAt = cloneTime(g.CompiledAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
