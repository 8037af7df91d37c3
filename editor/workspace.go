package editor

import (
	"context"
	"sync"

	"github.com/meikuraledutech/hookgraph"
)

// Workspace holds the user's graph list and the session of the selected graph.
type Workspace struct {
	config
	opts     []Option
	backend  Backend
	registry hookgraph.Registry

	mu      sync.Mutex
	graphs  []hookgraph.Graph
	session *Session
}

// NewWorkspace returns an empty workspace. Options are passed on to every
// session it opens.
func NewWorkspace(backend Backend, reg hookgraph.Registry, opts ...Option) *Workspace {
	return &Workspace{
		config:   newConfig(opts),
		opts:     opts,
		backend:  backend,
		registry: reg,
	}
}

// Load fetches the graph list and selects the first graph, if any.
func (w *Workspace) Load(ctx context.Context) error {
	graphs, err := w.backend.ListGraphs(ctx)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.graphs = graphs
	w.mu.Unlock()

	if len(graphs) == 0 {
		w.closeSession()
		return nil
	}
	_, err = w.Select(ctx, graphs[0].ID)
	return err
}

// Graphs returns the known graphs; the selected one reflects its session.
func (w *Workspace) Graphs() []hookgraph.Graph {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]hookgraph.Graph, len(w.graphs))
	copy(out, w.graphs)
	if w.session != nil {
		if g := w.session.Graph(); g != nil {
			for i := range out {
				if out[i].ID == g.ID {
					out[i] = *g
				}
			}
		}
	}
	return out
}

// Session returns the session of the selected graph, or nil.
func (w *Workspace) Session() *Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.session
}

// Create adds a new empty graph at the top of the list and selects it.
func (w *Workspace) Create(ctx context.Context, name string) (*Session, error) {
	g, err := w.backend.CreateGraph(ctx, name)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	w.graphs = append([]hookgraph.Graph{*g}, w.graphs...)
	w.mu.Unlock()
	return w.Select(ctx, g.ID)
}

// Select opens a session on graphID, replacing the current one. An unknown
// id falls back to the first graph. The deploy state is prefetched on a
// best-effort basis.
func (w *Workspace) Select(ctx context.Context, graphID string) (*Session, error) {
	w.mu.Lock()
	var picked *hookgraph.Graph
	for i := range w.graphs {
		if w.graphs[i].ID == graphID {
			picked = &w.graphs[i]
			break
		}
	}
	if picked == nil && len(w.graphs) > 0 {
		picked = &w.graphs[0]
	}
	if picked == nil {
		w.mu.Unlock()
		return nil, ErrNoGraph
	}
	g := *cloneGraph(picked)
	prev := w.session
	w.mu.Unlock()

	if prev != nil {
		w.syncRecord(prev)
		prev.Close()
	}

	s := Open(w.backend, w.registry, g, w.opts...)
	w.mu.Lock()
	w.session = s
	w.mu.Unlock()

	s.RefreshDeployState(ctx)
	w.logger.Debug("graph selected", "graph_id", g.ID)
	return s, nil
}

// Delete removes a graph. Deleting the selected graph selects the first
// remaining one.
func (w *Workspace) Delete(ctx context.Context, graphID string) error {
	if err := w.backend.DeleteGraph(ctx, graphID); err != nil {
		return err
	}

	w.mu.Lock()
	kept := w.graphs[:0]
	for _, g := range w.graphs {
		if g.ID != graphID {
			kept = append(kept, g)
		}
	}
	w.graphs = kept
	selected := w.session != nil && w.session.Graph().ID == graphID
	remaining := len(w.graphs)
	w.mu.Unlock()

	if !selected {
		return nil
	}
	w.closeSession()
	if remaining == 0 {
		return nil
	}
	_, err := w.Select(ctx, "")
	return err
}

func (w *Workspace) closeSession() {
	w.mu.Lock()
	s := w.session
	w.session = nil
	w.mu.Unlock()
	if s != nil {
		s.Close()
	}
}

// syncRecord copies a session's graph record back into the list.
func (w *Workspace) syncRecord(s *Session) {
	g := s.Graph()
	if g == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range w.graphs {
		if w.graphs[i].ID == g.ID {
			w.graphs[i] = *g
		}
	}
}
