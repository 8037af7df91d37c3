// Package memory provides in-memory implementations of hookgraph.Store and
// the usage meter. They are safe for concurrent use and lose everything on
// restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/meikuraledutech/hookgraph"
)

// Store implements hookgraph.Store in memory.
type Store struct {
	mu     sync.RWMutex
	graphs map[string]*hookgraph.Graph
	order  []string
	now    func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		graphs: make(map[string]*hookgraph.Graph),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateSchema is a no-op.
func (s *Store) CreateSchema(ctx context.Context) error { return nil }

// DropSchema removes every graph.
func (s *Store) DropSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graphs = make(map[string]*hookgraph.Graph)
	s.order = nil
	return nil
}

// CreateGraph stores a copy of g.
func (s *Store) CreateGraph(ctx context.Context, g *hookgraph.Graph) (*hookgraph.Graph, error) {
	rec := clone(g)
	if rec.Version == 0 {
		rec.Version = 1
	}
	rec.Status = rec.StatusOrDraft()
	rec.CreatedAt = s.now()
	rec.UpdatedAt = rec.CreatedAt

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.graphs[rec.ID]; !exists {
		s.order = append(s.order, rec.ID)
	}
	s.graphs[rec.ID] = rec
	return clone(rec), nil
}

// GetGraph returns a copy of the graph, or nil, nil if not found.
func (s *Store) GetGraph(ctx context.Context, graphID string) (*hookgraph.Graph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.graphs[graphID]
	if !ok {
		return nil, nil
	}
	return clone(g), nil
}

// ListGraphs returns all graphs, newest first.
func (s *Store) ListGraphs(ctx context.Context) ([]hookgraph.Graph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]hookgraph.Graph, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, *clone(s.graphs[s.order[i]]))
	}
	return out, nil
}

// UpdateGraph replaces the writable fields of a graph.
func (s *Store) UpdateGraph(ctx context.Context, graphID string, u hookgraph.Update) (*hookgraph.Graph, error) {
	return s.mutate(graphID, func(g *hookgraph.Graph) {
		g.Name = u.Name
		g.Definition = u.Definition.Clone()
		g.Status = u.Status
		if g.Status == "" {
			g.Status = hookgraph.StatusDraft
		}
		if u.BumpVersion {
			g.Version++
		}
	})
}

// DeleteGraph removes a graph. No error if it doesn't exist.
func (s *Store) DeleteGraph(ctx context.Context, graphID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.graphs[graphID]; !ok {
		return nil
	}
	delete(s.graphs, graphID)
	for i, id := range s.order {
		if id == graphID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// SetDeployment stamps the outcome of a compile.
func (s *Store) SetDeployment(ctx context.Context, graphID string, d hookgraph.Deployment) (*hookgraph.Graph, error) {
	return s.mutate(graphID, func(g *hookgraph.Graph) {
		g.DeployFingerprint = d.Fingerprint
		g.Status = d.Status
		g.CompiledAt = nil
		if d.CompiledAt != nil {
			t := *d.CompiledAt
			g.CompiledAt = &t
		}
	})
}

// SetStatus changes only the status of a graph.
func (s *Store) SetStatus(ctx context.Context, graphID string, status hookgraph.Status) (*hookgraph.Graph, error) {
	return s.mutate(graphID, func(g *hookgraph.Graph) {
		g.Status = status
	})
}

func (s *Store) mutate(graphID string, f func(*hookgraph.Graph)) (*hookgraph.Graph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.graphs[graphID]
	if !ok {
		return nil, hookgraph.ErrGraphNotFound
	}
	f(g)
	g.UpdatedAt = s.now()
	return clone(g), nil
}

func clone(g *hookgraph.Graph) *hookgraph.Graph {
	c := *g
	c.Definition = g.Definition.Clone()
	if g.CompiledAt != nil {
		t := *g.CompiledAt
		c.CompiledAt = &t
	}
	return &c
}
