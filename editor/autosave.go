package editor

import (
	"context"
	"time"

	"github.com/meikuraledutech/hookgraph"
)

// scheduleAutosaveLocked (re)starts the single debounce timer. Any task
// already pending is superseded.
func (s *Session) scheduleAutosaveLocked() {
	s.cancelAutosaveLocked()
	gen := s.generation
	s.pending = s.scheduler.AfterFunc(s.autosaveDelay, func() {
		s.fireAutosave(gen)
	})
}

func (s *Session) cancelAutosaveLocked() {
	s.generation++
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
}

// AutosavePending reports whether a debounced autosave is waiting to fire.
func (s *Session) AutosavePending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// fireAutosave persists the current snapshot without a version bump. Every
// failure is dropped; the next positional edit reschedules.
func (s *Session) fireAutosave(gen uint64) {
	s.mu.Lock()
	if gen != s.generation || s.closed || s.graph == nil {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	id := s.graph.ID
	u := hookgraph.Update{
		Name:       s.graph.Name,
		Definition: hookgraph.Sanitize(s.nodes, s.edges),
		Status:     s.graph.StatusOrDraft(),
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(s.base, s.timeout)
	defer cancel()

	start := time.Now()
	saved, err := s.backend.Autosave(ctx, id, u)
	if err == nil && saved == nil {
		err = hookgraph.ErrGraphNotFound
	}
	if err != nil {
		s.emit(Event{Op: OpAutosave, GraphID: id, Err: err, Dropped: true, Duration: time.Since(start)})
		return
	}

	s.mu.Lock()
	if s.graph != nil && s.graph.ID == id && !s.closed {
		s.adoptLocked(saved, u.Definition)
	}
	s.mu.Unlock()
	s.emit(Event{Op: OpAutosave, GraphID: id, Duration: time.Since(start)})
}

// adoptLocked takes a persisted record as the new baseline. The returned
// definition wins when present, otherwise the snapshot that was sent.
// Deploy fields the response left out are kept.
func (s *Session) adoptLocked(saved *hookgraph.Graph, sent hookgraph.Definition) {
	rec := cloneGraph(saved)
	if rec.DeployFingerprint == "" && rec.CompiledAt == nil {
		rec.DeployFingerprint = s.graph.DeployFingerprint
		rec.CompiledAt = s.graph.CompiledAt
	}
	if len(rec.Definition.Nodes) == 0 && len(rec.Definition.Edges) == 0 {
		rec.Definition = sent.Clone()
	}
	s.graph = rec
	s.lastSaved = rec.Definition.Clone()
}
