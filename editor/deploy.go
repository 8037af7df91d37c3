package editor

import (
	"context"
	"time"

	"github.com/meikuraledutech/hookgraph"
)

// Save persists the live definition with a version bump. When the graph had
// a deployed trigger and the saved definition no longer yields a fingerprint,
// a compile is issued so the backend can deprovision. The stored fingerprint
// is cleared whatever that call returns; on success the status it reports is
// adopted.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	if s.graph == nil {
		s.mu.Unlock()
		return ErrNoGraph
	}
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.cancelAutosaveLocked()
	id := s.graph.ID
	previous := s.graph.DeployFingerprint
	s.mu.Unlock()

	if err := s.persist(ctx, OpSave); err != nil {
		return err
	}

	s.mu.Lock()
	orphaned := previous != "" && hookgraph.Fingerprint(s.lastSaved) == ""
	s.mu.Unlock()
	if !orphaned {
		return nil
	}

	start := time.Now()
	res, err := s.backend.Compile(ctx, id)
	s.emit(Event{Op: OpCleanup, GraphID: id, Err: err, Dropped: err != nil, Duration: time.Since(start)})

	s.mu.Lock()
	if s.graph != nil && s.graph.ID == id {
		s.graph.DeployFingerprint = ""
		if err == nil && res != nil && res.Status != "" {
			s.graph.Status = res.Status
			s.graph.CompiledAt = cloneTime(res.CompiledAt)
		}
	}
	s.mu.Unlock()
	return nil
}

// persist sends the current snapshot as an explicit save and adopts the result.
func (s *Session) persist(ctx context.Context, op Op) error {
	s.mu.Lock()
	id := s.graph.ID
	u := hookgraph.Update{
		Name:        s.graph.Name,
		Definition:  hookgraph.Sanitize(s.nodes, s.edges),
		Status:      s.graph.StatusOrDraft(),
		BumpVersion: true,
	}
	s.mu.Unlock()

	start := time.Now()
	saved, err := s.backend.SaveGraph(ctx, id, u)
	if err == nil && saved == nil {
		err = hookgraph.ErrGraphNotFound
	}
	s.emit(Event{Op: op, GraphID: id, Err: err, Duration: time.Since(start)})
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.graph != nil && s.graph.ID == id {
		s.adoptLocked(saved, u.Definition)
	}
	s.mu.Unlock()
	return nil
}

// Deploy compiles the saved definition. The live definition must carry a
// fully configured trigger; when it differs from the saved one in any way it
// is saved first. On success the graph becomes ACTIVE and the fingerprint of
// the saved definition is stored. On failure only the compiling flag is reset.
func (s *Session) Deploy(ctx context.Context) (*hookgraph.CompileResult, error) {
	s.mu.Lock()
	if s.graph == nil {
		s.mu.Unlock()
		return nil, ErrNoGraph
	}
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if s.compiling {
		s.mu.Unlock()
		return nil, ErrCompiling
	}
	live := hookgraph.Sanitize(s.nodes, s.edges)
	if err := hookgraph.CheckDeployable(live); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	id := s.graph.ID
	unsaved := !hookgraph.Equal(live, s.lastSaved)
	if unsaved {
		s.cancelAutosaveLocked()
	}
	s.compiling = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.compiling = false
		s.mu.Unlock()
	}()

	if unsaved {
		if err := s.persist(ctx, OpSave); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	res, err := s.backend.Compile(ctx, id)
	s.emit(Event{Op: OpDeploy, GraphID: id, Err: err, Duration: time.Since(start)})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.graph != nil && s.graph.ID == id {
		now := s.now()
		s.graph.Status = hookgraph.StatusActive
		s.graph.CompiledAt = &now
		s.graph.DeployFingerprint = hookgraph.Fingerprint(s.lastSaved)
	}
	s.mu.Unlock()
	return res, nil
}

// Pause stops a deployed graph.
func (s *Session) Pause(ctx context.Context) error {
	return s.SetPaused(ctx, true)
}

// Resume restarts a paused graph. The backend may reject it when usage is
// over the limit; local status is then left as it was.
func (s *Session) Resume(ctx context.Context) error {
	return s.SetPaused(ctx, false)
}

// SetPaused toggles between PAUSED and ACTIVE. Local status only changes
// once the backend accepts, to the status it reports.
func (s *Session) SetPaused(ctx context.Context, paused bool) error {
	s.mu.Lock()
	if s.graph == nil {
		s.mu.Unlock()
		return ErrNoGraph
	}
	if s.graph.StatusOrDraft() == hookgraph.StatusDraft {
		s.mu.Unlock()
		return hookgraph.ErrNotDeployed
	}
	id := s.graph.ID
	s.mu.Unlock()

	op, call, target := OpResume, s.backend.Resume, hookgraph.StatusActive
	if paused {
		op, call, target = OpPause, s.backend.Pause, hookgraph.StatusPaused
	}

	start := time.Now()
	status, err := call(ctx, id)
	s.emit(Event{Op: op, GraphID: id, Err: err, Duration: time.Since(start)})
	if err != nil {
		return err
	}

	if status == "" {
		status = target
	}
	s.mu.Lock()
	if s.graph != nil && s.graph.ID == id {
		s.graph.Status = status
	}
	s.mu.Unlock()
	return nil
}
