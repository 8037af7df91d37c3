// Package server is the reference hookgraph backend: graph storage,
// compile/deploy bookkeeping, pause/resume and usage metering behind a
// fiber REST API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/meikuraledutech/hookgraph"
	"github.com/meikuraledutech/hookgraph/internal/logging"
)

// Meter counts deliveries against the account's limit.
type Meter interface {
	Usage(ctx context.Context) (hookgraph.Usage, error)
	// Add records n deliveries and returns the new total.
	Add(ctx context.Context, n int64) (int64, error)
}

// Service implements the backend operations over a Store and a Meter.
type Service struct {
	store    hookgraph.Store
	meter    Meter
	registry hookgraph.Registry
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the structured logger.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithRegistry enforces the node type caps of reg on every saved definition.
func WithRegistry(reg hookgraph.Registry) ServiceOption {
	return func(s *Service) {
		s.registry = reg
	}
}

// WithServiceClock sets the time source for compile timestamps.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// WithServiceIDs sets how graph ids are minted.
func WithServiceIDs(f func() string) ServiceOption {
	return func(s *Service) {
		s.newID = f
	}
}

// NewService returns a Service.
func NewService(store hookgraph.Store, meter Meter, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		meter:  meter,
		logger: logging.NewNop(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListGraphs returns every graph.
func (s *Service) ListGraphs(ctx context.Context) ([]hookgraph.Graph, error) {
	graphs, err := s.store.ListGraphs(ctx)
	if err != nil {
		return nil, err
	}
	if graphs == nil {
		graphs = []hookgraph.Graph{}
	}
	return graphs, nil
}

// GetGraph returns one graph or ErrGraphNotFound.
func (s *Service) GetGraph(ctx context.Context, graphID string) (*hookgraph.Graph, error) {
	g, err := s.store.GetGraph(ctx, graphID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, hookgraph.ErrGraphNotFound
	}
	return g, nil
}

// CreateGraph stores a new graph at version 1. Missing fields default to an
// empty definition and DRAFT.
func (s *Service) CreateGraph(ctx context.Context, req hookgraph.SaveRequest) (*hookgraph.Graph, error) {
	def := hookgraph.EmptyDefinition()
	if req.Definition != nil {
		def = req.Definition.Clone()
	}
	if err := s.validate(def); err != nil {
		return nil, err
	}
	status := req.Status
	if status == "" {
		status = hookgraph.StatusDraft
	}
	g := &hookgraph.Graph{
		ID:         s.newID(),
		Name:       req.Name,
		Status:     status,
		Version:    1,
		Definition: def,
	}
	created, err := s.store.CreateGraph(ctx, g)
	if err != nil {
		return nil, err
	}
	s.logger.Info("graph created", "graph_id", created.ID, "name", created.Name)
	return created, nil
}

// UpdateGraph saves a graph. Omitted fields keep their stored values; the
// version is bumped unless the request asks otherwise.
func (s *Service) UpdateGraph(ctx context.Context, graphID string, req hookgraph.SaveRequest) (*hookgraph.Graph, error) {
	g, err := s.GetGraph(ctx, graphID)
	if err != nil {
		return nil, err
	}
	u := hookgraph.Update{
		Name:        g.Name,
		Definition:  g.Definition,
		Status:      g.StatusOrDraft(),
		BumpVersion: req.BumpVersion == nil || *req.BumpVersion,
	}
	if req.Name != "" {
		u.Name = req.Name
	}
	if req.Definition != nil {
		u.Definition = req.Definition.Clone()
	}
	if req.Status != "" {
		u.Status = req.Status
	}
	if err := s.validate(u.Definition); err != nil {
		return nil, err
	}
	return s.store.UpdateGraph(ctx, graphID, u)
}

func (s *Service) validate(def hookgraph.Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	if s.registry != nil {
		return hookgraph.CheckConstraints(s.registry, def)
	}
	return nil
}

// DeleteGraph removes a graph.
func (s *Service) DeleteGraph(ctx context.Context, graphID string) error {
	if err := s.store.DeleteGraph(ctx, graphID); err != nil {
		return err
	}
	s.logger.Info("graph deleted", "graph_id", graphID)
	return nil
}

// DeployState returns the fingerprint stored by the last compile.
func (s *Service) DeployState(ctx context.Context, graphID string) (hookgraph.DeployState, error) {
	g, err := s.GetGraph(ctx, graphID)
	if err != nil {
		return hookgraph.DeployState{}, err
	}
	return hookgraph.DeployState{DeployFingerprint: g.DeployFingerprint}, nil
}

// Compile provisions the graph from its saved definition. A definition with
// no configured trigger deprovisions: the graph returns to DRAFT and its
// fingerprint is cleared.
func (s *Service) Compile(ctx context.Context, graphID string) (*hookgraph.CompileResult, error) {
	g, err := s.GetGraph(ctx, graphID)
	if err != nil {
		return nil, err
	}
	if err := s.validate(g.Definition); err != nil {
		return nil, err
	}
	if err := hookgraph.ValidateAcyclic(g.Definition); err != nil {
		return nil, err
	}

	fp := hookgraph.Fingerprint(g.Definition)
	if fp == "" {
		if _, err := s.store.SetDeployment(ctx, graphID, hookgraph.Deployment{Status: hookgraph.StatusDraft}); err != nil {
			return nil, err
		}
		s.logger.Info("graph deprovisioned", "graph_id", graphID)
		return &hookgraph.CompileResult{Status: hookgraph.StatusDraft, Outputs: []hookgraph.Field{}}, nil
	}

	_, cfg, _ := hookgraph.ConfiguredTrigger(g.Definition)
	outputs, _ := hookgraph.FlattenEventInputs(cfg.EventABI.Inputs)
	now := s.now().UTC()
	if _, err := s.store.SetDeployment(ctx, graphID, hookgraph.Deployment{
		Fingerprint: fp,
		Status:      hookgraph.StatusActive,
		CompiledAt:  &now,
	}); err != nil {
		return nil, err
	}
	s.logger.Info("graph compiled", "graph_id", graphID, "fingerprint", fp)
	return &hookgraph.CompileResult{
		Status:            hookgraph.StatusActive,
		DeployFingerprint: fp,
		CompiledAt:        &now,
		Outputs:           outputs,
	}, nil
}

// Pause stops a deployed graph.
func (s *Service) Pause(ctx context.Context, graphID string) (hookgraph.Status, error) {
	return s.setStatus(ctx, graphID, hookgraph.StatusPaused)
}

// Resume restarts a deployed graph. It is refused while usage is over the limit.
func (s *Service) Resume(ctx context.Context, graphID string) (hookgraph.Status, error) {
	u, err := s.meter.Usage(ctx)
	if err != nil {
		return "", err
	}
	if u.OverLimit() {
		return "", fmt.Errorf("%w: %d of %d deliveries used, resume is disabled until usage resets",
			hookgraph.ErrLimitExceeded, u.Used, u.Limit)
	}
	return s.setStatus(ctx, graphID, hookgraph.StatusActive)
}

func (s *Service) setStatus(ctx context.Context, graphID string, status hookgraph.Status) (hookgraph.Status, error) {
	g, err := s.GetGraph(ctx, graphID)
	if err != nil {
		return "", err
	}
	if g.StatusOrDraft() == hookgraph.StatusDraft {
		return "", fmt.Errorf("%w: compile graph %s first", hookgraph.ErrNotDeployed, graphID)
	}
	updated, err := s.store.SetStatus(ctx, graphID, status)
	if err != nil {
		return "", err
	}
	s.logger.Info("graph status changed", "graph_id", graphID, "status", updated.Status)
	return updated.Status, nil
}

// Usage returns the metered usage.
func (s *Service) Usage(ctx context.Context) (hookgraph.Usage, error) {
	u, err := s.meter.Usage(ctx)
	if err != nil {
		return hookgraph.Usage{}, err
	}
	if u.Limit <= 0 {
		u.Limit = hookgraph.DefaultUsageLimit
	}
	return u, nil
}

// Trigger delivers a raw event to an ACTIVE graph. Tuple values are
// normalized according to the trigger's event ABI, and the delivery counts
// toward usage.
func (s *Service) Trigger(ctx context.Context, graphID string, event map[string]any) (map[string]any, error) {
	g, err := s.GetGraph(ctx, graphID)
	if err != nil {
		return nil, err
	}
	if g.StatusOrDraft() != hookgraph.StatusActive {
		return nil, fmt.Errorf("%w: graph %s is %s", hookgraph.ErrNotDeployed, graphID, g.StatusOrDraft())
	}
	_, cfg, ok := hookgraph.ConfiguredTrigger(g.Definition)
	if !ok {
		return nil, fmt.Errorf("%w: graph %s has no configured trigger", hookgraph.ErrNotDeployed, graphID)
	}

	u, err := s.meter.Usage(ctx)
	if err != nil {
		return nil, err
	}
	if u.OverLimit() {
		return nil, fmt.Errorf("%w: %d of %d deliveries used", hookgraph.ErrLimitExceeded, u.Used, u.Limit)
	}

	_, specs := hookgraph.FlattenEventInputs(cfg.EventABI.Inputs)
	payload := hookgraph.NormalizeEventPayload(event, specs)
	if _, err := s.meter.Add(ctx, 1); err != nil {
		return nil, err
	}
	return payload, nil
}
