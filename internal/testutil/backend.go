package testutil

import (
	"context"
	"sync"

	"github.com/meikuraledutech/hookgraph"
	"github.com/meikuraledutech/hookgraph/memory"
	"github.com/meikuraledutech/hookgraph/server"
)

// Backend operation names used by FakeBackend for call counting and
// failure injection.
const (
	OpList        = "list"
	OpCreate      = "create"
	OpDelete      = "delete"
	OpSave        = "save"
	OpAutosave    = "autosave"
	OpDeployState = "deploy_state"
	OpCompile     = "compile"
	OpPause       = "pause"
	OpResume      = "resume"
	OpUsage       = "usage"
)

// FakeBackend implements editor.Backend over the real service with an
// in-memory store and meter. Any operation can be made to fail.
type FakeBackend struct {
	Service *server.Service
	Store   *memory.Store
	Meter   *memory.Meter

	mu    sync.Mutex
	fail  map[string]error
	calls map[string]int
	saves []hookgraph.Update
}

// NewFakeBackend returns a backend with the given usage limit.
func NewFakeBackend(limit int64) *FakeBackend {
	store := memory.NewStore()
	meter := memory.NewMeter(limit)
	return &FakeBackend{
		Service: server.NewService(store, meter),
		Store:   store,
		Meter:   meter,
		fail:    map[string]error{},
		calls:   map[string]int{},
	}
}

// Fail makes op return err until cleared with a nil err.
func (b *FakeBackend) Fail(op string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.fail, op)
		return
	}
	b.fail[op] = err
}

// Calls returns how many times op was invoked, failed calls included.
func (b *FakeBackend) Calls(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

// Saves returns every update received by SaveGraph and Autosave, in order.
func (b *FakeBackend) Saves() []hookgraph.Update {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]hookgraph.Update(nil), b.saves...)
}

func (b *FakeBackend) enter(op string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[op]++
	return b.fail[op]
}

func (b *FakeBackend) ListGraphs(ctx context.Context) ([]hookgraph.Graph, error) {
	if err := b.enter(OpList); err != nil {
		return nil, err
	}
	return b.Service.ListGraphs(ctx)
}

func (b *FakeBackend) CreateGraph(ctx context.Context, name string) (*hookgraph.Graph, error) {
	if err := b.enter(OpCreate); err != nil {
		return nil, err
	}
	def := hookgraph.EmptyDefinition()
	return b.Service.CreateGraph(ctx, hookgraph.SaveRequest{Name: name, Definition: &def, Status: hookgraph.StatusDraft})
}

func (b *FakeBackend) DeleteGraph(ctx context.Context, graphID string) error {
	if err := b.enter(OpDelete); err != nil {
		return err
	}
	return b.Service.DeleteGraph(ctx, graphID)
}

func (b *FakeBackend) SaveGraph(ctx context.Context, graphID string, u hookgraph.Update) (*hookgraph.Graph, error) {
	return b.put(ctx, OpSave, graphID, u, true)
}

func (b *FakeBackend) Autosave(ctx context.Context, graphID string, u hookgraph.Update) (*hookgraph.Graph, error) {
	return b.put(ctx, OpAutosave, graphID, u, false)
}

func (b *FakeBackend) put(ctx context.Context, op, graphID string, u hookgraph.Update, bump bool) (*hookgraph.Graph, error) {
	if err := b.enter(op); err != nil {
		return nil, err
	}
	u.BumpVersion = bump
	b.mu.Lock()
	b.saves = append(b.saves, u)
	b.mu.Unlock()

	def := u.Definition
	return b.Service.UpdateGraph(ctx, graphID, hookgraph.SaveRequest{
		Name:        u.Name,
		Definition:  &def,
		Status:      u.Status,
		BumpVersion: &bump,
	})
}

func (b *FakeBackend) DeployState(ctx context.Context, graphID string) (hookgraph.DeployState, error) {
	if err := b.enter(OpDeployState); err != nil {
		return hookgraph.DeployState{}, err
	}
	return b.Service.DeployState(ctx, graphID)
}

func (b *FakeBackend) Compile(ctx context.Context, graphID string) (*hookgraph.CompileResult, error) {
	if err := b.enter(OpCompile); err != nil {
		return nil, err
	}
	return b.Service.Compile(ctx, graphID)
}

func (b *FakeBackend) Pause(ctx context.Context, graphID string) (hookgraph.Status, error) {
	if err := b.enter(OpPause); err != nil {
		return "", err
	}
	return b.Service.Pause(ctx, graphID)
}

func (b *FakeBackend) Resume(ctx context.Context, graphID string) (hookgraph.Status, error) {
	if err := b.enter(OpResume); err != nil {
		return "", err
	}
	return b.Service.Resume(ctx, graphID)
}

func (b *FakeBackend) Usage(ctx context.Context) (hookgraph.Usage, error) {
	if err := b.enter(OpUsage); err != nil {
		return hookgraph.Usage{}, err
	}
	return b.Service.Usage(ctx)
}
