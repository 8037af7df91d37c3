package editor

import (
	"context"
	"errors"

	"github.com/meikuraledutech/hookgraph"
)

var (
	ErrNoGraph   = errors.New("editor: select or create a graph first")
	ErrCompiling = errors.New("editor: a deploy is already in progress")
	ErrClosed    = errors.New("editor: session is closed")
)

// Backend is the remote graph service the editor synchronizes with.
type Backend interface {
	ListGraphs(ctx context.Context) ([]hookgraph.Graph, error)
	CreateGraph(ctx context.Context, name string) (*hookgraph.Graph, error)
	DeleteGraph(ctx context.Context, graphID string) error

	// SaveGraph persists and bumps the version.
	SaveGraph(ctx context.Context, graphID string, u hookgraph.Update) (*hookgraph.Graph, error)
	// Autosave persists without a version bump.
	Autosave(ctx context.Context, graphID string, u hookgraph.Update) (*hookgraph.Graph, error)

	DeployState(ctx context.Context, graphID string) (hookgraph.DeployState, error)
	// Compile provisions or deprovisions from the saved definition.
	Compile(ctx context.Context, graphID string) (*hookgraph.CompileResult, error)
	Pause(ctx context.Context, graphID string) (hookgraph.Status, error)
	Resume(ctx context.Context, graphID string) (hookgraph.Status, error)

	Usage(ctx context.Context) (hookgraph.Usage, error)
}
