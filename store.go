package hookgraph

import (
	"context"
	"errors"
	"time"
)

var (
	ErrGraphNotFound = errors.New("hookgraph: graph not found")
	ErrDuplicateNode = errors.New("hookgraph: duplicate node id")
	ErrDanglingEdge  = errors.New("hookgraph: edge references unknown node")
	ErrCycleDetected = errors.New("hookgraph: cycle detected, graph is not acyclic")
	ErrNotDeployed   = errors.New("hookgraph: graph is not deployed")
	ErrLimitExceeded = errors.New("hookgraph: usage limit exceeded")
)

// Update carries the writable fields of a graph record.
// BumpVersion is false for autosaves.
type Update struct {
	Name        string
	Definition  Definition
	Status      Status
	BumpVersion bool
}

// Deployment is the outcome of a compile, stamped onto the graph record.
// An empty Fingerprint means nothing is deployed.
type Deployment struct {
	Fingerprint string
	Status      Status
	CompiledAt  *time.Time
}

// Store defines the contract for persisting and retrieving graphs.
type Store interface {
	// Schema
	CreateSchema(ctx context.Context) error
	DropSchema(ctx context.Context) error

	// Graphs
	CreateGraph(ctx context.Context, g *Graph) (*Graph, error)
	GetGraph(ctx context.Context, graphID string) (*Graph, error)
	ListGraphs(ctx context.Context) ([]Graph, error)
	UpdateGraph(ctx context.Context, graphID string, u Update) (*Graph, error)
	DeleteGraph(ctx context.Context, graphID string) error

	// Deployment state
	SetDeployment(ctx context.Context, graphID string, d Deployment) (*Graph, error)
	SetStatus(ctx context.Context, graphID string, status Status) (*Graph, error)
}
