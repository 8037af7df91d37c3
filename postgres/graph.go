package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/meikuraledutech/hookgraph"
)

const graphColumns = `id, name, status, version, definition, deploy_fingerprint, compiled_at, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanGraph(row scanner) (*hookgraph.Graph, error) {
	var g hookgraph.Graph
	if err := row.Scan(&g.ID, &g.Name, &g.Status, &g.Version, &g.Definition,
		&g.DeployFingerprint, &g.CompiledAt, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	if g.Definition.Nodes == nil {
		g.Definition.Nodes = []hookgraph.Node{}
	}
	if g.Definition.Edges == nil {
		g.Definition.Edges = []hookgraph.Edge{}
	}
	return &g, nil
}

// CreateGraph inserts a graph record. Version defaults to 1 and status to DRAFT.
func (s *PGStore) CreateGraph(ctx context.Context, g *hookgraph.Graph) (*hookgraph.Graph, error) {
	if g.Version == 0 {
		g.Version = 1
	}
	def := g.Definition.Clone()
	row := s.db.QueryRow(ctx,
		`INSERT INTO hookgraph_graphs (id, name, status, version, definition)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+graphColumns,
		g.ID, g.Name, g.StatusOrDraft(), g.Version, def,
	)
	created, err := scanGraph(row)
	if err != nil {
		return nil, fmt.Errorf("hookgraph: insert graph: %w", err)
	}
	return created, nil
}

// GetGraph fetches a graph by its ID.
// Returns nil, nil if not found.
func (s *PGStore) GetGraph(ctx context.Context, graphID string) (*hookgraph.Graph, error) {
	g, err := scanGraph(s.db.QueryRow(ctx,
		`SELECT `+graphColumns+` FROM hookgraph_graphs WHERE id = $1`, graphID))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("hookgraph: get graph: %w", err)
	}
	return g, nil
}

// ListGraphs returns all graphs, newest first.
// Returns an empty slice (not nil) if none found.
func (s *PGStore) ListGraphs(ctx context.Context) ([]hookgraph.Graph, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+graphColumns+` FROM hookgraph_graphs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("hookgraph: list graphs: %w", err)
	}
	defer rows.Close()

	graphs := []hookgraph.Graph{}
	for rows.Next() {
		g, err := scanGraph(rows)
		if err != nil {
			return nil, fmt.Errorf("hookgraph: scan graph: %w", err)
		}
		graphs = append(graphs, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("hookgraph: rows graphs: %w", err)
	}
	return graphs, nil
}

// UpdateGraph replaces the name, definition and status of a graph.
// Returns ErrGraphNotFound if the graph doesn't exist.
func (s *PGStore) UpdateGraph(ctx context.Context, graphID string, u hookgraph.Update) (*hookgraph.Graph, error) {
	status := u.Status
	if status == "" {
		status = hookgraph.StatusDraft
	}
	g, err := scanGraph(s.db.QueryRow(ctx,
		`UPDATE hookgraph_graphs
		    SET name = $2, definition = $3, status = $4,
		        version = version + CASE WHEN $5::boolean THEN 1 ELSE 0 END,
		        updated_at = NOW()
		  WHERE id = $1
		RETURNING `+graphColumns,
		graphID, u.Name, u.Definition.Clone(), status, u.BumpVersion,
	))
	if err != nil {
		if isNoRows(err) {
			return nil, hookgraph.ErrGraphNotFound
		}
		return nil, fmt.Errorf("hookgraph: update graph: %w", err)
	}
	return g, nil
}

// DeleteGraph deletes a graph by its ID.
// No error if the graph doesn't exist.
func (s *PGStore) DeleteGraph(ctx context.Context, graphID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM hookgraph_graphs WHERE id = $1`, graphID); err != nil {
		return fmt.Errorf("hookgraph: delete graph: %w", err)
	}
	return nil
}

// SetDeployment stamps the outcome of a compile.
// Returns ErrGraphNotFound if the graph doesn't exist.
func (s *PGStore) SetDeployment(ctx context.Context, graphID string, d hookgraph.Deployment) (*hookgraph.Graph, error) {
	g, err := scanGraph(s.db.QueryRow(ctx,
		`UPDATE hookgraph_graphs
		    SET deploy_fingerprint = $2, status = $3, compiled_at = $4, updated_at = NOW()
		  WHERE id = $1
		RETURNING `+graphColumns,
		graphID, d.Fingerprint, d.Status, d.CompiledAt,
	))
	if err != nil {
		if isNoRows(err) {
			return nil, hookgraph.ErrGraphNotFound
		}
		return nil, fmt.Errorf("hookgraph: set deployment: %w", err)
	}
	return g, nil
}

// SetStatus changes only the status of a graph.
// Returns ErrGraphNotFound if the graph doesn't exist.
func (s *PGStore) SetStatus(ctx context.Context, graphID string, status hookgraph.Status) (*hookgraph.Graph, error) {
	g, err := scanGraph(s.db.QueryRow(ctx,
		`UPDATE hookgraph_graphs SET status = $2, updated_at = NOW()
		  WHERE id = $1
		RETURNING `+graphColumns,
		graphID, status,
	))
	if err != nil {
		if isNoRows(err) {
			return nil, hookgraph.ErrGraphNotFound
		}
		return nil, fmt.Errorf("hookgraph: set status: %w", err)
	}
	return g, nil
}

// isNoRows checks if the error is a "no rows" error from pgx.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
