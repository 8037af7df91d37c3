// Package sqlite stores graphs in a single-file SQLite database through the
// pure-Go modernc driver. It suits local and single-user setups.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/meikuraledutech/hookgraph"
	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS hookgraph_graphs (
    id                 TEXT PRIMARY KEY,
    name               TEXT NOT NULL DEFAULT '',
    status             TEXT NOT NULL DEFAULT 'DRAFT',
    version            INTEGER NOT NULL DEFAULT 1,
    definition         TEXT NOT NULL,
    deploy_fingerprint TEXT NOT NULL DEFAULT '',
    compiled_at        TEXT,
    created_at         TEXT NOT NULL,
    updated_at         TEXT NOT NULL
);
`

const graphColumns = `id, name, status, version, definition, deploy_fingerprint, compiled_at, created_at, updated_at`

// Store implements hookgraph.Store on SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at path. ":memory:" gives a private
// in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("hookgraph: open sqlite: %w", err)
	}

	// One writer at a time; a single connection also keeps ":memory:" alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("hookgraph: %s: %w", pragma, err)
		}
	}
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSchema creates the graphs table if it doesn't exist.
func (s *Store) CreateSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

// DropSchema drops the graphs table.
func (s *Store) DropSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS hookgraph_graphs`)
	return err
}

// CreateGraph inserts a graph record.
func (s *Store) CreateGraph(ctx context.Context, g *hookgraph.Graph) (*hookgraph.Graph, error) {
	def, err := json.Marshal(g.Definition.Clone())
	if err != nil {
		return nil, fmt.Errorf("hookgraph: encode definition: %w", err)
	}
	version := g.Version
	if version == 0 {
		version = 1
	}
	now := formatTime(s.now())
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO hookgraph_graphs (id, name, status, version, definition, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.Name, string(g.StatusOrDraft()), version, string(def), now, now,
	); err != nil {
		return nil, fmt.Errorf("hookgraph: insert graph: %w", err)
	}
	return s.mustGet(ctx, g.ID)
}

// GetGraph fetches a graph by its ID.
// Returns nil, nil if not found.
func (s *Store) GetGraph(ctx context.Context, graphID string) (*hookgraph.Graph, error) {
	g, err := scanGraph(s.db.QueryRowContext(ctx,
		`SELECT `+graphColumns+` FROM hookgraph_graphs WHERE id = ?`, graphID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("hookgraph: get graph: %w", err)
	}
	return g, nil
}

// ListGraphs returns all graphs, newest first.
func (s *Store) ListGraphs(ctx context.Context) ([]hookgraph.Graph, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+graphColumns+` FROM hookgraph_graphs ORDER BY created_at DESC, rowid DESC`)
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
	return graphs, rows.Err()
}

// UpdateGraph replaces the name, definition and status of a graph.
// Returns ErrGraphNotFound if the graph doesn't exist.
func (s *Store) UpdateGraph(ctx context.Context, graphID string, u hookgraph.Update) (*hookgraph.Graph, error) {
	def, err := json.Marshal(u.Definition.Clone())
	if err != nil {
		return nil, fmt.Errorf("hookgraph: encode definition: %w", err)
	}
	status := u.Status
	if status == "" {
		status = hookgraph.StatusDraft
	}
	bump := 0
	if u.BumpVersion {
		bump = 1
	}
	return s.update(ctx, graphID,
		`UPDATE hookgraph_graphs SET name = ?, definition = ?, status = ?, version = version + ?, updated_at = ? WHERE id = ?`,
		u.Name, string(def), string(status), bump, formatTime(s.now()), graphID)
}

// DeleteGraph deletes a graph by its ID.
// No error if the graph doesn't exist.
func (s *Store) DeleteGraph(ctx context.Context, graphID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM hookgraph_graphs WHERE id = ?`, graphID); err != nil {
		return fmt.Errorf("hookgraph: delete graph: %w", err)
	}
	return nil
}

// SetDeployment stamps the outcome of a compile.
func (s *Store) SetDeployment(ctx context.Context, graphID string, d hookgraph.Deployment) (*hookgraph.Graph, error) {
	var compiled sql.NullString
	if d.CompiledAt != nil {
		compiled = sql.NullString{String: formatTime(*d.CompiledAt), Valid: true}
	}
	return s.update(ctx, graphID,
		`UPDATE hookgraph_graphs SET deploy_fingerprint = ?, status = ?, compiled_at = ?, updated_at = ? WHERE id = ?`,
		d.Fingerprint, string(d.Status), compiled, formatTime(s.now()), graphID)
}

// SetStatus changes only the status of a graph.
func (s *Store) SetStatus(ctx context.Context, graphID string, status hookgraph.Status) (*hookgraph.Graph, error) {
	return s.update(ctx, graphID,
		`UPDATE hookgraph_graphs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(s.now()), graphID)
}

func (s *Store) update(ctx context.Context, graphID, query string, args ...any) (*hookgraph.Graph, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("hookgraph: update graph: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("hookgraph: update graph: %w", err)
	}
	if n == 0 {
		return nil, hookgraph.ErrGraphNotFound
	}
	return s.mustGet(ctx, graphID)
}

func (s *Store) mustGet(ctx context.Context, graphID string) (*hookgraph.Graph, error) {
	g, err := s.GetGraph(ctx, graphID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, hookgraph.ErrGraphNotFound
	}
	return g, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGraph(row scanner) (*hookgraph.Graph, error) {
	var (
		g                hookgraph.Graph
		status, def      string
		compiled         sql.NullString
		created, updated string
	)
	if err := row.Scan(&g.ID, &g.Name, &status, &g.Version, &def,
		&g.DeployFingerprint, &compiled, &created, &updated); err != nil {
		return nil, err
	}
	g.Status = hookgraph.Status(status)
	g.Definition = hookgraph.EmptyDefinition()
	if err := json.Unmarshal([]byte(def), &g.Definition); err != nil {
		return nil, fmt.Errorf("decode definition of %s: %w", g.ID, err)
	}
	if g.Definition.Nodes == nil {
		g.Definition.Nodes = []hookgraph.Node{}
	}
	if g.Definition.Edges == nil {
		g.Definition.Edges = []hookgraph.Edge{}
	}
	var err error
	if g.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if g.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	if compiled.Valid {
		t, err := parseTime(compiled.String)
		if err != nil {
			return nil, err
		}
		g.CompiledAt = &t
	}
	return &g, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
