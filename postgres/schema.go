package postgres

import "context"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS hookgraph_graphs (
    id                 TEXT PRIMARY KEY,
    name               TEXT NOT NULL DEFAULT '',
    status             TEXT NOT NULL DEFAULT 'DRAFT',
    version            INTEGER NOT NULL DEFAULT 1,
    definition         JSONB NOT NULL DEFAULT '{"nodes":[],"edges":[]}',
    deploy_fingerprint TEXT NOT NULL DEFAULT '',
    compiled_at        TIMESTAMPTZ,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_hookgraph_graphs_created ON hookgraph_graphs(created_at DESC);
`

// CreateSchema creates the hookgraph_graphs table if it doesn't exist.
func (s *PGStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return err
}

// DropSchema drops the hookgraph_graphs table.
func (s *PGStore) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DROP TABLE IF EXISTS hookgraph_graphs CASCADE;`)
	return err
}
